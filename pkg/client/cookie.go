package client

import (
	"net/http"
	"time"
)

// CookieSetter writes and expires the session and client context cookies
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error
	ClearCookie(w http.ResponseWriter, name string) error
}

// BaseCookieSetter applies the same attributes to every cookie it writes
type BaseCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func (c *BaseCookieSetter) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c *BaseCookieSetter) SetCookie(w http.ResponseWriter, name, value string, expire time.Time) error {
	ck := c.cookie(name, value)
	ck.Expires = expire
	http.SetCookie(w, ck)
	return nil
}

// ClearCookie tells the browser to drop the cookie immediately
func (c *BaseCookieSetter) ClearCookie(w http.ResponseWriter, name string) error {
	ck := c.cookie(name, "")
	ck.MaxAge = -1
	http.SetCookie(w, ck)
	return nil
}

// NewCookieSetter returns a setter for path "/" with SameSite=Lax
func NewCookieSetter(httpOnly, secure bool) CookieSetter {
	return &BaseCookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// LaxCookieSetter returns c with SameSite relaxed to Lax. Cookies that must
// survive a link opened from another site, such as the client context cookie
// read by the confirm link in a verification email, are written with it.
// Setters other than *BaseCookieSetter are returned unchanged.
func LaxCookieSetter(c CookieSetter) CookieSetter {
	base, ok := c.(*BaseCookieSetter)
	if !ok || base.SameSite == http.SameSiteLaxMode {
		return c
	}
	lax := *base
	lax.SameSite = http.SameSiteLaxMode
	return &lax
}
