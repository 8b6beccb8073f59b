package webapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-verify/pkg/authsession"
	"github.com/tendant/simple-verify/pkg/client"
	pkgerrors "github.com/tendant/simple-verify/pkg/errors"
	"github.com/tendant/simple-verify/pkg/identity"
	"github.com/tendant/simple-verify/pkg/signup"
	"github.com/tendant/simple-verify/pkg/tokenstore"
	"github.com/tendant/simple-verify/pkg/verifyflow"
)

const DefaultClientCookieTTL = 30 * 24 * time.Hour

type Handle struct {
	backend      identity.Backend
	signup       *signup.SignupService
	kv           tokenstore.KV
	storeOpts    []tokenstore.StoreOption
	flowOpts     []verifyflow.Option
	callbackOpts []verifyflow.CallbackOption
	cookies      client.CookieSetter
	clientCookie client.CookieSetter
	clientTTL    time.Duration
	now          func() time.Time
}

type Option func(*Handle)

func WithStoreOptions(opts ...tokenstore.StoreOption) Option {
	return func(h *Handle) {
		h.storeOpts = append(h.storeOpts, opts...)
	}
}

func WithFlowOptions(opts ...verifyflow.Option) Option {
	return func(h *Handle) {
		h.flowOpts = append(h.flowOpts, opts...)
	}
}

func WithCallbackOptions(opts ...verifyflow.CallbackOption) Option {
	return func(h *Handle) {
		h.callbackOpts = append(h.callbackOpts, opts...)
	}
}

func WithCookieSetter(cookies client.CookieSetter) Option {
	return func(h *Handle) {
		h.cookies = cookies
	}
}

// WithClientCookieTTL sets how long the client context cookie lives
func WithClientCookieTTL(ttl time.Duration) Option {
	return func(h *Handle) {
		h.clientTTL = ttl
	}
}

func NewHandle(backend identity.Backend, svc *signup.SignupService, kv tokenstore.KV, opts ...Option) *Handle {
	h := &Handle{
		backend:   backend,
		signup:    svc,
		kv:        kv,
		cookies:   client.NewCookieSetter(true, false),
		clientTTL: DefaultClientCookieTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.clientCookie = client.LaxCookieSetter(h.cookies)
	return h
}

// Handler returns the public routes on a new router
func Handler(h *Handle) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the public routes to r. Dashboard is left to the
// caller so it can be mounted behind authentication.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Post("/auth/sign-up", h.SignUp)
	r.Post("/auth/sign-in", h.SignIn)
	r.Post("/auth/sign-out", h.SignOut)
	r.Post("/auth/resend-verification", h.ResendVerification)
	r.Get("/auth/callback", h.Callback)
	r.Get("/verify/confirm", h.Confirm)
	r.Post("/verify/confirm/complete", h.CompleteSignUp)
	r.Get("/verify/deny", h.Deny)
}

// clientStore returns the pending signup store of the requesting client.
// When the client has no cookie yet one is issued if issue is set. The
// cookie is always SameSite=Lax so it rides along on the confirm link.
func (h *Handle) clientStore(w http.ResponseWriter, r *http.Request, issue bool) *tokenstore.Store {
	id := client.ClientID(r)
	if id == "" {
		id = uuid.New().String()
		if issue {
			h.clientCookie.SetCookie(w, client.CLIENT_COOKIE_NAME, id, h.now().Add(h.clientTTL))
		}
	}
	return tokenstore.New(h.kv, id, h.storeOpts...)
}

func (h *Handle) newFlow(store *tokenstore.Store, provider identity.Provider) *verifyflow.Flow {
	return verifyflow.New(h.signup, store, provider, h.flowOpts...)
}

// SignUp handles POST /auth/sign-up
func (h *Handle) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, r, err)
		return
	}

	store := h.clientStore(w, r, true)
	flow := h.newFlow(store, nil)
	defer flow.Close()

	err := flow.BeginSignUp(r.Context(), signup.SignUpRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, flow.Snapshot())
}

// Confirm handles GET /verify/confirm
func (h *Handle) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	email := r.URL.Query().Get("email")

	flow := h.newFlow(h.clientStore(w, r, false), nil)
	defer flow.Close()

	snap, err := flow.VisitConfirm(r.Context(), token, email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, r, snap)
}

// CompleteSignUp handles POST /verify/confirm/complete
func (h *Handle) CompleteSignUp(w http.ResponseWriter, r *http.Request) {
	var req CompleteSignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, r, err)
		return
	}

	flow := h.newFlow(h.clientStore(w, r, false), h.backend.Client(""))
	defer flow.Close()

	snap, err := flow.VisitConfirm(r.Context(), req.Token, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if snap.State != verifyflow.ConfirmSuccess {
		writeSnapshot(w, r, snap)
		return
	}

	session, err := flow.Complete(r.Context(), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, session)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, AccountResponse{
		State:   string(verifyflow.AccountCreated),
		Message: flow.Snapshot().Message,
		User:    userResponse(session.User),
	})
}

// Deny handles GET /verify/deny
func (h *Handle) Deny(w http.ResponseWriter, r *http.Request) {
	flow := h.newFlow(nil, nil)
	defer flow.Close()

	snap, err := flow.VisitDeny(r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// SignIn handles POST /auth/sign-in
func (h *Handle) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, pkgerrors.New(pkgerrors.ErrCodeMissingRequired, "Email and password are required"))
		return
	}

	ctrl := authsession.NewController(h.backend.Client(""))
	defer ctrl.Close()

	session, err := ctrl.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, session)
	render.JSON(w, r, AccountResponse{
		State:   "signed_in",
		Message: "Signed in successfully",
		User:    userResponse(session.User),
	})
}

// SignOut handles POST /auth/sign-out
func (h *Handle) SignOut(w http.ResponseWriter, r *http.Request) {
	ctrl := authsession.NewController(h.backend.Client(client.TokenFromRequest(r)))
	defer ctrl.Close()

	if err := ctrl.SignOut(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	h.cookies.ClearCookie(w, client.ACCESS_TOKEN_NAME)
	render.JSON(w, r, MessageResponse{Message: "Signed out"})
}

// ResendVerification handles POST /auth/resend-verification
func (h *Handle) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadBody(w, r, err)
		return
	}
	if req.Email == "" {
		writeError(w, r, pkgerrors.MissingRequired("email"))
		return
	}

	ctrl := authsession.NewController(h.backend.Client(""))
	defer ctrl.Close()

	if err := ctrl.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: "Verification email sent"})
}

// Callback handles GET /auth/callback, the landing page of the provider's own link
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	opts := append([]verifyflow.CallbackOption{}, h.callbackOpts...)
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.URL.Query().Get("token_hash")
	}
	if token != "" {
		opts = append(opts, verifyflow.WithConfirmationToken(token))
	}

	cb := verifyflow.NewCallback(h.backend.Client(client.TokenFromRequest(r)), opts...)
	defer cb.Close()

	res := cb.Run(r.Context())
	status := http.StatusOK
	switch {
	case res.State == verifyflow.CallbackSuccess:
		h.setSessionCookie(w, res.Session)
	case res.Message == verifyflow.MessageNoSession:
		status = pkgerrors.MapErrorCodeToHTTPStatus(pkgerrors.ErrCodeSessionAbsent)
	case res.Message == verifyflow.MessageUnexpected:
		status = http.StatusInternalServerError
	default:
		status = pkgerrors.MapErrorCodeToHTTPStatus(pkgerrors.ErrCodeProvider)
	}

	render.Status(r, status)
	render.JSON(w, r, res)
}

// Dashboard handles GET /dashboard. It expects client.AuthUserMiddleware in front.
func (h *Handle) Dashboard(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		writeError(w, r, pkgerrors.New(pkgerrors.ErrCodeUnauthorized, "Not authenticated"))
		return
	}

	ctrl := authsession.NewController(h.backend.Client(authUser.AccessToken))
	defer ctrl.Close()

	if err := ctrl.Start(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	snap := ctrl.Snapshot()
	if snap.User == nil {
		writeError(w, r, pkgerrors.New(pkgerrors.ErrCodeSessionAbsent, verifyflow.MessageNoSession))
		return
	}
	render.JSON(w, r, userResponse(*snap.User))
}

// NotFound is the catch-all for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, ErrorResponse{Error: "not found"})
}

func (h *Handle) setSessionCookie(w http.ResponseWriter, session *identity.Session) {
	if session == nil || session.AccessToken == "" {
		return
	}
	h.cookies.SetCookie(w, client.ACCESS_TOKEN_NAME, session.AccessToken, session.ExpiresAt)
}

func userResponse(user identity.User) *UserResponse {
	resp := &UserResponse{}
	if err := copier.Copy(resp, &user); err != nil {
		slog.Error("Failed to copy user", "err", err)
	}
	resp.EmailConfirmed = user.EmailConfirmedAt != nil
	return resp
}

func writeSnapshot(w http.ResponseWriter, r *http.Request, snap verifyflow.Snapshot) {
	status := http.StatusOK
	if snap.State == verifyflow.ConfirmError {
		status = pkgerrors.MapErrorCodeToHTTPStatus(snap.ErrorCode)
	}
	render.Status(r, status)
	render.JSON(w, r, snap)
}

func writeBadBody(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Failed to decode request body", "error", err)
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := pkgerrors.GetCode(err)
	status := pkgerrors.MapErrorCodeToHTTPStatus(code)
	message := pkgerrors.UserMessage(err)

	switch {
	case errors.Is(err, verifyflow.ErrInvalidTransition):
		status = http.StatusConflict
		code = ""
	case status >= http.StatusInternalServerError:
		slog.Error("Request failed", "path", r.URL.Path, "code", code, "err", err)
	}

	resp := ErrorResponse{Error: message, Code: string(code)}
	var e *pkgerrors.Error
	if errors.As(err, &e) {
		resp.Field = e.Field
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
