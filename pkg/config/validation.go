package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError is one invalid setting, named by its environment variable
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors holds every invalid setting found in one pass
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Validator checks one configuration section
type Validator func() ValidationErrors

// Validate runs every validator and reports all failures at once, so a
// misconfigured deployment is fixed in one round
func Validate(validators ...Validator) error {
	var all ValidationErrors
	for _, validator := range validators {
		all = append(all, validator()...)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

// CollectErrors keeps the failed checks, dropping the nil ones
func CollectErrors(checks ...*ValidationError) ValidationErrors {
	var result ValidationErrors
	for _, check := range checks {
		if check != nil {
			result = append(result, *check)
		}
	}
	return result
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func RequireNonEmpty(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %v", value)
	}
	return nil
}

// RequireValidURL accepts absolute http and https URLs only; verification
// links are built from these and must work outside the server
func RequireValidURL(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		return invalid(field, "invalid URL: %v", err)
	case u.Scheme != "http" && u.Scheme != "https":
		return invalid(field, "URL must have a scheme (http:// or https://)")
	case u.Host == "":
		return invalid(field, "URL must have a host")
	}
	return nil
}

func RequireValidPort(field string, port int) *ValidationError {
	if port < 1 || port > 65535 {
		return invalid(field, "port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func RequireOneOf(field, value string, allowed ...string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid(field, "must be one of %s, got %q", strings.Join(allowed, "|"), value)
}

func RequireMinLength(field, value string, n int) *ValidationError {
	if len(value) < n {
		return invalid(field, "must be at least %d characters, got %d", n, len(value))
	}
	return nil
}

// RequireSchedule accepts a standard cron expression or a descriptor such as "@every 10m"
func RequireSchedule(field, spec string) *ValidationError {
	if _, err := cron.ParseStandard(spec); err != nil {
		return invalid(field, "invalid schedule: %v", err)
	}
	return nil
}
