package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-verify/pkg/emailverification"
)

// Sender is the mailer operation the handler exposes
type Sender interface {
	Send(ctx context.Context, req emailverification.Request) (map[string]any, error)
}

// Handler serves the verification email endpoint
type Handler struct {
	mailer Sender
}

// NewHandler creates a new email verification API handler
func NewHandler(mailer Sender) *Handler {
	return &Handler{
		mailer: mailer,
	}
}

// Routes returns a router with CORS applied to every path it serves
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(CORS)
	r.Post("/send-custom-verification", h.SendCustomVerification)
	return r
}

// SendCustomVerification handles POST /send-custom-verification
func (h *Handler) SendCustomVerification(w http.ResponseWriter, r *http.Request) {
	var req SendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	payload, err := h.mailer.Send(r.Context(), emailverification.Request{
		Email:   req.Email,
		Token:   req.Token,
		BaseURL: req.BaseURL,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, emailverification.ErrInvalidRequest) {
			status = http.StatusBadRequest
		} else {
			slog.Error("Error sending verification email", "error", err)
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, payload)
}
