package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultResendEndpoint is the Resend email API
const DefaultResendEndpoint = "https://api.resend.com/emails"

type ResendConfig struct {
	APIKey     string
	From       string
	Endpoint   string
	HTTPClient *http.Client
}

// ResendProvider sends email through the Resend HTTP API
type ResendProvider struct {
	config ResendConfig
	client *http.Client
}

func NewResendProvider(config ResendConfig) *ResendProvider {
	if config.Endpoint == "" {
		config.Endpoint = DefaultResendEndpoint
	}
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &ResendProvider{config: config, client: client}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (p *ResendProvider) Send(ctx context.Context, msg Message) (*Result, error) {
	if msg.To == "" {
		return nil, fmt.Errorf("email notification requires 'To' address")
	}
	from := msg.From
	if from == "" {
		from = p.config.From
	}

	body, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build resend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Error("Failed to reach Resend", "err", err)
		return nil, fmt.Errorf("failed to reach resend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read resend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("Resend rejected email", "status", resp.StatusCode, "to", msg.To)
		return nil, &DeliveryError{Provider: "Resend", Status: resp.StatusCode, Body: string(respBody)}
	}

	payload := map[string]any{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return nil, fmt.Errorf("failed to decode resend response: %w", err)
		}
	}
	id, _ := payload["id"].(string)

	slog.Info("Email sent successfully", "to", msg.To, "provider", "resend", "id", id)
	return &Result{ID: id, Payload: payload}, nil
}
