package notification

import (
	"context"
	"fmt"
)

// Message is a single outbound email
type Message struct {
	From    string // Sender identity; providers fall back to their configured default
	To      string // Recipient address
	Subject string
	HTML    string // Complete HTML document
}

// Result is what the delivery provider returned for an accepted message
type Result struct {
	ID      string         `json:"id"`
	Payload map[string]any `json:"-"` // Raw provider response, when the provider returns one
}

// Provider delivers email. Exactly one delivery attempt is made per Send call.
type Provider interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}

// DeliveryError is returned when the provider answers with a non-success status
type DeliveryError struct {
	Provider string
	Status   int
	Body     string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s API error: %d %s", e.Provider, e.Status, e.Body)
}
