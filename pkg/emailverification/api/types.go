package api

// SendVerificationRequest is the body of POST /send-custom-verification
type SendVerificationRequest struct {
	Email   string `json:"email"`
	Token   string `json:"token"`
	BaseURL string `json:"baseUrl"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
