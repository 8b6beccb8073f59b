package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-verify/pkg/emailverification"
	"github.com/tendant/simple-verify/pkg/notification"
)

func serve(t *testing.T, h *Handler, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/send-custom-verification", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func assertCORS(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rr.Header().Get("Access-Control-Allow-Headers"))
}

func TestSendCustomVerification_Preflight(t *testing.T) {
	provider := &notification.MockProvider{}
	h := NewHandler(emailverification.NewMailer(provider))

	rr := serve(t, h, http.MethodOptions, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assertCORS(t, rr)
	assert.Empty(t, provider.Messages())
}

func TestSendCustomVerification_Success(t *testing.T) {
	provider := &notification.MockProvider{}
	h := NewHandler(emailverification.NewMailer(provider))

	rr := serve(t, h, http.MethodPost, `{"email":"a@x.com","token":"abc","baseUrl":"https://app.example.com"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assertCORS(t, rr)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "mock-1", body["id"])

	sent := provider.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].To)
	assert.Equal(t, "Verify your email address", sent[0].Subject)
	assert.Equal(t, "noreply@yourdomain.com", sent[0].From)
}

func TestSendCustomVerification_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"email":`},
		{name: "missing email", body: `{"token":"abc","baseUrl":"https://app.example.com"}`},
		{name: "missing token", body: `{"email":"a@x.com","baseUrl":"https://app.example.com"}`},
		{name: "missing base url", body: `{"email":"a@x.com","token":"abc"}`},
		{name: "bad email", body: `{"email":"nope","token":"abc","baseUrl":"https://app.example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &notification.MockProvider{}
			h := NewHandler(emailverification.NewMailer(provider))

			rr := serve(t, h, http.MethodPost, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assertCORS(t, rr)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, provider.Messages(), "nothing is sent for invalid input")
		})
	}
}

func TestSendCustomVerification_ProviderRejects(t *testing.T) {
	resend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"The to field is invalid"}`))
	}))
	defer resend.Close()

	provider := notification.NewResendProvider(notification.ResendConfig{APIKey: "re_test", Endpoint: resend.URL})
	h := NewHandler(emailverification.NewMailer(provider))

	rr := serve(t, h, http.MethodPost, `{"email":"a@x.com","token":"abc","baseUrl":"https://app.example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assertCORS(t, rr)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.Error, "Resend API error: 422"), resp.Error)
}
