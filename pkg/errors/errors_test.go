package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeTokenMismatch, "invalid verification token")
	assert.Equal(t, "[TOKEN_MISMATCH] invalid verification token", err.Error())

	wrapped := Wrap(fmt.Errorf("boom"), ErrCodeMailDelivery, "send failed")
	assert.Equal(t, "[MAIL_DELIVERY_FAILED] send failed: boom", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
	assert.Nil(t, Provider(nil))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := New(ErrCodeNoPendingSignup, "no pending signup found")
	outer := fmt.Errorf("complete: %w", base)

	assert.True(t, IsCode(outer, ErrCodeNoPendingSignup))
	assert.False(t, IsCode(outer, ErrCodeTokenMismatch))
	assert.Equal(t, ErrCodeNoPendingSignup, GetCode(outer))
	assert.Equal(t, ErrCodeInternal, GetCode(stderrors.New("plain")))
}

func TestProviderKeepsMessageVerbatim(t *testing.T) {
	err := Provider(stderrors.New("User already registered"))
	assert.Equal(t, ErrCodeProvider, err.Code)
	assert.Equal(t, "User already registered", UserMessage(err))
	assert.Equal(t, "plain", UserMessage(stderrors.New("plain")))
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeMissingRequired, http.StatusBadRequest},
		{ErrCodeSessionAbsent, http.StatusUnauthorized},
		{ErrCodeNoPendingSignup, http.StatusNotFound},
		{ErrCodeTokenMismatch, http.StatusConflict},
		{ErrCodeProvider, http.StatusUnprocessableEntity},
		{ErrCodeMailDelivery, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestClassification(t *testing.T) {
	missing := MissingRequired("email")
	assert.Equal(t, "email", missing.Field)
	assert.Equal(t, "email is required", missing.Message)
	assert.True(t, IsValidation(missing))
	assert.False(t, Retryable(missing))

	assert.True(t, IsValidation(New(ErrCodeInvalidFormat, "bad").WithField("email")))
	assert.False(t, IsValidation(New(ErrCodeTokenMismatch, "Invalid verification token")))
	assert.False(t, Retryable(New(ErrCodeTokenMismatch, "Invalid verification token")))

	assert.True(t, Retryable(Provider(stderrors.New("User already registered"))))
	assert.True(t, Retryable(fmt.Errorf("signup: %w", New(ErrCodeMailDelivery, "Resend API error: 422"))))
	assert.False(t, Retryable(stderrors.New("plain")))
}
