package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	err := NewDomainError(CodeInvalidPayload, "invalid payload", "missing settlement type")

	assert.NotNil(t, err)
	assert.Equal(t, 65001, err.Code)
	assert.Equal(t, "invalid payload", err.Message)
	assert.Equal(t, "missing settlement type", err.Details)
	assert.False(t, err.Retryable)
}

func TestDomainError_Error(t *testing.T) {
	assert.Equal(t, "[65002] authentication failed: bad signature",
		NewDomainError(CodeAuthFailed, "authentication failed", "bad signature").Error())
	assert.Equal(t, "[65020] internal error", NewDomainError(CodeInternal, "internal error", "").Error())
}

func TestWrapDomainError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapDomainError(cause, CodeTransport, "transport error", "dial failed")

	assert.Equal(t, cause, err.Cause)
	assert.True(t, errors.Is(err, cause))
}

func TestNewTransportError_IsRetryable(t *testing.T) {
	err := NewTransportError(errors.New("timeout"), "settle")

	assert.Equal(t, CodeTransport, err.Code)
	assert.True(t, err.Retryable)
	assert.Equal(t, CategoryTransport, err.Category())
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryNone},
		{"plain error", errors.New("boom"), CategoryInternal},
		{"configuration", NewConfigurationError("private key must be 64 bytes"), CategoryConfiguration},
		{"transport", NewTransportError(errors.New("eof"), ""), CategoryTransport},
		{"circuit open", NewDomainError(CodeCircuitOpen, "circuit open", ""), CategoryTransport},
		{"rejection", NewDomainError(CodeRejected, "nack", "70002"), CategoryRejection},
		{"wrapped", fmt.Errorf("step failed: %w", NewConfigurationError("x")), CategoryConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.err))
		})
	}
}

func TestAsDomainError(t *testing.T) {
	domainErr, ok := AsDomainError(fmt.Errorf("wrapped: %w", NewDomainError(CodeInternal, "x", "")))
	assert.True(t, ok)
	assert.Equal(t, CodeInternal, domainErr.Code)

	_, ok = AsDomainError(errors.New("regular error"))
	assert.False(t, ok)
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, 400, GetHTTPStatus(NewDomainError(CodeInvalidPayload, "", "")))
	assert.Equal(t, 401, GetHTTPStatus(NewDomainError(CodeAuthFailed, "", "")))
	assert.Equal(t, 401, GetHTTPStatus(NewDomainError(CodeStaleSignature, "", "")))
	assert.Equal(t, 413, GetHTTPStatus(NewDomainError(CodeBodyTooLarge, "", "")))
	assert.Equal(t, 502, GetHTTPStatus(NewDomainError(CodeBadResponse, "", "")))
	assert.Equal(t, 503, GetHTTPStatus(NewDomainError(CodeTransport, "", "")))
	assert.Equal(t, 500, GetHTTPStatus(NewDomainError(CodeConfiguration, "", "")))
	assert.Equal(t, 500, GetHTTPStatus(errors.New("plain")))
}
