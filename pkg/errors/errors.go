package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes raised by the settlement client and the sandbox.
const (
	CodeInvalidPayload = 65001
	CodeAuthFailed     = 65002
	CodeStaleSignature = 65003
	CodeConfiguration  = 65004
	CodeRejected       = 65005
	CodeBodyTooLarge   = 65006
	CodeTransport      = 65010
	CodeCircuitOpen    = 65011
	CodeBadResponse    = 65012
	CodeInternal       = 65020
)

// Category groups error codes into the three failure classes a scenario
// distinguishes when deciding pass/fail.
type Category string

const (
	CategoryNone          Category = ""
	CategoryConfiguration Category = "configuration"
	CategoryTransport     Category = "transport"
	CategoryRejection     Category = "rejection"
	CategoryInternal      Category = "internal"
)

type DomainError struct {
	Code      int
	Message   string
	Details   string
	Retryable bool
	Cause     error
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// Category reports which failure class the error code belongs to.
func (e *DomainError) Category() Category {
	switch e.Code {
	case CodeConfiguration:
		return CategoryConfiguration
	case CodeTransport, CodeCircuitOpen, CodeBadResponse:
		return CategoryTransport
	case CodeRejected, CodeAuthFailed, CodeStaleSignature, CodeInvalidPayload, CodeBodyTooLarge:
		return CategoryRejection
	default:
		return CategoryInternal
	}
}

func NewDomainError(code int, message, details string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
	}
}

func WrapDomainError(err error, code int, message, details string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Cause:     err,
	}
}

// NewConfigurationError reports unusable configuration such as missing or
// malformed signing keys. Nothing is sent once one of these is raised.
func NewConfigurationError(details string) *DomainError {
	return NewDomainError(CodeConfiguration, "configuration error", details)
}

// NewTransportError wraps a timeout or connection failure.
func NewTransportError(err error, details string) *DomainError {
	return WrapDomainError(err, CodeTransport, "transport error", details).WithRetryable(true)
}

// AsDomainError returns the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// CategoryOf returns the failure class of err, or CategoryNone when err is
// nil and CategoryInternal when it carries no DomainError.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	domainErr, ok := AsDomainError(err)
	if !ok {
		return CategoryInternal
	}
	return domainErr.Category()
}

func GetHTTPStatus(err error) int {
	domainErr, ok := AsDomainError(err)
	if !ok {
		return 500
	}

	switch domainErr.Code {
	case CodeInvalidPayload, CodeRejected:
		return 400
	case CodeAuthFailed, CodeStaleSignature:
		return 401
	case CodeBodyTooLarge:
		return 413
	case CodeBadResponse:
		return 502
	case CodeTransport, CodeCircuitOpen:
		return 503
	case CodeConfiguration, CodeInternal:
		return 500
	default:
		return 500
	}
}
