package middleware

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nocs-settlement/internal/models"
	"nocs-settlement/internal/services/ondc"
	"nocs-settlement/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RawBodyContextKey   = "raw_body"
	SignatureContextKey = "signature"

	MaxBodyBytes = 1 << 20
)

// NACK codes returned by the sandbox.
const (
	NACKCodeBadRequest            = "10000"
	NACKCodeAuthFailed            = "10001"
	NACKCodeMissingSettlementType = "70002"
)

const (
	ErrorTypeContext = "CONTEXT-ERROR"
	ErrorTypePolicy  = "POLICY-ERROR"
	ErrorTypeDomain  = "DOMAIN-ERROR"
)

type SignatureVerifier interface {
	Verify(ctx context.Context, header string, body []byte, now time.Time) (*ondc.SignatureParams, error)
}

type VerificationRecorder interface {
	RecordSignatureVerification(result string)
}

// AuthMiddleware verifies the Authorization header against the raw request
// body. The body is restored for the handler and stored under
// RawBodyContextKey. metrics may be nil.
func AuthMiddleware(verifier SignatureVerifier, metrics VerificationRecorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := ReadRawBody(c)
		if err != nil {
			RespondNACK(c, logger, ErrorTypeContext, NACKCodeBadRequest, err)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			recordVerification(metrics, "missing")
			RespondNACK(c, logger, ErrorTypePolicy, NACKCodeAuthFailed,
				errors.NewDomainError(errors.CodeAuthFailed, "authentication failed", "missing Authorization header"))
			return
		}

		params, err := verifier.Verify(c.Request.Context(), header, body, time.Now())
		if err != nil {
			recordVerification(metrics, "invalid")
			if _, ok := errors.AsDomainError(err); !ok {
				err = errors.WrapDomainError(err, errors.CodeAuthFailed, "authentication failed", "signature verification failed")
			}
			RespondNACK(c, logger, ErrorTypePolicy, NACKCodeAuthFailed, err)
			return
		}

		recordVerification(metrics, "valid")
		c.Set(SignatureContextKey, params)
		c.Next()
	}
}

// ReadRawBody returns the request body, reading it at most once per request.
// Bodies over MaxBodyBytes fail with CodeBodyTooLarge; other read failures
// with CodeInvalidPayload.
func ReadRawBody(c *gin.Context) ([]byte, error) {
	if raw, ok := c.Get(RawBodyContextKey); ok {
		if body, ok := raw.([]byte); ok {
			return body, nil
		}
	}
	if c.Request.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.WrapDomainError(err, errors.CodeBodyTooLarge, "request body too large",
				fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, errors.WrapDomainError(err, errors.CodeInvalidPayload, "invalid request", "unreadable body")
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Set(RawBodyContextKey, body)
	return body, nil
}

func recordVerification(metrics VerificationRecorder, result string) {
	if metrics != nil {
		metrics.RecordSignatureVerification(result)
	}
}

// RespondNACK aborts with a NACK envelope whose HTTP status follows the
// error code. Error details are logged, not returned to the caller.
func RespondNACK(c *gin.Context, logger *zap.Logger, errType, code string, err error) {
	statusCode := errors.GetHTTPStatus(err)
	logger.Warn("request rejected",
		zap.String("path", c.Request.URL.Path),
		zap.Int("status_code", statusCode),
		zap.String("nack_code", code),
		zap.Error(err),
	)

	message := "request rejected"
	if domainErr, ok := errors.AsDomainError(err); ok {
		message = domainErr.Message
	}

	c.AbortWithStatusJSON(statusCode, models.NewNACK(errType, code, message))
}

// GetSignatureFromContext returns the verified signature parameters.
func GetSignatureFromContext(c *gin.Context) *ondc.SignatureParams {
	value, exists := c.Get(SignatureContextKey)
	if !exists {
		return nil
	}

	params, ok := value.(*ondc.SignatureParams)
	if !ok {
		return nil
	}

	return params
}
