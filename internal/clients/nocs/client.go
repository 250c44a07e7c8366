package nocs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"nocs-settlement/internal/config"
	"nocs-settlement/internal/models"
	"nocs-settlement/internal/services/circuitbreaker"
	"nocs-settlement/internal/services/tracing"
	"nocs-settlement/pkg/errors"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Endpoint names one of the two NOCS operations.
type Endpoint string

const (
	EndpointSettle Endpoint = "settle"
	EndpointReport Endpoint = "report"
)

// Outcome labels recorded for each call.
const (
	OutcomeACK         = "ack"
	OutcomeNACK        = "nack"
	OutcomeTransport   = "transport_error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeBadResponse = "bad_response"
)

const maxResponseBytes = 1 << 20

// HeaderSigner produces the Authorization header value for a body.
type HeaderSigner interface {
	Sign(body []byte, now time.Time) (string, error)
}

// MetricsRecorder is the subset of the metrics service the client uses.
type MetricsRecorder interface {
	RecordNOCSRequest(endpoint, outcome string, duration time.Duration)
	RecordSignatureGeneration()
	SetCircuitBreakerState(dependency string, state int)
}

// Response is what came back from one call. Rejections are data, not errors.
type Response struct {
	Endpoint      Endpoint
	StatusCode    int
	Ack           string
	ErrorType     string
	ErrorCode     string
	ErrorMessage  string
	Body          []byte
	RequestBody   []byte
	Authorization string
	Duration      time.Duration
}

// Acknowledged reports an HTTP 200 carrying an ACK.
func (r *Response) Acknowledged() bool {
	return r.StatusCode == http.StatusOK && r.Ack == models.AckStatusACK
}

// Client posts signed payloads to the NOCS endpoints. It never retries.
type Client struct {
	httpClient *http.Client
	config     config.NOCSConfig
	breaker    *circuitbreaker.CircuitBreaker
	metrics    MetricsRecorder
	tracer     *tracing.Service
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a client. breaker, metrics and tracer may be nil.
func NewClient(cfg config.NOCSConfig, breaker *circuitbreaker.CircuitBreaker, metrics MetricsRecorder, tracer *tracing.Service, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		config:  cfg,
		breaker: breaker,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
		now:     time.Now,
	}
}

// NewBreaker returns a breaker that counts only transport failures and
// mirrors its state into metrics.
func NewBreaker(cfg config.CircuitBreakerConfig, metrics MetricsRecorder) *circuitbreaker.CircuitBreaker {
	bc := circuitbreaker.DefaultConfig()
	bc.FailureThreshold = cfg.FailureThreshold
	bc.Timeout = cfg.Timeout
	bc.IsFailure = func(err error) bool {
		return errors.CategoryOf(err) == errors.CategoryTransport
	}
	if metrics != nil {
		bc.OnStateChange = func(_, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState("nocs", int(to))
		}
	}
	return circuitbreaker.NewCircuitBreaker(bc)
}

func (c *Client) url(endpoint Endpoint) (string, error) {
	switch endpoint {
	case EndpointSettle:
		return c.config.SettleURL, nil
	case EndpointReport:
		return c.config.ReportURL, nil
	default:
		return "", errors.NewConfigurationError(fmt.Sprintf("unknown endpoint %q", endpoint))
	}
}

// Settle encodes req and posts it to the settle endpoint.
func (c *Client) Settle(ctx context.Context, req *models.Request, signer HeaderSigner) (*Response, error) {
	return c.send(ctx, EndpointSettle, req, signer)
}

// Report encodes req and posts it to the report endpoint.
func (c *Client) Report(ctx context.Context, req *models.Request, signer HeaderSigner) (*Response, error) {
	return c.send(ctx, EndpointReport, req, signer)
}

func (c *Client) send(ctx context.Context, endpoint Endpoint, req *models.Request, signer HeaderSigner) (*Response, error) {
	body, err := models.MarshalMinified(req)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeInvalidPayload, "payload encoding failed", "failed to marshal request")
	}
	return c.Post(ctx, endpoint, body, signer)
}

// Post sends body exactly as given. A nil signer sends no Authorization
// headers.
func (c *Client) Post(ctx context.Context, endpoint Endpoint, body []byte, signer HeaderSigner) (*Response, error) {
	target, err := c.url(endpoint)
	if err != nil {
		return nil, err
	}

	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.StartSpan(ctx, "nocs."+string(endpoint))
		tracing.AddSpanAttributes(span, map[string]string{
			"nocs.endpoint": string(endpoint),
			"http.url":      target,
		})
		defer span.End()
	}

	var authHeader string
	if signer != nil {
		authHeader, err = signer.Sign(body, c.now())
		if err != nil {
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.RecordSignatureGeneration()
		}
	}

	resp := &Response{
		Endpoint:      endpoint,
		RequestBody:   body,
		Authorization: authHeader,
	}

	start := time.Now()
	call := func() error {
		return c.do(ctx, target, body, authHeader, resp)
	}
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	resp.Duration = time.Since(start)

	if err != nil {
		outcome := OutcomeTransport
		if domainErr, ok := errors.AsDomainError(err); ok && domainErr.Code == errors.CodeBadResponse {
			outcome = OutcomeBadResponse
		} else if err == circuitbreaker.ErrCircuitBreakerOpen || err == circuitbreaker.ErrCircuitBreakerHalfOpen {
			outcome = OutcomeCircuitOpen
			err = errors.WrapDomainError(err, errors.CodeCircuitOpen, "circuit open", "nocs endpoint marked unreachable")
		}
		c.record(ctx, endpoint, outcome, resp, err)
		return nil, err
	}

	outcome := OutcomeNACK
	if resp.Acknowledged() {
		outcome = OutcomeACK
	}
	c.record(ctx, endpoint, outcome, resp, nil)
	return resp, nil
}

func (c *Client) do(ctx context.Context, target string, body []byte, authHeader string, resp *Response) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
		req.Header.Set("X-Gateway-Authorization", authHeader)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewTransportError(err, "http request failed")
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err != nil {
		return errors.NewTransportError(err, "failed to read response body")
	}
	resp.StatusCode = httpResp.StatusCode
	if len(raw) > maxResponseBytes {
		return errors.NewDomainError(errors.CodeBadResponse, "invalid response",
			fmt.Sprintf("response body exceeds %d bytes (HTTP %d)", maxResponseBytes, httpResp.StatusCode))
	}

	resp.Body = raw
	classify(resp)
	return nil
}

// classify fills the ACK and error fields from the body. A body that is not
// an ACK envelope leaves them empty.
func classify(resp *Response) {
	var envelope models.AckResponse
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return
	}
	resp.Ack = envelope.Message.Ack.Status
	if envelope.Error != nil {
		resp.ErrorType = envelope.Error.Type
		resp.ErrorCode = envelope.Error.Code
		resp.ErrorMessage = envelope.Error.Message
	}
}

func (c *Client) record(ctx context.Context, endpoint Endpoint, outcome string, resp *Response, err error) {
	if c.metrics != nil {
		c.metrics.RecordNOCSRequest(string(endpoint), outcome, resp.Duration)
	}

	if c.tracer != nil {
		span := trace.SpanFromContext(ctx)
		tracing.AddSpanAttributes(span, map[string]string{
			"nocs.outcome":     outcome,
			"http.status_code": strconv.Itoa(resp.StatusCode),
			"nocs.ack":         resp.Ack,
			"nocs.error_code":  resp.ErrorCode,
		})
		tracing.RecordError(span, err)
	}

	if err != nil {
		c.logger.Warn("nocs call failed",
			zap.String("endpoint", string(endpoint)),
			zap.String("outcome", outcome),
			zap.Duration("duration", resp.Duration),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("nocs call completed",
		zap.String("endpoint", string(endpoint)),
		zap.Int("status", resp.StatusCode),
		zap.String("ack", resp.Ack),
		zap.String("error_code", resp.ErrorCode),
		zap.Duration("duration", resp.Duration),
	)
}
