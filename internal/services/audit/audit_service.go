package audit

import (
	"context"
	"time"

	"nocs-settlement/internal/repository/audit"
	"nocs-settlement/pkg/errors"

	"go.uber.org/zap"
)

// Repository interface for audit operations
type Repository interface {
	StoreExchangeLog(ctx context.Context, log *audit.ExchangeLog) error
}

// MetricsRecorder counts stored and failed audit records.
type MetricsRecorder interface {
	RecordAuditRecord(status string)
}

// Service provides audit logging functionality
type Service struct {
	repo    Repository
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewService creates a new audit service. metrics may be nil.
func NewService(repo Repository, metrics MetricsRecorder, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
	}
}

// LogExchange stores one scenario step's exchange with NOCS.
func (s *Service) LogExchange(ctx context.Context, params *ExchangeLogParams) error {
	log := &audit.ExchangeLog{
		RunID:          params.RunID,
		ScenarioID:     params.ScenarioID,
		Step:           params.Step,
		Endpoint:       params.Endpoint,
		TransactionID:  params.TransactionID,
		MessageID:      params.MessageID,
		RequestPayload: params.RequestPayload,
		Authorization:  params.Authorization,
		HTTPStatus:     params.HTTPStatus,
		AckStatus:      params.AckStatus,
		ErrorCode:      params.ErrorCode,
		ErrorMessage:   params.ErrorMessage,
		ResponseBody:   params.ResponseBody,
		TransportError: params.TransportError,
		Duration:       params.Duration,
		TraceID:        params.TraceID,
	}

	if err := s.repo.StoreExchangeLog(ctx, log); err != nil {
		s.record("error")
		s.logger.Error("failed to log exchange",
			zap.String("scenario_id", params.ScenarioID),
			zap.Int("step", params.Step),
			zap.Error(err),
		)
		return errors.WrapDomainError(err, errors.CodeInternal, "audit logging failed", "failed to store log")
	}

	s.record("stored")
	return nil
}

func (s *Service) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordAuditRecord(status)
	}
}

// ExchangeLogParams contains parameters for exchange logging
type ExchangeLogParams struct {
	RunID          string
	ScenarioID     string
	Step           int
	Endpoint       string
	TransactionID  string
	MessageID      string
	RequestPayload []byte
	Authorization  string
	HTTPStatus     int
	AckStatus      string
	ErrorCode      string
	ErrorMessage   string
	ResponseBody   []byte
	TransportError string
	Duration       time.Duration
	TraceID        string
}
