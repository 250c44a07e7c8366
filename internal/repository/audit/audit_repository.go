package audit

import (
	"context"
	"database/sql"
	"time"

	"nocs-settlement/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const storeTimeout = 2 * time.Second

// Schema creates the exchange log table when it does not exist.
const Schema = `CREATE SCHEMA IF NOT EXISTS audit;
CREATE TABLE IF NOT EXISTS audit.nocs_exchange_logs (
	exchange_id          UUID PRIMARY KEY,
	run_id               TEXT NOT NULL,
	scenario_id          TEXT NOT NULL,
	step                 INTEGER NOT NULL,
	endpoint             TEXT NOT NULL,
	transaction_id       TEXT,
	message_id           TEXT,
	request_payload      JSONB,
	authorization_header TEXT,
	http_status          INTEGER,
	ack_status           TEXT,
	error_code           TEXT,
	error_message        TEXT,
	response_body        TEXT,
	transport_error      TEXT,
	duration_ms          BIGINT NOT NULL,
	trace_id             TEXT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertExchangeLog = `INSERT INTO audit.nocs_exchange_logs (
	exchange_id, run_id, scenario_id, step, endpoint,
	transaction_id, message_id, request_payload, authorization_header,
	http_status, ack_status, error_code, error_message,
	response_body, transport_error, duration_ms, trace_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// ExchangeLog is one request sent to NOCS and what came back.
type ExchangeLog struct {
	ExchangeID     string
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

// DBClient interface for database operations
type DBClient interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository handles exchange log storage
type Repository struct {
	db     DBClient
	logger *zap.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db DBClient, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema applies Schema.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return errors.WrapDomainError(err, errors.CodeConfiguration, "audit schema setup failed", "database error")
	}
	return nil
}

// StoreExchangeLog stores one exchange.
// Note: created_at is set by the database (DEFAULT now())
func (r *Repository) StoreExchangeLog(ctx context.Context, log *ExchangeLog) error {
	if log.ExchangeID == "" {
		log.ExchangeID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, insertExchangeLog,
		log.ExchangeID,
		log.RunID,
		log.ScenarioID,
		log.Step,
		log.Endpoint,
		sqlNullString(log.TransactionID),
		sqlNullString(log.MessageID),
		sqlNullJSONB(log.RequestPayload),
		sqlNullString(log.Authorization),
		sqlNullInt(log.HTTPStatus),
		sqlNullString(log.AckStatus),
		sqlNullString(log.ErrorCode),
		sqlNullString(log.ErrorMessage),
		sqlNullString(string(log.ResponseBody)),
		sqlNullString(log.TransportError),
		log.Duration.Milliseconds(),
		sqlNullString(log.TraceID),
	)

	if err != nil {
		r.logger.Error("failed to store exchange log", zap.Error(err))
		return errors.WrapDomainError(err, errors.CodeInternal, "audit log storage failed", "database error")
	}

	r.logger.Debug("audit exchange stored",
		zap.String("exchange_id", log.ExchangeID),
		zap.String("scenario_id", log.ScenarioID),
		zap.Int("step", log.Step),
		zap.String("endpoint", log.Endpoint),
	)

	return nil
}

func sqlNullJSONB(data []byte) sql.NullString {
	if len(data) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func sqlNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func sqlNullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
