package scenarios

import (
	"context"
	"fmt"
	"time"

	"nocs-settlement/internal/clients/nocs"
	"nocs-settlement/internal/config"
	"nocs-settlement/internal/models"
	"nocs-settlement/internal/services/audit"
	"nocs-settlement/internal/services/ondc"
	"nocs-settlement/internal/services/tracing"
	"nocs-settlement/pkg/errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ResultKind is the stream entry type of a published scenario result.
const ResultKind = "scenario_result"

// Sender posts one body to a NOCS endpoint.
type Sender interface {
	Post(ctx context.Context, endpoint nocs.Endpoint, body []byte, signer nocs.HeaderSigner) (*nocs.Response, error)
}

// AuditLogger stores exchanges.
type AuditLogger interface {
	LogExchange(ctx context.Context, params *audit.ExchangeLogParams) error
}

// ResultPublisher publishes finished scenarios.
type ResultPublisher interface {
	Publish(ctx context.Context, kind string, payload interface{}) (string, error)
}

// MetricsRecorder is the subset of the metrics service the runner uses.
type MetricsRecorder interface {
	RecordScenarioStep(scenario, status string)
	RecordScenarioDuration(scenario string, duration time.Duration)
	RecordResultPublished(status string)
}

// Signers holds the collector and, when configured, receiver keys.
type Signers struct {
	Collector *ondc.RequestSigner
	Receiver  *ondc.RequestSigner
}

// Sinks are optional consumers of results. Any field may be nil.
type Sinks struct {
	Audit     AuditLogger
	Publisher ResultPublisher
	Metrics   MetricsRecorder
	Tracer    *tracing.Service
}

// RunnerConfig controls identities, waits and what is kept per step.
type RunnerConfig struct {
	Identity      Identity
	Options       config.ScenarioConfig
	KeepResponses bool
}

// NewRunnerConfig derives a RunnerConfig from the loaded configuration.
func NewRunnerConfig(cfg *config.Config) RunnerConfig {
	return RunnerConfig{
		Identity: IdentityFromConfig(cfg),
		Options:  cfg.Scenario,
	}
}

// Runner executes scenarios one after another, steps in order.
type Runner struct {
	config  RunnerConfig
	client  Sender
	signers Signers
	sinks   Sinks
	logger  *zap.Logger
	now     func() time.Time
	wait    func(ctx context.Context, d time.Duration) error
}

func NewRunner(cfg RunnerConfig, client Sender, signers Signers, sinks Sinks, logger *zap.Logger) *Runner {
	return &Runner{
		config:  cfg,
		client:  client,
		signers: signers,
		sinks:   sinks,
		logger:  logger,
		now:     time.Now,
		wait:    sleepContext,
	}
}

type plannedStep struct {
	Step
	signer nocs.HeaderSigner
}

type plannedScenario struct {
	scenario Scenario
	params   *Params
	steps    []plannedStep
}

// plan draws identifiers and resolves signers for every step. It makes no
// network calls, so configuration problems surface before anything is sent.
func (r *Runner) plan(scenarios []Scenario) ([]plannedScenario, error) {
	planned := make([]plannedScenario, 0, len(scenarios))
	for _, sc := range scenarios {
		params := NewParams(r.config.Identity, r.config.Options)
		ps := plannedScenario{scenario: sc, params: params}
		for i, step := range sc.Steps(params) {
			signer, err := r.signerFor(step)
			if err != nil {
				return nil, fmt.Errorf("%s step %d (%s): %w", sc.ID, i+1, step.Name, err)
			}
			ps.steps = append(ps.steps, plannedStep{Step: step, signer: signer})
		}
		planned = append(planned, ps)
	}
	return planned, nil
}

func (r *Runner) signerFor(step Step) (nocs.HeaderSigner, error) {
	if step.Role == RoleReceiver && r.config.Identity.ReceiverAppID == "" {
		return nil, errors.NewConfigurationError("RECEIVER_APP_ID is required for receiver steps")
	}

	switch step.Auth {
	case AuthUnsigned:
		return nil, nil
	case AuthForeignSubscriber:
		if r.signers.Collector == nil {
			return nil, errors.NewConfigurationError("collector signing key is not configured")
		}
		if r.config.Options.InvalidBapID == "" {
			return nil, errors.NewConfigurationError("INVALID_BAP_ID is required")
		}
		return r.signers.Collector.WithSubscriberID(r.config.Options.InvalidBapID)
	}

	if step.Role == RoleReceiver {
		if r.signers.Receiver == nil {
			return nil, errors.NewConfigurationError("receiver signing key is not configured")
		}
		return r.signers.Receiver, nil
	}

	if r.signers.Collector == nil {
		return nil, errors.NewConfigurationError("collector signing key is not configured")
	}
	return r.signers.Collector, nil
}

// Run plans then executes scenarios. A cancelled context stops the run and
// returns what completed together with the context error.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*RunReport, error) {
	planned, err := r.plan(scenarios)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: r.now(),
	}

	r.logger.Info("scenario run started",
		zap.String("run_id", report.RunID),
		zap.Int("scenarios", len(planned)),
	)

	for _, ps := range planned {
		result := r.runScenario(ctx, report.RunID, ps)
		report.Scenarios = append(report.Scenarios, *result)
		r.publish(ctx, result)

		if err := ctx.Err(); err != nil {
			report.Duration = r.now().Sub(report.StartedAt)
			return report, err
		}
	}

	report.Duration = r.now().Sub(report.StartedAt)
	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, runID string, ps plannedScenario) *ScenarioResult {
	sc := ps.scenario
	if r.sinks.Tracer != nil {
		var span trace.Span
		ctx, span = r.sinks.Tracer.StartSpan(ctx, "scenario."+sc.ID)
		tracing.AddSpanAttributes(span, map[string]string{
			"scenario.id":     sc.ID,
			"scenario.run_id": runID,
			"scenario.unique": ps.params.Unique,
		})
		defer span.End()
	}

	result := &ScenarioResult{
		RunID:       runID,
		ID:          sc.ID,
		Title:       sc.Title,
		Expectation: sc.Expectation,
		StartedAt:   r.now(),
		TraceID:     tracing.ExtractTraceID(ctx),
	}

	r.logger.Info("scenario started",
		zap.String("scenario_id", sc.ID),
		zap.String("title", sc.Title),
	)

	start := time.Now()
	skipReason := ""
	for i, step := range ps.steps {
		index := i + 1

		if skipReason == "" && ctx.Err() != nil {
			skipReason = "run cancelled"
		}
		if skipReason == "" && step.Wait != WaitNone && len(result.Steps) > 0 {
			if prev := result.Steps[len(result.Steps)-1]; !step.Independent && prev.Status != StatusAcknowledged {
				skipReason = fmt.Sprintf("step %d (%s) was not acknowledged", prev.Step, prev.Name)
			} else if err := r.wait(ctx, r.waitDuration(step.Wait)); err != nil {
				skipReason = "run cancelled"
			}
		}

		if skipReason != "" {
			result.Steps = append(result.Steps, r.skipped(sc.ID, index, step, skipReason))
			continue
		}

		result.Steps = append(result.Steps, r.runStep(ctx, runID, sc.ID, index, step, result.Steps))
	}
	result.Duration = time.Since(start)

	if r.sinks.Metrics != nil {
		r.sinks.Metrics.RecordScenarioDuration(sc.ID, result.Duration)
	}

	return result
}

func (r *Runner) waitDuration(w Wait) time.Duration {
	switch w {
	case WaitResubmit:
		return r.config.Options.ResubmitWait
	case WaitReconcile:
		return r.config.Options.ReconcileWait
	default:
		return 0
	}
}

func (r *Runner) runStep(ctx context.Context, runID, scenarioID string, index int, step plannedStep, previous []StepResult) StepResult {
	now := r.now()
	req := step.Build(&StepEnv{Now: now, Previous: previous})

	sr := StepResult{
		ScenarioID:    scenarioID,
		Step:          index,
		Name:          step.Name,
		Endpoint:      string(step.Endpoint),
		Role:          step.Role,
		Auth:          step.Auth.String(),
		TransactionID: req.Context.TransactionID,
		MessageID:     req.Context.MessageID,
		Timestamp:     now,
	}

	start := time.Now()
	body, err := models.MarshalMinified(req)
	if err != nil {
		sr.Status = StatusFailed
		sr.ErrorMessage = err.Error()
		r.finishStep(ctx, runID, &sr, nil, nil)
		return sr
	}

	resp, err := r.client.Post(ctx, step.Endpoint, body, step.signer)
	sr.Duration = time.Since(start)

	switch {
	case err == nil:
		sr.HTTPStatus = resp.StatusCode
		sr.Ack = resp.Ack
		sr.ErrorCode = resp.ErrorCode
		sr.ErrorMessage = resp.ErrorMessage
		sr.Duration = resp.Duration
		if r.config.KeepResponses {
			sr.Response = string(resp.Body)
		}
		sr.Status = StatusRejected
		if resp.Acknowledged() {
			sr.Status = StatusAcknowledged
		}
	case errors.CategoryOf(err) == errors.CategoryTransport:
		sr.Status = StatusTransportError
		sr.TransportError = err.Error()
	default:
		sr.Status = StatusFailed
		sr.ErrorMessage = err.Error()
	}

	r.finishStep(ctx, runID, &sr, body, resp)
	return sr
}

func (r *Runner) skipped(scenarioID string, index int, step plannedStep, reason string) StepResult {
	sr := StepResult{
		ScenarioID: scenarioID,
		Step:       index,
		Name:       step.Name,
		Endpoint:   string(step.Endpoint),
		Role:       step.Role,
		Auth:       step.Auth.String(),
		Timestamp:  r.now(),
		Status:     StatusSkipped,
		SkipReason: reason,
	}

	if r.sinks.Metrics != nil {
		r.sinks.Metrics.RecordScenarioStep(scenarioID, string(StatusSkipped))
	}
	r.logger.Warn("scenario step skipped",
		zap.String("scenario_id", scenarioID),
		zap.Int("step", index),
		zap.String("name", step.Name),
		zap.String("reason", reason),
	)
	return sr
}

func (r *Runner) finishStep(ctx context.Context, runID string, sr *StepResult, body []byte, resp *nocs.Response) {
	if r.sinks.Metrics != nil {
		r.sinks.Metrics.RecordScenarioStep(sr.ScenarioID, string(sr.Status))
	}

	r.logger.Info("scenario step finished",
		zap.String("scenario_id", sr.ScenarioID),
		zap.Int("step", sr.Step),
		zap.String("name", sr.Name),
		zap.String("status", string(sr.Status)),
		zap.Int("http_status", sr.HTTPStatus),
		zap.String("transaction_id", sr.TransactionID),
		zap.String("message_id", sr.MessageID),
		zap.String("error_code", sr.ErrorCode),
		zap.Duration("duration", sr.Duration),
	)

	if r.sinks.Audit == nil {
		return
	}

	params := &audit.ExchangeLogParams{
		RunID:          runID,
		ScenarioID:     sr.ScenarioID,
		Step:           sr.Step,
		Endpoint:       sr.Endpoint,
		TransactionID:  sr.TransactionID,
		MessageID:      sr.MessageID,
		RequestPayload: body,
		HTTPStatus:     sr.HTTPStatus,
		AckStatus:      sr.Ack,
		ErrorCode:      sr.ErrorCode,
		ErrorMessage:   sr.ErrorMessage,
		TransportError: sr.TransportError,
		Duration:       sr.Duration,
		TraceID:        tracing.ExtractTraceID(ctx),
	}
	if resp != nil {
		params.Authorization = resp.Authorization
		params.ResponseBody = resp.Body
	}

	// Audit failures are logged by the audit service and do not fail the step.
	_ = r.sinks.Audit.LogExchange(context.WithoutCancel(ctx), params)
}

func (r *Runner) publish(ctx context.Context, result *ScenarioResult) {
	if r.sinks.Publisher == nil {
		return
	}

	status := "published"
	id, err := r.sinks.Publisher.Publish(context.WithoutCancel(ctx), ResultKind, result)
	if err != nil {
		status = "error"
		r.logger.Warn("scenario result not published", zap.String("scenario_id", result.ID), zap.Error(err))
	} else {
		r.logger.Debug("scenario result published", zap.String("scenario_id", result.ID), zap.String("entry_id", id))
	}

	if r.sinks.Metrics != nil {
		r.sinks.Metrics.RecordResultPublished(status)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
