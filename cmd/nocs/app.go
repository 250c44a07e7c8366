package main

import (
	"context"
	"database/sql"
	"time"

	redisclient "nocs-settlement/internal/clients/redis"
	"nocs-settlement/internal/config"
	auditrepo "nocs-settlement/internal/repository/audit"
	"nocs-settlement/internal/scenarios"
	"nocs-settlement/internal/services/audit"
	"nocs-settlement/internal/services/metrics"
	"nocs-settlement/internal/services/ondc"
	"nocs-settlement/internal/services/tracing"
	"nocs-settlement/pkg/errors"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// app holds the dependencies shared by the commands. close releases them in
// reverse order of creation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Service
	tracer   *tracing.Service
	closers  []func(context.Context) error
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	tp, shutdown := tracing.NewTracerProvider(cfg.Tracing, logger)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewService(registry),
		tracer:   tracing.NewService(tp, cfg.Tracing.ServiceName),
	}
	a.onClose(shutdown)
	a.onClose(func(context.Context) error {
		_ = logger.Sync()
		return nil
	})
	return a, nil
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
}

// signers loads the collector key and, when configured, the receiver key.
func (a *app) signers() (scenarios.Signers, error) {
	raw, err := ondc.LoadPrivateKey(a.cfg.ONDC.PrivateKey, a.cfg.ONDC.PrivateKeyPath)
	if err != nil {
		return scenarios.Signers{}, err
	}
	collector, err := ondc.NewRequestSigner(ondc.SignerConfig{
		SubscriberID: a.cfg.ONDC.SubscriberID,
		UniqueKeyID:  a.cfg.ONDC.UkID,
		PrivateKey:   raw,
	})
	if err != nil {
		return scenarios.Signers{}, err
	}

	signers := scenarios.Signers{Collector: collector}
	if !a.cfg.Receiver.HasKey() {
		return signers, nil
	}

	raw, err = ondc.LoadPrivateKey(a.cfg.Receiver.PrivateKey, a.cfg.Receiver.PrivateKeyPath)
	if err != nil {
		return scenarios.Signers{}, err
	}
	signers.Receiver, err = ondc.NewRequestSigner(ondc.SignerConfig{
		SubscriberID: a.cfg.Receiver.AppID,
		UniqueKeyID:  a.cfg.Receiver.UkID,
		PrivateKey:   raw,
	})
	if err != nil {
		return scenarios.Signers{}, err
	}
	return signers, nil
}

// sinks connects the optional audit store and result stream.
func (a *app) sinks(ctx context.Context) (scenarios.Sinks, error) {
	sinks := scenarios.Sinks{
		Metrics: a.metrics,
		Tracer:  a.tracer,
	}

	if a.cfg.Audit.Enabled {
		auditService, err := a.auditService(ctx)
		if err != nil {
			return sinks, err
		}
		sinks.Audit = auditService
	}

	if a.cfg.Results.Enabled {
		rdb, err := redisclient.NewClient(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return sinks, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "results redis unavailable")
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
		sinks.Publisher = redisclient.NewResultPublisher(rdb, a.cfg.Results.Stream, a.logger)
	}

	return sinks, nil
}

func (a *app) auditService(ctx context.Context) (*audit.Service, error) {
	pg := a.cfg.PostgresE
	db, err := sql.Open("postgres", pg.DSN())
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "audit database unavailable")
	}
	if pg.MaxConnections > 0 {
		db.SetMaxOpenConns(pg.MaxConnections)
	}
	if pg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(pg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(pg.ConnectionMaxLifetime)
	a.onClose(func(context.Context) error { return db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "audit database unavailable")
	}

	repo := auditrepo.NewRepository(db, a.logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return audit.NewService(repo, a.metrics, a.logger), nil
}

// trustedRegistry holds the public keys of the configured participants plus
// SANDBOX_TRUSTED_KEYS.
func (a *app) trustedRegistry(signers scenarios.Signers) (*ondc.StaticRegistry, error) {
	registry := ondc.NewStaticRegistry()
	for _, s := range []*ondc.RequestSigner{signers.Collector, signers.Receiver} {
		if s != nil {
			registry.Register(s.KeyID().SubscriberID, s.KeyID().UniqueKeyID, s.PublicKey())
		}
	}
	if err := registry.ParseTrustedKeys(a.cfg.Sandbox.TrustedKeys); err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "invalid SANDBOX_TRUSTED_KEYS")
	}
	return registry, nil
}
