package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nocs-settlement/internal/handlers/sandbox"
	"nocs-settlement/internal/services/ondc"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newSandboxCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a local NOCS endpoint that verifies signatures",
		Long: `Sandbox serves POST /nocs/v2/settle and /nocs/v2/report. Requests must
be signed by the configured collector or receiver key, or by a key listed in
SANDBOX_TRUSTED_KEYS. Valid envelopes are acknowledged; nothing is settled.
Point NOCS_SETTLE_URL and NOCS_REPORT_URL at it to rehearse a run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("port") {
				a.cfg.Sandbox.Port = port
			}
			return serveSandbox(ctx, cmd, a)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override SANDBOX_PORT")
	return cmd
}

func serveSandbox(ctx context.Context, cmd *cobra.Command, a *app) error {
	signers, err := a.signers()
	if err != nil {
		return err
	}
	registry, err := a.trustedRegistry(signers)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	verifier := ondc.NewVerifier(registry, a.cfg.Sandbox.ClockSkew, a.logger)
	router := sandbox.NewRouter(verifier, a.metrics, a.registry, a.logger)

	server, err := sandbox.Listen(a.cfg.Sandbox, router, a.logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "NOCS_SETTLE_URL=%s%s\nNOCS_REPORT_URL=%s%s\n",
		server.BaseURL(), sandbox.SettlePath, server.BaseURL(), sandbox.ReportPath)
	a.logger.Info("sandbox ready",
		zap.String("address", server.Addr()),
		zap.Int("trusted_keys", registry.Len()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Serve)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
