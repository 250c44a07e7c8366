package main

import (
	"nocs-settlement/internal/config"
	"nocs-settlement/pkg/errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type rootOptions struct {
	envFiles []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "nocs",
		Short:         "NOCS settlement conformance client",
		Long:          "nocs signs and sends NOCS settle/report requests, runs the settlement conformance scenarios and hosts a local sandbox that verifies them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.LoadDotEnv(opts.envFiles...)
		},
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load before reading the environment (default .env)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	cmd.AddCommand(
		newRunCmd(opts),
		newListCmd(),
		newSignCmd(opts),
		newVerifyCmd(opts),
		newKeygenCmd(),
		newSandboxCmd(opts),
	)
	return cmd
}

// loadConfig reads and validates the environment. Every failure is a
// configuration error.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", err.Error())
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// newLogger builds a stderr logger; stdout is kept for command output.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Encoding == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "invalid LOG_LEVEL")
		}
		zc.Level = level
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
