package sandbox

import (
	"context"
	"net/http"
	"testing"
	"time"

	"nocs-settlement/internal/clients/nocs"
	"nocs-settlement/internal/config"
	"nocs-settlement/internal/middleware"
	"nocs-settlement/internal/scenarios"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startSandbox(t *testing.T, handler http.Handler) *Server {
	t.Helper()
	server, err := Listen(config.SandboxConfig{Host: "127.0.0.1", Port: 0}, handler, zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, server.Shutdown(ctx))
		require.NoError(t, <-done)
	})
	return server
}

func TestSandbox_ScenariosEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signers := scenarios.Signers{
		Collector: newSigner(t, "collector.example", 1),
		Receiver:  newSigner(t, "receiver.example", 2),
	}
	server := startSandbox(t, NewRouter(newVerifier(signers.Collector, signers.Receiver), nil, nil, zap.NewNop()))

	client := nocs.NewClient(config.NOCSConfig{
		SettleURL:   server.BaseURL() + SettlePath,
		ReportURL:   server.BaseURL() + ReportPath,
		HTTPTimeout: 5 * time.Second,
		UserAgent:   config.DefaultUserAgent,
	}, nil, nil, nil, zap.NewNop())

	runner := scenarios.NewRunner(scenarios.RunnerConfig{
		Identity: scenarios.Identity{
			BapID:          "collector.example",
			BapURI:         "https://collector.example/nocs",
			BppID:          "sa_nocs.nbbl.com",
			BppURI:         "https://sa_nocs.nbbl.com/nocs_test",
			CollectorAppID: "collector.example",
			ReceiverAppID:  "receiver.example",
		},
		Options: config.ScenarioConfig{
			InvalidBapID:            "invalid-bap-id.samhita.org",
			MismatchedReceiverAppID: "different-receiver.samhita.org",
		},
	}, client, signers, scenarios.Sinks{}, zap.NewNop())

	selected, err := scenarios.Select([]string{"TC_01", "TC_02", "TC_03", "TC_13", "TC_24"})
	require.NoError(t, err)

	report, err := runner.Run(context.Background(), selected)
	require.NoError(t, err)
	require.Len(t, report.Scenarios, 5)

	byID := map[string]scenarios.ScenarioResult{}
	for _, sc := range report.Scenarios {
		byID[sc.ID] = sc
	}

	missingType := byID["TC_01"].Steps[0]
	assert.Equal(t, scenarios.StatusRejected, missingType.Status)
	assert.Equal(t, http.StatusBadRequest, missingType.HTTPStatus)
	assert.Equal(t, middleware.NACKCodeMissingSettlementType, missingType.ErrorCode)

	for _, id := range []string{"TC_02", "TC_03"} {
		step := byID[id].Steps[0]
		assert.Equal(t, scenarios.StatusRejected, step.Status, id)
		assert.Equal(t, http.StatusUnauthorized, step.HTTPStatus, id)
		assert.Equal(t, middleware.NACKCodeAuthFailed, step.ErrorCode, id)
	}

	for _, id := range []string{"TC_13", "TC_24"} {
		sc := byID[id]
		require.Len(t, sc.Steps, 2, id)
		for _, step := range sc.Steps {
			assert.Equal(t, scenarios.StatusAcknowledged, step.Status, "%s %s", id, step.Name)
		}
		assert.True(t, sc.Completed(), id)
	}
	assert.Equal(t, scenarios.RoleReceiver, byID["TC_13"].Steps[1].Role)
}
