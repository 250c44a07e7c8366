package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ONDC_SUBSCRIBER_ID", "collector.example")
	t.Setenv("ONDC_UK_ID", "UKID-1")
	t.Setenv("ONDC_PRIVATE_KEY_PATH", "/test/private.key")
	t.Setenv("ONDC_BAP_URI", "https://collector.example/nocs")
}

func TestLoadConfig_Success(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, DefaultSettleURL, cfg.NOCS.SettleURL)
	assert.Equal(t, DefaultReportURL, cfg.NOCS.ReportURL)
	assert.Equal(t, 30*time.Second, cfg.NOCS.HTTPTimeout)
	assert.Equal(t, "nocs-user/2.0.0", cfg.NOCS.UserAgent)
	assert.Equal(t, "collector.example", cfg.ONDC.BapID)
	assert.Equal(t, "collector.example", cfg.ONDC.CollectorAppID)
	assert.Equal(t, "sa_nocs.nbbl.com", cfg.ONDC.BppID)
	assert.Equal(t, "https://sa_nocs.nbbl.com/nocs_test", cfg.ONDC.BppURI)
	assert.Equal(t, "SellerAppTestdata12.com", cfg.Receiver.AppID)
	assert.Equal(t, "UKID-1", cfg.Receiver.UkID)
	assert.False(t, cfg.Receiver.HasKey())
	assert.Equal(t, 10*time.Second, cfg.Scenario.ReconcileWait)
	assert.Equal(t, 2*time.Second, cfg.Scenario.ResubmitWait)
	assert.Equal(t, 8090, cfg.Sandbox.Port)
	assert.False(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Results.Enabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NOCS_SETTLE_URL", "http://127.0.0.1:8090/nocs/v2/settle")
	t.Setenv("RECONCILE_WAIT", "250ms")
	t.Setenv("RESUBMIT_WAIT", "0s")
	t.Setenv("ONDC_BAP_ID", "bap.example")
	t.Setenv("RECEIVER_UK_ID", "UKID-R")
	t.Setenv("RECEIVER_PRIVATE_KEY", "abc")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8090/nocs/v2/settle", cfg.NOCS.SettleURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Scenario.ReconcileWait)
	assert.Equal(t, time.Duration(0), cfg.Scenario.ResubmitWait)
	assert.Equal(t, "bap.example", cfg.ONDC.BapID)
	assert.Equal(t, "collector.example", cfg.ONDC.CollectorAppID)
	assert.Equal(t, "UKID-R", cfg.Receiver.UkID)
	assert.True(t, cfg.Receiver.HasKey())
}

func TestLoadConfig_MissingSubscriberID(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ONDC_SUBSCRIBER_ID", "")
	os.Unsetenv("ONDC_SUBSCRIBER_ID")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "ondc config")
	assert.Contains(t, err.Error(), "subscriber id is required")
}

func TestLoadConfig_MissingPrivateKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ONDC_PRIVATE_KEY_PATH", "")
	os.Unsetenv("ONDC_PRIVATE_KEY_PATH")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "private key or private key path is required")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RECONCILE_WAIT", "ten seconds")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid RECONCILE_WAIT")
}

func TestLoadConfig_InvalidEndpoint(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NOCS_REPORT_URL", "ftp://nocs.example/report")

	cfg, err := LoadConfig()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "report url")
}

func TestLoadConfig_AuditRequiresPostgres(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUDIT_ENABLED", "true")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres-e config")

	t.Setenv("POSTGRES_E_HOST", "localhost")
	t.Setenv("POSTGRES_E_USER", "nocs")
	t.Setenv("POSTGRES_E_DB", "nocs_audit")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5432 user=nocs password= dbname=nocs_audit sslmode=disable", cfg.PostgresE.DSN())
}

func TestLoadConfig_ResultsRequireRedis(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RESULTS_PUBLISH_ENABLED", "true")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis config")

	t.Setenv("REDIS_HOST", "localhost")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "nocs.scenario.results", cfg.Results.Stream)
}

func TestLoadConfig_ReportRefsSetTogether(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REPORT_REF_TRANSACTION_ID", "tc04-txn-f212ef6b")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("NOCS_DOTENV_PROBE", "")
	os.Unsetenv("NOCS_DOTENV_PROBE")
	t.Setenv("NOCS_DOTENV_KEEP", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOCS_DOTENV_PROBE=loaded\nNOCS_DOTENV_KEEP=from-file\n"), 0600))

	LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path)

	assert.Equal(t, "loaded", os.Getenv("NOCS_DOTENV_PROBE"))
	assert.Equal(t, "from-env", os.Getenv("NOCS_DOTENV_KEEP"))
}
