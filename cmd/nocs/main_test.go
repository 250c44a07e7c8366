package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nocs-settlement/internal/handlers/sandbox"
	"nocs-settlement/internal/scenarios"
	"nocs-settlement/internal/services/ondc"
	"nocs-settlement/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testKey = ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, ed25519.SeedSize))

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ONDC_SUBSCRIBER_ID", "collector.example")
	t.Setenv("ONDC_UK_ID", "UKID-1")
	t.Setenv("ONDC_PRIVATE_KEY", base64.StdEncoding.EncodeToString(testKey))
	t.Setenv("ONDC_BAP_URI", "https://collector.example/nocs")
	t.Setenv("RECEIVER_APP_ID", "receiver.example")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_ENCODING", "json")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "", "list")
	require.NoError(t, err)

	for _, sc := range scenarios.Catalog() {
		assert.Contains(t, out, sc.ID)
	}
}

func TestKeygenCommand(t *testing.T) {
	out, err := execute(t, "", "keygen", "--subscriber", "np.example", "--uk-id", "UK-9")
	require.NoError(t, err)

	values := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, ok := strings.Cut(line, "=")
		require.True(t, ok, line)
		values[k] = v
	}

	raw, err := ondc.DecodePrivateKey(values["private_key"])
	require.NoError(t, err)
	pub, err := ondc.PublicKeyFromExtended(raw)
	require.NoError(t, err)
	assert.Equal(t, ondc.EncodePublicKey(pub), values["public_key"])
	assert.Equal(t, "np.example|UK-9="+values["public_key"], strings.TrimPrefix(lastLine(out), "trusted_key="))
}

func TestSignAndVerifyCommands(t *testing.T) {
	setTestEnv(t)
	body := `{"context":{"action":"settle"},"message":{}}`

	out, err := execute(t, body, "sign", "--created", "1700000000")
	require.NoError(t, err)
	header := lastLine(out)
	assert.True(t, strings.HasPrefix(header, `Signature keyId="collector.example|UKID-1|ed25519",algorithm="ed25519",created="1700000000",expires="1700003600"`), header)

	expected, err := ondc.Sign([]byte(body), ondc.KeyID{SubscriberID: "collector.example", UniqueKeyID: "UKID-1"}, testKey, time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, expected, header)

	pub := ondc.EncodePublicKey(testKey.Public().(ed25519.PublicKey))
	out, err = execute(t, body, "verify", "--header", header, "--public-key", pub)
	require.NoError(t, err)
	assert.Contains(t, out, "valid: keyId=collector.example|UKID-1|ed25519")

	_, err = execute(t, body+" ", "verify", "--header", header, "--public-key", pub)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryRejection, errors.CategoryOf(err))
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestVerifyCommand_ConfiguredRegistry(t *testing.T) {
	setTestEnv(t)
	body := `{"context":{"action":"report"},"message":{}}`

	out, err := execute(t, body, "sign")
	require.NoError(t, err)

	out, err = execute(t, body, "verify", "--header", lastLine(out))
	require.NoError(t, err)
	assert.Contains(t, out, "valid:")

	foreign, err := execute(t, body, "sign", "--subscriber", "someone-else.example")
	require.NoError(t, err)
	_, err = execute(t, body, "verify", "--header", lastLine(foreign))
	require.Error(t, err)
}

func TestSignCommand_Compact(t *testing.T) {
	setTestEnv(t)

	out, err := execute(t, "{\n  \"a\": 1\n}\n", "sign", "--compact", "--verbose", "--created", "1700000000")
	require.NoError(t, err)
	assert.Contains(t, out, `body: {"a":1}`)
	assert.Contains(t, out, "(created): 1700000000\n(expires): 1700003600\ndigest: BLAKE-512=")
}

func TestConfigurationErrorsExitWithCode2(t *testing.T) {
	tests := []struct {
		name string
		env  bool
		args []string
	}{
		{name: "unknown scenario", env: true, args: []string{"run", "--scenario", "TC_99"}},
		{name: "missing signing identity", env: false, args: []string{"run"}},
		{name: "receiver key not configured", env: true, args: []string{"sign", "--as", "receiver"}},
		{name: "bad log level", env: true, args: []string{"sign", "--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env {
				setTestEnv(t)
			} else {
				t.Setenv("ONDC_SUBSCRIBER_ID", "")
				t.Setenv("ONDC_PRIVATE_KEY", "")
			}
			_, err := execute(t, "{}", tt.args...)
			require.Error(t, err)
			assert.Equal(t, exitConfiguration, exitCode(err), err.Error())
		})
	}
}

func TestRunCommand_AgainstSandbox(t *testing.T) {
	setTestEnv(t)
	gin.SetMode(gin.TestMode)

	signer, err := ondc.NewRequestSigner(ondc.SignerConfig{SubscriberID: "collector.example", UniqueKeyID: "UKID-1", PrivateKey: testKey})
	require.NoError(t, err)
	registry := ondc.NewStaticRegistry()
	registry.Register("collector.example", "UKID-1", signer.PublicKey())

	server := httptest.NewServer(sandbox.NewRouter(ondc.NewVerifier(registry, time.Minute, zap.NewNop()), nil, nil, zap.NewNop()))
	defer server.Close()

	t.Setenv("NOCS_SETTLE_URL", server.URL+sandbox.SettlePath)
	t.Setenv("NOCS_REPORT_URL", server.URL+sandbox.ReportPath)
	t.Setenv("RESUBMIT_WAIT", "0s")

	out, err := execute(t, "", "run", "--scenario", "TC_01,tc24", "--json")
	require.NoError(t, err)

	var report scenarios.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	require.Len(t, report.Scenarios, 2)

	assert.Equal(t, "TC_01", report.Scenarios[0].ID)
	assert.Equal(t, scenarios.StatusRejected, report.Scenarios[0].Steps[0].Status)
	assert.Equal(t, "70002", report.Scenarios[0].Steps[0].ErrorCode)

	assert.Equal(t, "TC_24", report.Scenarios[1].ID)
	require.Len(t, report.Scenarios[1].Steps, 2)
	for _, step := range report.Scenarios[1].Steps {
		assert.Equal(t, scenarios.StatusAcknowledged, step.Status, step.Name)
	}
}
