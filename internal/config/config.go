package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultSettleURL = "https://ondcnbbl.npci.org.in/nocs/v2/settle"
	DefaultReportURL = "https://ondcnbbl.npci.org.in/nocs/v2/report"
	DefaultUserAgent = "nocs-user/2.0.0"
)

type Config struct {
	NOCS           NOCSConfig
	ONDC           ONDCConfig
	Receiver       ReceiverConfig
	Scenario       ScenarioConfig
	CircuitBreaker CircuitBreakerConfig
	Audit          AuditConfig
	PostgresE      PostgresConfig
	Results        ResultsConfig
	Redis          RedisConfig
	Sandbox        SandboxConfig
	Logging        LoggingConfig
	Tracing        TracingConfig
}

// NOCSConfig is the remote settlement endpoint.
type NOCSConfig struct {
	SettleURL   string
	ReportURL   string
	HTTPTimeout time.Duration
	UserAgent   string
}

// ONDCConfig is the collector identity. Requests are signed with this key
// unless a scenario step acts as the receiver.
type ONDCConfig struct {
	SubscriberID   string
	UkID           string
	PrivateKey     string
	PrivateKeyPath string
	BapID          string
	BapURI         string
	BppID          string
	BppURI         string
	CollectorAppID string
}

// ReceiverConfig is the counterparty used by two-way reconciliation steps.
type ReceiverConfig struct {
	AppID          string
	UkID           string
	PrivateKey     string
	PrivateKeyPath string
}

// HasKey reports whether receiver signing material is configured.
func (r ReceiverConfig) HasKey() bool {
	return strings.TrimSpace(r.PrivateKey) != "" || r.PrivateKeyPath != ""
}

type ScenarioConfig struct {
	ReconcileWait           time.Duration
	ResubmitWait            time.Duration
	InvalidBapID            string
	MismatchedReceiverAppID string
	ReportRefTransactionID  string
	ReportRefMessageID      string
}

type CircuitBreakerConfig struct {
	FailureThreshold int
	Timeout          time.Duration
}

type AuditConfig struct {
	Enabled bool
}

type PostgresConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	DB                    string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// DSN returns a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DB, sslMode)
}

type ResultsConfig struct {
	Enabled bool
	Stream  string
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	TLS       bool
	KeyPrefix string
	PoolSize  int
}

type SandboxConfig struct {
	Host        string
	Port        int
	TrustedKeys string
	ClockSkew   time.Duration
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

type TracingConfig struct {
	Enabled     bool
	SampleRate  float64
	ServiceName string
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set are not overridden.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

func LoadConfig() (*Config, error) {
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("NOCS_SETTLE_URL", DefaultSettleURL)
	viper.SetDefault("NOCS_REPORT_URL", DefaultReportURL)
	viper.SetDefault("NOCS_HTTP_TIMEOUT", "30s")
	viper.SetDefault("NOCS_USER_AGENT", DefaultUserAgent)
	viper.SetDefault("ONDC_BPP_ID", "sa_nocs.nbbl.com")
	viper.SetDefault("ONDC_BPP_URI", "https://sa_nocs.nbbl.com/nocs_test")
	viper.SetDefault("RECEIVER_APP_ID", "SellerAppTestdata12.com")
	viper.SetDefault("RECONCILE_WAIT", "10s")
	viper.SetDefault("RESUBMIT_WAIT", "2s")
	viper.SetDefault("INVALID_BAP_ID", "invalid-bap-id.samhita.org")
	viper.SetDefault("MISMATCHED_RECEIVER_APP_ID", "different-receiver.samhita.org")
	viper.SetDefault("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 3)
	viper.SetDefault("CIRCUIT_BREAKER_TIMEOUT", "60s")
	viper.SetDefault("POSTGRES_E_PORT", 5432)
	viper.SetDefault("POSTGRES_E_CONNECTION_MAX_LIFETIME", "1h")
	viper.SetDefault("RESULTS_STREAM", "nocs.scenario.results")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("SANDBOX_HOST", "127.0.0.1")
	viper.SetDefault("SANDBOX_PORT", 8090)
	viper.SetDefault("SANDBOX_CLOCK_SKEW", "30s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_ENCODING", "console")
	viper.SetDefault("TRACING_SAMPLE_RATE", 1.0)
	viper.SetDefault("TRACING_SERVICE_NAME", "nocs-settlement")

	httpTimeout, err := parseDurationWithDefault(viper.GetString("NOCS_HTTP_TIMEOUT"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid NOCS_HTTP_TIMEOUT: %w", err)
	}
	reconcileWait, err := parseDurationWithDefault(viper.GetString("RECONCILE_WAIT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_WAIT: %w", err)
	}
	resubmitWait, err := parseDurationWithDefault(viper.GetString("RESUBMIT_WAIT"), 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid RESUBMIT_WAIT: %w", err)
	}
	breakerTimeout, err := parseDurationWithDefault(viper.GetString("CIRCUIT_BREAKER_TIMEOUT"), time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid CIRCUIT_BREAKER_TIMEOUT: %w", err)
	}
	clockSkew, err := parseDurationWithDefault(viper.GetString("SANDBOX_CLOCK_SKEW"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SANDBOX_CLOCK_SKEW: %w", err)
	}

	subscriberID := viper.GetString("ONDC_SUBSCRIBER_ID")
	ukID := viper.GetString("ONDC_UK_ID")

	cfg := &Config{
		NOCS: NOCSConfig{
			SettleURL:   viper.GetString("NOCS_SETTLE_URL"),
			ReportURL:   viper.GetString("NOCS_REPORT_URL"),
			HTTPTimeout: httpTimeout,
			UserAgent:   viper.GetString("NOCS_USER_AGENT"),
		},
		ONDC: ONDCConfig{
			SubscriberID:   subscriberID,
			UkID:           ukID,
			PrivateKey:     viper.GetString("ONDC_PRIVATE_KEY"),
			PrivateKeyPath: viper.GetString("ONDC_PRIVATE_KEY_PATH"),
			BapID:          firstNonEmpty(viper.GetString("ONDC_BAP_ID"), subscriberID),
			BapURI:         viper.GetString("ONDC_BAP_URI"),
			BppID:          viper.GetString("ONDC_BPP_ID"),
			BppURI:         viper.GetString("ONDC_BPP_URI"),
			CollectorAppID: firstNonEmpty(viper.GetString("COLLECTOR_APP_ID"), subscriberID),
		},
		Receiver: ReceiverConfig{
			AppID:          viper.GetString("RECEIVER_APP_ID"),
			UkID:           firstNonEmpty(viper.GetString("RECEIVER_UK_ID"), ukID),
			PrivateKey:     viper.GetString("RECEIVER_PRIVATE_KEY"),
			PrivateKeyPath: viper.GetString("RECEIVER_PRIVATE_KEY_PATH"),
		},
		Scenario: ScenarioConfig{
			ReconcileWait:           reconcileWait,
			ResubmitWait:            resubmitWait,
			InvalidBapID:            viper.GetString("INVALID_BAP_ID"),
			MismatchedReceiverAppID: viper.GetString("MISMATCHED_RECEIVER_APP_ID"),
			ReportRefTransactionID:  viper.GetString("REPORT_REF_TRANSACTION_ID"),
			ReportRefMessageID:      viper.GetString("REPORT_REF_MESSAGE_ID"),
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: viper.GetInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD"),
			Timeout:          breakerTimeout,
		},
		Audit: AuditConfig{
			Enabled: viper.GetBool("AUDIT_ENABLED"),
		},
		PostgresE: func() PostgresConfig {
			connMaxLifetime, _ := parseDurationWithDefault(viper.GetString("POSTGRES_E_CONNECTION_MAX_LIFETIME"), time.Hour)
			return PostgresConfig{
				Host:                  viper.GetString("POSTGRES_E_HOST"),
				Port:                  viper.GetInt("POSTGRES_E_PORT"),
				User:                  viper.GetString("POSTGRES_E_USER"),
				Password:              viper.GetString("POSTGRES_E_PASSWORD"),
				DB:                    viper.GetString("POSTGRES_E_DB"),
				SSLMode:               viper.GetString("POSTGRES_E_SSL_MODE"),
				MaxConnections:        viper.GetInt("POSTGRES_E_MAX_CONNECTIONS"),
				MaxIdleConnections:    viper.GetInt("POSTGRES_E_MAX_IDLE_CONNECTIONS"),
				ConnectionMaxLifetime: connMaxLifetime,
			}
		}(),
		Results: ResultsConfig{
			Enabled: viper.GetBool("RESULTS_PUBLISH_ENABLED"),
			Stream:  viper.GetString("RESULTS_STREAM"),
		},
		Redis: RedisConfig{
			Host:      viper.GetString("REDIS_HOST"),
			Port:      viper.GetInt("REDIS_PORT"),
			Password:  viper.GetString("REDIS_PASSWORD"),
			DB:        viper.GetInt("REDIS_DB"),
			TLS:       viper.GetBool("REDIS_TLS"),
			KeyPrefix: viper.GetString("REDIS_KEY_PREFIX"),
			PoolSize:  viper.GetInt("REDIS_POOL_SIZE"),
		},
		Sandbox: SandboxConfig{
			Host:        viper.GetString("SANDBOX_HOST"),
			Port:        viper.GetInt("SANDBOX_PORT"),
			TrustedKeys: viper.GetString("SANDBOX_TRUSTED_KEYS"),
			ClockSkew:   clockSkew,
		},
		Logging: LoggingConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
		Tracing: TracingConfig{
			Enabled:     viper.GetBool("TRACING_ENABLED"),
			SampleRate:  viper.GetFloat64("TRACING_SAMPLE_RATE"),
			ServiceName: viper.GetString("TRACING_SERVICE_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateNOCS(); err != nil {
		return fmt.Errorf("nocs config: %w", err)
	}
	if err := c.validateONDC(); err != nil {
		return fmt.Errorf("ondc config: %w", err)
	}
	if err := c.validateScenario(); err != nil {
		return fmt.Errorf("scenario config: %w", err)
	}
	if err := c.validateCircuitBreaker(); err != nil {
		return fmt.Errorf("circuit breaker config: %w", err)
	}
	if c.Audit.Enabled {
		if err := c.validatePostgresE(); err != nil {
			return fmt.Errorf("postgres-e config: %w", err)
		}
	}
	if c.Results.Enabled {
		if err := c.validateRedis(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}
	if err := c.validateSandbox(); err != nil {
		return fmt.Errorf("sandbox config: %w", err)
	}
	return nil
}

func (c *Config) validateNOCS() error {
	if err := validateURL(c.NOCS.SettleURL); err != nil {
		return fmt.Errorf("settle url: %w", err)
	}
	if err := validateURL(c.NOCS.ReportURL); err != nil {
		return fmt.Errorf("report url: %w", err)
	}
	if c.NOCS.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be greater than 0")
	}
	if c.NOCS.UserAgent == "" {
		return fmt.Errorf("user agent is required")
	}
	return nil
}

func (c *Config) validateONDC() error {
	if c.ONDC.SubscriberID == "" {
		return fmt.Errorf("subscriber id is required")
	}
	if c.ONDC.UkID == "" {
		return fmt.Errorf("uk id is required")
	}
	if strings.TrimSpace(c.ONDC.PrivateKey) == "" && c.ONDC.PrivateKeyPath == "" {
		return fmt.Errorf("private key or private key path is required")
	}
	if c.ONDC.BapURI == "" {
		return fmt.Errorf("bap uri is required")
	}
	return nil
}

func (c *Config) validateScenario() error {
	if c.Scenario.ReconcileWait < 0 {
		return fmt.Errorf("reconcile wait must not be negative")
	}
	if c.Scenario.ResubmitWait < 0 {
		return fmt.Errorf("resubmit wait must not be negative")
	}
	if c.Scenario.InvalidBapID == c.ONDC.SubscriberID {
		return fmt.Errorf("invalid bap id must differ from the subscriber id")
	}
	if (c.Scenario.ReportRefTransactionID == "") != (c.Scenario.ReportRefMessageID == "") {
		return fmt.Errorf("report ref transaction id and message id must be set together")
	}
	return nil
}

func (c *Config) validateCircuitBreaker() error {
	if c.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be greater than 0")
	}
	if c.CircuitBreaker.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

func (c *Config) validatePostgresE() error {
	if c.PostgresE.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.PostgresE.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.PostgresE.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.PostgresE.DB == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Redis.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Results.Stream == "" {
		return fmt.Errorf("results stream is required")
	}
	return nil
}

func (c *Config) validateSandbox() error {
	if c.Sandbox.Port <= 0 || c.Sandbox.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Sandbox.ClockSkew < 0 {
		return fmt.Errorf("clock skew must not be negative")
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDurationWithDefault(s string, defaultDuration time.Duration) (time.Duration, error) {
	if s == "" {
		return defaultDuration, nil
	}
	return time.ParseDuration(s)
}
