// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; required by server, migrate, and seed.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// StaleThreshold is how long a session may go without a heartbeat before the
	// reaper removes it (e.g. "5m").
	StaleThreshold string `mapstructure:"STALE_THRESHOLD"`
	// HeartbeatInterval is the liveness refresh period for admitted sessions (e.g. "60s").
	HeartbeatInterval string `mapstructure:"HEARTBEAT_INTERVAL"`
	// ReapInterval is the server-side background reap period (e.g. "1m").
	ReapInterval string `mapstructure:"REAP_INTERVAL"`
	// DefaultMaxLogins is the seat cap applied when an account's license has no
	// max_simultaneous_logins value.
	DefaultMaxLogins int `mapstructure:"DEFAULT_MAX_LOGINS"`
	// JWTPublicKey is the identity provider's PEM-encoded public key or a path to it;
	// used to validate bearer access tokens. Auth middleware is disabled when empty.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim on access tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim on access tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Session events (optional). When Kafka brokers are set, admission decisions and
	// logouts are emitted to Kafka for the audit worker.
	// SessionEventBrokers is a comma-separated list of Kafka broker addresses.
	SessionEventBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SessionEventTopic is the Kafka topic for session events.
	SessionEventTopic string `mapstructure:"SESSION_EVENTS_TOPIC"`

	// Worker-only: Loki URL for the event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint (e.g. http://localhost:4317).
	// Tracing is disabled when empty.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STALE_THRESHOLD", "5m")
	v.SetDefault("HEARTBEAT_INTERVAL", "60s")
	v.SetDefault("REAP_INTERVAL", "1m")
	v.SetDefault("DEFAULT_MAX_LOGINS", 3)
	// Registered with an empty default so AutomaticEnv materializes the key:
	// Unmarshal only sees env values for keys viper already knows about, and an
	// unseen JWT_PUBLIC_KEY would leave the API unauthenticated.
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "invoicing-auth")
	v.SetDefault("JWT_AUDIENCE", "invoicing-api")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SESSION_EVENTS_TOPIC", "session-events")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "session-events-worker")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DefaultMaxLogins <= 0 {
		return nil, errors.New("config: DEFAULT_MAX_LOGINS must be positive")
	}
	for name, val := range map[string]string{
		"STALE_THRESHOLD":    cfg.StaleThreshold,
		"HEARTBEAT_INTERVAL": cfg.HeartbeatInterval,
		"REAP_INTERVAL":      cfg.ReapInterval,
	} {
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: %s must be a positive duration, got %q", name, val)
		}
	}

	return &cfg, nil
}

// StaleThresholdDuration parses StaleThreshold as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) StaleThresholdDuration() time.Duration {
	d, err := time.ParseDuration(c.StaleThreshold)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// HeartbeatIntervalDuration parses HeartbeatInterval as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) HeartbeatIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.HeartbeatInterval)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ReapIntervalDuration parses ReapInterval as a time.Duration. Returns 1m if unset or invalid.
func (c *Config) ReapIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.ReapInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// SessionEventBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if session events are enabled (non-empty list) and to create the producer.
func (c *Config) SessionEventBrokersList() []string {
	if c == nil || c.SessionEventBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SessionEventBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
