package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway.
type Config struct {
	Server   ServerConfig
	Gateway  GatewayConfig
	Upstream UpstreamConfig
}

type ServerConfig struct {
	Port         int           `mapstructure:"GATEWAY_PORT"`
	ReadTimeout  time.Duration `mapstructure:"GATEWAY_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"GATEWAY_WRITE_TIMEOUT"`
	RateLimit    int           `mapstructure:"GATEWAY_RATE_LIMIT"`
	MaxBodyBytes int64         `mapstructure:"GATEWAY_MAX_BODY_BYTES"`
	GinMode      string        `mapstructure:"GIN_MODE"`
}

// GatewayConfig holds the coalescing and long-poll timings. Follower knobs
// keep duplicate-request latency sub-second; the long-poll timeout
// accommodates slow external verifiers.
type GatewayConfig struct {
	IdempotencyTTL  time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	LockTTL         time.Duration `mapstructure:"LOCK_TTL"`
	LongPollTimeout time.Duration `mapstructure:"LONGPOLL_TIMEOUT"`
	PollInterval    time.Duration `mapstructure:"FOLLOWER_POLL_INTERVAL"`
	FollowerGrace   time.Duration `mapstructure:"FOLLOWER_GRACE"`
	SweepInterval   time.Duration `mapstructure:"CACHE_SWEEP_INTERVAL"`
}

type UpstreamConfig struct {
	URL         string `mapstructure:"UPSTREAM_URL"`
	CallbackURL string `mapstructure:"CALLBACK_URL"`
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("GATEWAY_PORT", 8080)
	viper.SetDefault("GATEWAY_READ_TIMEOUT", "10s")
	// Write timeout must exceed the long-poll budget or parked connections
	// get cut off mid-wait.
	viper.SetDefault("GATEWAY_WRITE_TIMEOUT", "90s")
	viper.SetDefault("GATEWAY_RATE_LIMIT", 300)
	viper.SetDefault("GATEWAY_MAX_BODY_BYTES", 1<<20)
	viper.SetDefault("GIN_MODE", "debug")

	viper.SetDefault("IDEMPOTENCY_TTL", "5m")
	viper.SetDefault("LOCK_TTL", "30s")
	viper.SetDefault("LONGPOLL_TIMEOUT", "60s")
	viper.SetDefault("FOLLOWER_POLL_INTERVAL", "50ms")
	viper.SetDefault("FOLLOWER_GRACE", "800ms")
	viper.SetDefault("CACHE_SWEEP_INTERVAL", "1m")

	viper.SetDefault("UPSTREAM_URL", "http://localhost:9090/verify")
	viper.SetDefault("CALLBACK_URL", "http://localhost:8080/api/v1/webhook")

	// Attempt to read .env file (non-fatal if missing)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	cfg.Server.Port = viper.GetInt("GATEWAY_PORT")
	cfg.Server.ReadTimeout = viper.GetDuration("GATEWAY_READ_TIMEOUT")
	cfg.Server.WriteTimeout = viper.GetDuration("GATEWAY_WRITE_TIMEOUT")
	cfg.Server.RateLimit = viper.GetInt("GATEWAY_RATE_LIMIT")
	cfg.Server.MaxBodyBytes = viper.GetInt64("GATEWAY_MAX_BODY_BYTES")
	cfg.Server.GinMode = viper.GetString("GIN_MODE")
	cfg.Gateway.IdempotencyTTL = viper.GetDuration("IDEMPOTENCY_TTL")
	cfg.Gateway.LockTTL = viper.GetDuration("LOCK_TTL")
	cfg.Gateway.LongPollTimeout = viper.GetDuration("LONGPOLL_TIMEOUT")
	cfg.Gateway.PollInterval = viper.GetDuration("FOLLOWER_POLL_INTERVAL")
	cfg.Gateway.FollowerGrace = viper.GetDuration("FOLLOWER_GRACE")
	cfg.Gateway.SweepInterval = viper.GetDuration("CACHE_SWEEP_INTERVAL")
	cfg.Upstream.URL = viper.GetString("UPSTREAM_URL")
	cfg.Upstream.CallbackURL = viper.GetString("CALLBACK_URL")

	return cfg, nil
}
