package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultPort           = "8080"
	defaultGatewayBaseURL = "https://api.xendit.co"
	defaultGatewayTimeout = "10s"
	defaultDedupTTL       = "24h"
	defaultJWTAccessTTL   = "24h"
)

// Config holds the runtime configuration of the payment engine. Secrets are
// required; the dedup ledger and the notification broker are optional and the
// engine degrades to running without them.
type Config struct {
	Port        string
	DatabaseURL string

	JWTSecret    string
	JWTAccessTTL time.Duration

	GatewayBaseURL   string
	GatewaySecretKey string
	GatewayTimeout   time.Duration

	WebhookCallbackToken string
	PublicBaseURL        string

	DedupTTL      time.Duration
	RedisAddr     string
	RedisPassword string

	AMQPURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", defaultPort),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:            strings.TrimSpace(os.Getenv("JWT_SECRET")),
		GatewayBaseURL:       getEnv("GATEWAY_BASE_URL", defaultGatewayBaseURL),
		GatewaySecretKey:     strings.TrimSpace(os.Getenv("GATEWAY_SECRET_KEY")),
		WebhookCallbackToken: strings.TrimSpace(os.Getenv("WEBHOOK_CALLBACK_TOKEN")),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		AMQPURL:              amqpURL(),
	}

	var err error
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout, err = parseDurationEnv("GATEWAY_TIMEOUT", defaultGatewayTimeout); err != nil {
		return nil, err
	}
	if cfg.DedupTTL, err = parseDurationEnv("DEDUP_TTL", defaultDedupTTL); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GatewaySecretKey == "" {
		return fmt.Errorf("GATEWAY_SECRET_KEY is required")
	}
	if cfg.WebhookCallbackToken == "" {
		return fmt.Errorf("WEBHOOK_CALLBACK_TOKEN is required")
	}
	if cfg.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.DedupTTL <= 0 {
		return fmt.Errorf("DEDUP_TTL must be > 0")
	}
	return nil
}

// SuccessRedirectURL is where the gateway sends the customer after paying.
func (c *Config) SuccessRedirectURL() string { return c.PublicBaseURL + "/payment/success" }

// FailureRedirectURL is where the gateway sends the customer after a failed
// or abandoned checkout.
func (c *Config) FailureRedirectURL() string { return c.PublicBaseURL + "/payment/failure" }

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, raw)
	}
	return d, nil
}
