package config

import (
	"os"
	"strconv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	AdminAPIKey string
	SwaggerHost string

	// PaymentProvider selects the active gateway: "stripe" or "mock".
	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	MockWebhookSecret   string

	// OrchestratorURL receives best-effort event notifications for external
	// workflow tooling. Empty disables the sink.
	OrchestratorURL string

	// RetrySweepSeconds is the interval between webhook retry sweeps.
	RetrySweepSeconds int
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		MySQLDSN:            getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		RedisPass:           os.Getenv("REDIS_PASSWORD"),
		JWTSecret:           getEnv("JWT_SECRET", "change-me"),
		AdminAPIKey:         getEnv("ADMIN_API_KEY", "change-me-too"),
		SwaggerHost:         os.Getenv("SWAGGER_HOST"),
		PaymentProvider:     getEnv("PAYMENT_PROVIDER", "mock"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		MockWebhookSecret:   getEnv("MOCK_WEBHOOK_SECRET", "mock_webhook_secret_for_testing"),
		OrchestratorURL:     os.Getenv("ORCHESTRATOR_WEBHOOK_URL"),
		RetrySweepSeconds:   getEnvInt("RETRY_SWEEP_SECONDS", 60),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
