package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CarrierConfig holds the shipment provider API settings. Credentials are
// exchanged for a bearer token by the carrier client; PickupLocation is the
// registered warehouse name sent with every shipment order.
type CarrierConfig struct {
	BaseURL        string
	Email          string
	Password       string
	PickupLocation string
	Timeout        time.Duration
}

type WebhookConfig struct {
	// Secret is the shared key the payment provider signs webhook bodies with.
	Secret string
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Carrier  CarrierConfig
	Webhook  WebhookConfig
}

// Load reads configuration from the environment, optionally merging a .env
// file first. Missing required values are reported as a single error so the
// caller can fail fast at startup.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: failed to load .env: %w", err)
		}
	}

	cfg := &Config{}

	cfg.App.Port = getEnv("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Postgres.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", "migrations")
	cfg.Postgres.MaxConns = int32(getEnvInt("DB_MAX_CONNS", 10))
	cfg.Postgres.MinConns = int32(getEnvInt("DB_MIN_CONNS", 2))
	cfg.Postgres.MaxConnLifetime = getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Kafka.Brokers = splitNonEmpty(getEnv("KAFKA_BROKERS", "localhost:9092"))
	cfg.Kafka.Topic = getEnv("KAFKA_FULFILLMENT_TOPIC", "fulfillment-events")

	cfg.Carrier.BaseURL = getEnv("CARRIER_BASE_URL", "https://apiv2.shiprocket.in/v1/external")
	cfg.Carrier.Email = os.Getenv("CARRIER_EMAIL")
	cfg.Carrier.Password = os.Getenv("CARRIER_PASSWORD")
	cfg.Carrier.PickupLocation = getEnv("CARRIER_PICKUP_LOCATION", "Primary")
	cfg.Carrier.Timeout = getEnvDuration("CARRIER_TIMEOUT", 15*time.Second)

	cfg.Webhook.Secret = os.Getenv("PAYMENT_WEBHOOK_SECRET")

	for _, req := range []struct{ key, val string }{
		{"DB_HOST", cfg.Postgres.Host},
		{"DB_USER", cfg.Postgres.User},
		{"DB_PASSWORD", cfg.Postgres.Password},
		{"DB_NAME", cfg.Postgres.DBName},
		{"PAYMENT_WEBHOOK_SECRET", cfg.Webhook.Secret},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("config: %s is required", req.key)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
