// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minSecretLength = 32

var (
	ErrMissingSecret = errors.New("JWT_SECRET environment variable is required")
	ErrShortSecret   = fmt.Errorf("JWT_SECRET must be at least %d characters long", minSecretLength)
	ErrMissingKafka  = errors.New("KAFKA_BROKERS environment variable is required")
)

// Config holds everything the API and notifier processes read at startup.
type Config struct {
	Env            string
	HTTPAddr       string
	RequestTimeout time.Duration

	MongoURI     string
	DatabaseName string

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string

	// PostgresURL is the event journal DSN. Empty selects the in-memory journal.
	PostgresURL string

	KafkaBrokers []string
	KafkaTopic   string

	SMTPHost string
	SMTPPort string
	SMTPFrom string

	// TracingExporter selects the span exporter: empty disables tracing,
	// "stdout" or "otlp".
	TracingExporter  string
	OTLPEndpoint     string
	TraceSampleRatio float64

	HashPasswords      bool
	CORSAllowedOrigins []string
}

// Load reads the API configuration. Only JWT_SECRET is mandatory.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, ErrShortSecret
	}
	return cfg, nil
}

// LoadNotifier reads the notifier configuration. The notifier never signs
// tokens but cannot run without a broker.
func LoadNotifier() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if !cfg.KafkaEnabled() {
		return nil, ErrMissingKafka
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Env:          getEnv("APP_ENV", "dev"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		MongoURI:     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnv("DATABASE_NAME", "comic_store"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		PostgresURL:  os.Getenv("DATABASE_URL"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "ec-events"),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@ec-shop.local"),

		TracingExporter: strings.ToLower(os.Getenv("TRACING_EXPORTER")),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.HashPasswords, err = getBool("HASH_PASSWORDS", false); err != nil {
		return nil, err
	}
	if cfg.TraceSampleRatio, err = getRatio("TRACE_SAMPLE_RATIO", 1); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KafkaEnabled reports whether events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return b, nil
}

func getRatio(key string, defaultValue float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return f, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
