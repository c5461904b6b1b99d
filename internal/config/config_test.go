package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "comic_store", cfg.DatabaseName)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Equal(t, "ec-events", cfg.KafkaTopic)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.HashPasswords)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.PostgresURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.TracingExporter)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", validSecret)
	t.Setenv("DATABASE_NAME", "shop")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("HASH_PASSWORDS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REQUEST_TIMEOUT", "15s")
	t.Setenv("TRACING_EXPORTER", "OTLP")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.DatabaseName)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.HashPasswords)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "otlp", cfg.TracingExporter)
	assert.Equal(t, "collector:4318", cfg.OTLPEndpoint)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
}

func TestLoad_Secret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr error
	}{
		{"missing", "", ErrMissingSecret},
		{"too short", "short-secret", ErrShortSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", tt.secret)
			cfg, err := Load()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TOKEN_TTL", "forever"},
		{"TOKEN_TTL", "-1h"},
		{"REQUEST_TIMEOUT", "abc"},
		{"TRACE_SAMPLE_RATIO", "1.5"},
		{"HASH_PASSWORDS", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("JWT_SECRET", validSecret)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadNotifier(t *testing.T) {
	t.Run("no secret needed", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("KAFKA_BROKERS", "k1:9092")

		cfg, err := LoadNotifier()
		require.NoError(t, err)
		assert.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, "1025", cfg.SMTPPort)
	})

	t.Run("brokers required", func(t *testing.T) {
		t.Setenv("KAFKA_BROKERS", "")

		_, err := LoadNotifier()
		assert.ErrorIs(t, err, ErrMissingKafka)
	})
}
