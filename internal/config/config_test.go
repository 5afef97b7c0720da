package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 8080
  read_timeout_seconds: 10s
  write_timeout_seconds: 10s
broker:
  type: kafka
  kafka:
    brokers: ["localhost:9092"]
    group_id: preparation-worker
    input_topic: s2-l1-notifications
    signal_topic: s2-tracking-signals
    retry:
      max_attempts: 3
      initial_interval: 1s
      max_interval: 10s
      multiplier: 2
tracking:
  backend: memory
classification:
  patterns:
    S2_L1C_DS: "^S2[AB]_OPER_MSI_L1C_DS_.*"
catalog:
  url: http://catalog:8080
  max_retry: 2
  retry_delay: 10ms
  timeout: 5s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, "s2-tracking-signals", cfg.Broker.Kafka.SignalTopic)
	assert.Equal(t, "memory", cfg.Tracking.Backend)
	assert.Equal(t, 2, cfg.Catalog.MaxRetry)
	assert.Equal(t, 10*time.Millisecond, cfg.Catalog.RetryDelay)
	assert.Equal(t, "NOMINAL", cfg.Catalog.Mode)
	assert.Equal(t, "tracking:", cfg.Tracking.KeyPrefix)
	assert.Equal(t, map[string]string{"S2_L1C_DS": "^S2[AB]_OPER_MSI_L1C_DS_.*"}, cfg.Classification.Patterns)
	assert.Equal(t, "!provisional && tile_count > 0", cfg.Output.CompletionExpression)
}

func TestLoadConfig_BrokersFromEnv(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
}

func TestValidateStatic(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
			Broker: BrokerConfig{
				Type: "kafka",
				Kafka: KafkaConfig{
					Brokers: []string{"localhost:9092"},
					GroupID: "g",
					Retry:   RetryConfig{Multiplier: 2},
				},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Tracking.Backend = "cassandra" }, "tracking.backend"},
		{"redis backend without redis", func(c *Config) { c.Tracking.Backend = "redis" }, "database.redis.host"},
		{"bad pattern", func(c *Config) {
			c.Classification.Patterns = map[string]string{"S2_L1C_DS": "("}
		}, "classification.patterns.S2_L1C_DS"},
		{"catalog without timeout", func(c *Config) { c.Catalog.URL = "http://catalog" }, "catalog.timeout"},
		{"output pattern without bucket", func(c *Config) {
			c.Execution.OutputPatterns = map[string]string{"S2_L0_GR": "GR"}
		}, "execution.output_buckets.S2_L0_GR"},
		{"unknown broker", func(c *Config) { c.Broker.Type = "rabbitmq" }, "broker.type"},
		{"bad completion expression", func(c *Config) {
			c.Output.CompletionExpression = "tile_count >"
		}, "output.completion_expression"},
		{"failure ratio above one", func(c *Config) { c.CircuitBreaker.FailureRatio = 1.5 }, "circuit_breaker.failure_ratio"},
		{"unknown redis fallback", func(c *Config) { c.Deduplication.OnRedisError = "retry" }, "deduplication.on_redis_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateStatic_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: 0},
		Broker: BrokerConfig{Type: "kafka"},
	}

	err := ValidateStatic(cfg)
	require.Error(t, err)

	for _, field := range []string{
		"server.port",
		"server.read_timeout_seconds",
		"broker.kafka.brokers",
		"broker.kafka.group_id",
		"broker.kafka.retry.multiplier",
	} {
		assert.Contains(t, err.Error(), field)
	}
}
