package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"groundseg/internal/constants"
	"groundseg/pkg/cel"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	normalizeFamilyKeys(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys are the settings that may come from the environment alone. The
// variable name is the key upper cased with dots replaced by underscores,
// e.g. DATABASE_REDIS_HOST.
var envKeys = []string{
	"broker.kafka.brokers", "broker.kafka.group_id", "broker.kafka.input_topic",
	"broker.kafka.output_topic", "broker.kafka.signal_topic", "broker.kafka.dlq_topic",

	"database.postgres.host", "database.postgres.port", "database.postgres.user",
	"database.postgres.password", "database.postgres.dbname", "database.postgres.sslmode",
	"database.redis.host", "database.redis.port", "database.redis.password", "database.redis.db",
	"database.mongodb.uri", "database.mongodb.database",

	"server.port", "server.read_timeout_seconds", "server.write_timeout_seconds",
	"logging.level", "logging.format",
	"tracking.backend",
	"catalog.url", "catalog.timeout", "catalog.max_retry",

	"object_storage.endpoint", "object_storage.access_key", "object_storage.secret_key", "object_storage.region",
	"execution.shared_folder_root", "execution.station",

	"tracing.enabled", "tracing.service_name", "tracing.otlp.endpoint", "tracing.otlp.insecure",
}

func bindEnvVariables() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key, envName(key))
	}
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults() {
	viper.SetDefault("broker.type", constants.BrokerKafka)
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)
	viper.SetDefault("tracking.backend", constants.BackendMemory)
	viper.SetDefault("tracking.key_prefix", constants.CacheKeyPrefixTracking)
	viper.SetDefault("tracking.mongo_collection", constants.DefaultMongoCollection)
	viper.SetDefault("classification.use_defaults", false)
	viper.SetDefault("deduplication.hash_algorithm", "sha256")
	viper.SetDefault("deduplication.ttl_seconds", constants.DefaultTTLSeconds)
	viper.SetDefault("deduplication.on_redis_error", constants.FallbackAllow)
	viper.SetDefault("deduplication.fields_to_hash", []string{"product_family", "storage_path"})
	viper.SetDefault("catalog.mode", "NOMINAL")
	viper.SetDefault("catalog.timeout", "30s")
	viper.SetDefault("catalog.max_retry", 3)
	viper.SetDefault("catalog.retry_delay", "2s")
	viper.SetDefault("execution.timeout", "1h")
	viper.SetDefault("output.completion_expression", cel.DefaultCompletionExpression)
}

// applyEnvOverrides handles list settings, which the environment gives as
// comma separated strings.
func applyEnvOverrides(cfg *Config) {
	if brokers := splitList(viper.GetString(envName("broker.kafka.brokers"))); len(brokers) > 0 {
		cfg.Broker.Kafka.Brokers = brokers
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normalizeFamilyKeys restores the upper case product family names that
// viper lowercases in map keys.
func normalizeFamilyKeys(cfg *Config) {
	cfg.Classification.Patterns = upperKeys(cfg.Classification.Patterns)
	cfg.Execution.OutputPatterns = upperKeys(cfg.Execution.OutputPatterns)
	cfg.Execution.OutputBuckets = upperKeys(cfg.Execution.OutputBuckets)
}

func upperKeys(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}
