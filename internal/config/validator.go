package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"groundseg/internal/constants"
	"groundseg/pkg/cel"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// checker collects every problem instead of stopping at the first.
type checker struct {
	errs []error
}

func (c *checker) failf(field, format string, args ...interface{}) {
	c.errs = append(c.errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) port(field string, port int) {
	if port < 1 || port > 65535 {
		c.failf(field, "port must be between 1 and 65535, got %d", port)
	}
}

func (c *checker) oneOf(field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	c.failf(field, "invalid value %q (valid: %s)", value, strings.Join(allowed, ", "))
}

// patterns checks a family -> regex map in a stable order.
func (c *checker) patterns(prefix string, patterns map[string]string) {
	families := make([]string, 0, len(patterns))
	for family := range patterns {
		families = append(families, family)
	}
	sort.Strings(families)
	for _, family := range families {
		if _, err := regexp.Compile(patterns[family]); err != nil {
			c.failf(prefix+"."+family, "invalid pattern: %v", err)
		}
	}
}

// ValidateStatic checks the parts of cfg that need no network access.
func ValidateStatic(cfg *Config) error {
	c := &checker{}

	c.port("server.port", cfg.Server.Port)
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		c.failf("server.read_timeout_seconds", "read timeout must be positive")
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		c.failf("server.write_timeout_seconds", "write timeout must be positive")
	}

	c.broker(cfg.Broker)
	c.database(cfg.Database)
	c.tracking(cfg.Tracking, cfg.Database)
	c.deduplication(cfg.Deduplication)
	c.patterns("classification.patterns", cfg.Classification.Patterns)
	c.catalog(cfg.Catalog)
	c.execution(cfg.Execution)
	c.output(cfg.Output)

	if r := cfg.CircuitBreaker.FailureRatio; r < 0 || r > 1 {
		c.failf("circuit_breaker.failure_ratio", "failure ratio must be within [0, 1], got %v", r)
	}
	if rl := cfg.StatusAPI.RateLimit; rl.Enabled && (rl.RPS <= 0 || rl.Burst <= 0) {
		c.failf("status_api.rate_limit", "rps and burst must be positive when rate limiting is enabled")
	}

	if len(c.errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(c.errs...))
	}
	return nil
}

func (c *checker) broker(cfg BrokerConfig) {
	if cfg.Type != constants.BrokerKafka {
		c.failf("broker.type", "unknown broker type: %s (supported: %s)", cfg.Type, constants.BrokerKafka)
		return
	}

	k := cfg.Kafka
	if len(k.Brokers) == 0 {
		c.failf("broker.kafka.brokers", "at least one Kafka broker is required")
	}
	for i, b := range k.Brokers {
		if b == "" {
			c.failf(fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
		}
	}
	if k.GroupID == "" {
		c.failf("broker.kafka.group_id", "Kafka consumer group ID is required")
	}

	r := k.Retry
	switch {
	case r.MaxAttempts < 0:
		c.failf("broker.kafka.retry.max_attempts", "max_attempts must be non-negative")
	case r.InitialInterval < 0 || r.MaxInterval < 0:
		c.failf("broker.kafka.retry", "intervals must be non-negative")
	case r.MaxInterval > 0 && r.MaxInterval < r.InitialInterval:
		c.failf("broker.kafka.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	}
	if r.Multiplier <= 0 {
		c.failf("broker.kafka.retry.multiplier", "multiplier must be positive")
	}
}

func (c *checker) database(cfg DatabaseConfig) {
	if pg := cfg.Postgres; pg.Host != "" || pg.Port > 0 {
		if pg.Host == "" {
			c.failf("database.postgres.host", "PostgreSQL host is required")
		}
		c.port("database.postgres.port", pg.Port)
		if pg.User == "" {
			c.failf("database.postgres.user", "PostgreSQL user is required")
		}
		if pg.DBName == "" {
			c.failf("database.postgres.dbname", "PostgreSQL database name is required")
		}
		c.oneOf("database.postgres.sslmode", pg.SSLMode,
			"disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}

	if rd := cfg.Redis; rd.Host != "" || rd.Port > 0 {
		if rd.Host == "" {
			c.failf("database.redis.host", "Redis host is required")
		}
		c.port("database.redis.port", rd.Port)
	}

	if uri := cfg.MongoDB.URI; uri != "" {
		if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
			c.failf("database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
		}
	}
}

func (c *checker) tracking(cfg TrackingConfig, db DatabaseConfig) {
	switch strings.ToLower(cfg.Backend) {
	case "", constants.BackendMemory:
	case constants.BackendRedis:
		if db.Redis.Host == "" {
			c.failf("database.redis.host", "redis tracking backend requires database.redis")
		}
	case constants.BackendPostgres:
		if db.Postgres.Host == "" {
			c.failf("database.postgres.host", "postgres tracking backend requires database.postgres")
		}
	case constants.BackendMongoDB:
		if db.MongoDB.URI == "" {
			c.failf("database.mongodb.uri", "mongodb tracking backend requires database.mongodb")
		}
	default:
		c.failf("tracking.backend", "unknown tracking backend: %s (valid: %s, %s, %s, %s)", cfg.Backend,
			constants.BackendMemory, constants.BackendRedis, constants.BackendPostgres, constants.BackendMongoDB)
	}
}

func (c *checker) deduplication(cfg DeduplicationConfig) {
	c.oneOf("deduplication.hash_algorithm", cfg.HashAlgorithm, "md5", "sha1", "sha256")
	if cfg.TTLSeconds < 0 {
		c.failf("deduplication.ttl_seconds", "TTL must be non-negative")
	}
	c.oneOf("deduplication.on_redis_error", cfg.OnRedisError,
		constants.FallbackAllow, constants.FallbackReject, constants.FallbackFail)
}

func (c *checker) catalog(cfg CatalogConfig) {
	if cfg.URL == "" {
		return
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		c.failf("catalog.url", "invalid catalog URL: %v", err)
	}
	if cfg.MaxRetry < 0 {
		c.failf("catalog.max_retry", "max_retry must be non-negative")
	}
	if cfg.RetryDelay < 0 {
		c.failf("catalog.retry_delay", "retry_delay must be non-negative")
	}
	if cfg.Timeout <= 0 {
		c.failf("catalog.timeout", "timeout must be positive")
	}
}

func (c *checker) execution(cfg ExecutionConfig) {
	c.patterns("execution.output_patterns", cfg.OutputPatterns)
	for family := range cfg.OutputPatterns {
		if _, ok := cfg.OutputBuckets[family]; !ok {
			c.failf("execution.output_buckets."+family, "every output pattern needs a destination bucket")
		}
	}
	if cfg.Timeout < 0 {
		c.failf("execution.timeout", "timeout must be non-negative")
	}
}

func (c *checker) output(cfg OutputConfig) {
	if cfg.CompletionExpression == "" {
		return
	}
	eval, err := cel.NewEvaluator()
	if err != nil {
		c.failf("output.completion_expression", "%v", err)
		return
	}
	if err := eval.ValidateRuleExpression(cfg.CompletionExpression); err != nil {
		c.failf("output.completion_expression", "%v", err)
	}
}
