package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Tracking       TrackingConfig       `mapstructure:"tracking"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Deduplication  DeduplicationConfig  `mapstructure:"deduplication"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	ObjectStorage  ObjectStorageConfig  `mapstructure:"object_storage"`
	Execution      ExecutionConfig      `mapstructure:"execution"`
	Output         OutputConfig         `mapstructure:"output"`
	StatusAPI      StatusAPIConfig      `mapstructure:"status_api"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string    `mapstructure:"brokers"`
	GroupID     string      `mapstructure:"group_id"`
	InputTopic  string      `mapstructure:"input_topic"`
	OutputTopic string      `mapstructure:"output_topic"`
	SignalTopic string      `mapstructure:"signal_topic"`
	DLQTopic    string      `mapstructure:"dlq_topic"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig selects where completion-tracking records live.
type TrackingConfig struct {
	Backend         string `mapstructure:"backend"` // "memory", "redis", "postgres", "mongodb"
	KeyPrefix       string `mapstructure:"key_prefix"`
	MongoCollection string `mapstructure:"mongo_collection"`
}

// ClassificationConfig maps product families to the file name regex their
// object keys must match. Families without a pattern accept any key.
type ClassificationConfig struct {
	Patterns    map[string]string `mapstructure:"patterns"`
	ProcStation string            `mapstructure:"proc_station"`
	UseDefaults bool              `mapstructure:"use_defaults"`
}

type DeduplicationConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	HashAlgorithm string   `mapstructure:"hash_algorithm"`
	TTLSeconds    int      `mapstructure:"ttl_seconds"`
	OnRedisError  string   `mapstructure:"on_redis_error"`
	FieldsToHash  []string `mapstructure:"fields_to_hash"`
}

type CatalogConfig struct {
	URL              string        `mapstructure:"url"`
	Mode             string        `mapstructure:"mode"`
	AuxProductFamily string        `mapstructure:"aux_product_family"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetry         int           `mapstructure:"max_retry"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

type ObjectStorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ExecutionConfig drives the execution worker: where it works, what it runs
// and where each output family goes.
type ExecutionConfig struct {
	SharedFolderRoot string            `mapstructure:"shared_folder_root"`
	Command          []string          `mapstructure:"command"`
	Timeout          time.Duration     `mapstructure:"timeout"`
	Station          string            `mapstructure:"station"`
	OutputPatterns   map[string]string `mapstructure:"output_patterns"`
	OutputBuckets    map[string]string `mapstructure:"output_buckets"`
}

type OutputConfig struct {
	CompletionExpression string `mapstructure:"completion_expression"`
}

type StatusAPIConfig struct {
	Enabled   bool            `mapstructure:"enabled"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}
