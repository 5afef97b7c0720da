package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixDedup    = "dedup:"
	CacheKeyPrefixTracking = "tracking:"
)

const (
	DefaultInputTopic     = "s2-l1-notifications"
	DefaultSignalTopic    = "s2-tracking-signals"
	DefaultExecutionTopic = "s2-execution-jobs"
	DefaultOutputTopic    = "s2-l1-outputs"
)

const (
	DefaultMongoDBName     = "groundseg"
	DefaultMongoCollection = "datastrips"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTTLSeconds = 3600
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// Behaviour of the redelivery guard when Redis cannot be reached.
const (
	FallbackAllow  = "allow"
	FallbackReject = "reject"
	FallbackFail   = "fail"
)

const (
	BrokerKafka = "kafka"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
)

const (
	ServicePreparationWorker = "preparation-worker"
	ServiceExecutionWorker   = "execution-worker"
)
