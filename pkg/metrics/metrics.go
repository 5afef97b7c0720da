package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	InputMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "input_messages_total",
			Help: "Total number of notifications handled by input management (count)",
		},
		[]string{"family", "branch", "status"},
	)

	InputProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "input_processing_duration_ms",
			Help:    "Processing duration for input management in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"branch", "status"},
	)

	TrackingStoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_store_operations_total",
			Help: "Total number of completion tracking store operations (count)",
		},
		[]string{"backend", "operation", "status"},
	)

	TrackingStoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracking_store_duration_ms",
			Help:    "Duration of completion tracking store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"backend", "operation"},
	)

	DedupMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_messages_total",
			Help: "Total number of notifications checked by the redelivery guard (count)",
		},
		[]string{"status"},
	)

	DedupProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedup_processing_duration_ms",
			Help:    "Processing duration for the redelivery guard in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	DedupCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_cache_size",
			Help: "Approximate number of live redelivery claims (count)",
		},
	)

	CatalogQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_queries_total",
			Help: "Total number of catalog queries (count)",
		},
		[]string{"route", "status"},
	)

	CatalogRetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_retry_attempts_total",
			Help: "Total number of catalog query retries (count)",
		},
		[]string{"route"},
	)

	CatalogQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_query_duration_ms",
			Help:    "Duration of catalog queries including retries in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"route"},
	)

	ObjectStorageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "object_storage_operations_total",
			Help: "Total number of object storage operations (count)",
		},
		[]string{"operation", "status"},
	)

	ObjectStorageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "object_storage_duration_ms",
			Help:    "Duration of object storage operations in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000, 15000, 60000},
		},
		[]string{"operation"},
	)

	SignalsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_published_total",
			Help: "Total number of tracking signals published downstream (count)",
		},
		[]string{"family", "complete"},
	)

	ExecutionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execution_runs_total",
			Help: "Total number of processor runs by the execution worker (count)",
		},
		[]string{"status"},
	)

	ExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "execution_duration_ms",
			Help:    "Duration of a full execution job in milliseconds",
			Buckets: []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 900000},
		},
		[]string{"status"},
	)

	OutputMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "output_messages_total",
			Help: "Total number of outbound messages built (count)",
		},
		[]string{"family"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)



)

func RegisterPreparationMetrics() {
	prometheus.MustRegister(InputMessagesTotal)
	prometheus.MustRegister(InputProcessingDuration)
	prometheus.MustRegister(TrackingStoreOperationsTotal)
	prometheus.MustRegister(TrackingStoreDuration)
	prometheus.MustRegister(SignalsPublishedTotal)
	prometheus.MustRegister(CatalogQueriesTotal)
	prometheus.MustRegister(CatalogRetryAttemptsTotal)
	prometheus.MustRegister(CatalogQueryDuration)
}

func RegisterDedupMetrics() {
	prometheus.MustRegister(DedupMessagesTotal)
	prometheus.MustRegister(DedupProcessingDuration)
	prometheus.MustRegister(DedupCacheSize)
}

func RegisterExecutionMetrics() {
	prometheus.MustRegister(ObjectStorageOperationsTotal)
	prometheus.MustRegister(ObjectStorageDuration)
	prometheus.MustRegister(ExecutionRunsTotal)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(OutputMessagesTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaMessageSizeBytes)
	prometheus.MustRegister(KafkaConsumerLag)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterStatusAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncInputMessage(family, branch, status string) {
	InputMessagesTotal.WithLabelValues(family, branch, status).Inc()
}

func ObserveInputDuration(duration time.Duration, branch, status string) {
	InputProcessingDuration.WithLabelValues(branch, status).Observe(float64(duration.Milliseconds()))
}

func IncTrackingStoreOperation(backend, operation, status string) {
	TrackingStoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

func ObserveTrackingStoreDuration(backend, operation string, duration time.Duration) {
	TrackingStoreDuration.WithLabelValues(backend, operation).Observe(float64(duration.Milliseconds()))
}

func ObserveDedupDuration(duration time.Duration, status string) {
	DedupProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetDedupCacheSize(size int) {
	DedupCacheSize.Set(float64(size))
}

func IncCatalogQuery(route, status string) {
	CatalogQueriesTotal.WithLabelValues(route, status).Inc()
}

func IncCatalogRetry(route string) {
	CatalogRetryAttemptsTotal.WithLabelValues(route).Inc()
}

func ObserveCatalogDuration(route string, duration time.Duration) {
	CatalogQueryDuration.WithLabelValues(route).Observe(float64(duration.Milliseconds()))
}

func IncObjectStorageOperation(operation, status string) {
	ObjectStorageOperationsTotal.WithLabelValues(operation, status).Inc()
}

func ObserveObjectStorageDuration(operation string, duration time.Duration) {
	ObjectStorageDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

func IncSignalPublished(family string, complete bool) {
	SignalsPublishedTotal.WithLabelValues(family, fmt.Sprintf("%t", complete)).Inc()
}

func ObserveExecution(duration time.Duration, status string) {
	ExecutionRunsTotal.WithLabelValues(status).Inc()
	ExecutionDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncOutputMessage(family string) {
	OutputMessagesTotal.WithLabelValues(family).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
