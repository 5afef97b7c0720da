package broker

import (
	"fmt"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
)

// New builds the producer and consumer for the configured broker type.
func New(cfg config.BrokerConfig, serviceName string, log logger.Logger) (Producer, Consumer, error) {
	switch cfg.Type {
	case constants.BrokerKafka, "":
		consumer := NewKafkaConsumer(cfg.Kafka, log)
		consumer.SetServiceName(serviceName)
		return NewKafkaProducer(cfg.Kafka, serviceName, log), consumer, nil
	default:
		return nil, nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
