// Package bootstrap holds the start-up and shutdown plumbing shared by the
// worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"groundseg/internal/broker"
	"groundseg/internal/config"
	"groundseg/internal/logger"
)

// Base holds what every worker needs: configuration, logging and the
// broker pair.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitBroker(serviceName string) error {
	producer, consumer, err := broker.New(b.Config.Broker, serviceName, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create broker clients: %w", err)
	}
	b.Producer = producer
	b.Consumer = consumer
	return nil
}

// Closer is one named step of a shutdown.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// Shutdown closes the consumer first so no new work arrives, then the
// producer, then each closer in order. Every step runs even if an earlier
// one failed.
func (b *Base) Shutdown(ctx context.Context, closers ...Closer) error {
	b.Logger.InfowCtx(ctx, "Shutting down")

	steps := make([]Closer, 0, len(closers)+2)
	if b.Consumer != nil {
		steps = append(steps, Closer{Name: "consumer", Close: func(context.Context) error { return b.Consumer.Close() }})
	}
	if b.Producer != nil {
		steps = append(steps, Closer{Name: "producer", Close: func(context.Context) error { return b.Producer.Close() }})
	}
	steps = append(steps, closers...)

	var errs []error
	for _, step := range steps {
		if step.Close == nil {
			continue
		}
		if err := step.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	b.Logger.InfowCtx(ctx, "Shutdown complete")
	return nil
}
