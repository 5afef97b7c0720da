// Package broker moves ProcessingMessages between workers.
package broker

import (
	"context"

	"groundseg/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.ProcessingMessage) error
	Close() error
}

// Consumer delivers each message of a topic to a handler. A handler error
// is retried per the consumer's policy before the message is dead-lettered.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.ProcessingMessage) error

// Middleware decorates a HandlerFunc.
type Middleware func(HandlerFunc) HandlerFunc

// Chain wraps h so that the first middleware sees the message first.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
