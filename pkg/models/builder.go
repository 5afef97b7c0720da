package models

import (
	"time"

	"github.com/google/uuid"
)

type ProcessingMessageBuilder struct {
	msg *ProcessingMessage
}

func NewProcessingMessageBuilder() *ProcessingMessageBuilder {
	return &ProcessingMessageBuilder{
		msg: &ProcessingMessage{
			Metadata:         make(map[string]string),
			AdditionalFields: make(map[string]interface{}),
		},
	}
}

func (b *ProcessingMessageBuilder) WithID(id string) *ProcessingMessageBuilder {
	b.msg.ID = id
	return b
}

func (b *ProcessingMessageBuilder) WithSource(source string) *ProcessingMessageBuilder {
	b.msg.Source = source
	return b
}

func (b *ProcessingMessageBuilder) WithTimestamp(timestamp time.Time) *ProcessingMessageBuilder {
	b.msg.Timestamp = timestamp
	return b
}

func (b *ProcessingMessageBuilder) WithProductFamily(family ProductFamily) *ProcessingMessageBuilder {
	b.msg.ProductFamily = family
	return b
}

func (b *ProcessingMessageBuilder) WithStoragePath(path string) *ProcessingMessageBuilder {
	b.msg.StoragePath = path
	return b
}

func (b *ProcessingMessageBuilder) WithKey(key string) *ProcessingMessageBuilder {
	b.msg.KeyObjectStorage = key
	return b
}

func (b *ProcessingMessageBuilder) WithMetadata(name, value string) *ProcessingMessageBuilder {
	b.msg.Metadata[name] = value
	return b
}

func (b *ProcessingMessageBuilder) WithAdditionalField(name string, value interface{}) *ProcessingMessageBuilder {
	b.msg.AdditionalFields[name] = value
	return b
}

func (b *ProcessingMessageBuilder) WithTraceID(traceID string) *ProcessingMessageBuilder {
	b.msg.TraceID = traceID
	return b
}

func (b *ProcessingMessageBuilder) Build() *ProcessingMessage {
	if b.msg.ID == "" {
		b.msg.ID = uuid.NewString()
	}
	if b.msg.Timestamp.IsZero() {
		b.msg.Timestamp = time.Now().UTC()
	}
	return b.msg
}
