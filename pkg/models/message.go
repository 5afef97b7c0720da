package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingMessage is the notification exchanged between pipeline stages.
type ProcessingMessage struct {
	ID               string                 `json:"id"`
	Source           string                 `json:"source,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
	ProductFamily    ProductFamily          `json:"product_family"`
	StoragePath      string                 `json:"storage_path"`
	KeyObjectStorage string                 `json:"key_object_storage"`
	Metadata         map[string]string      `json:"metadata,omitempty"`         // Correlation hints (datastrip_id, ...)
	AdditionalFields map[string]interface{} `json:"additional_fields,omitempty"` // Payload for the next stage
	TraceID          string                 `json:"trace_id,omitempty"`
}

func NewProcessingMessage(family ProductFamily, storagePath, key string) ProcessingMessage {
	return ProcessingMessage{
		ID:               uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		ProductFamily:    family,
		StoragePath:      storagePath,
		KeyObjectStorage: key,
		Metadata:         make(map[string]string),
		AdditionalFields: make(map[string]interface{}),
	}
}

func (m *ProcessingMessage) MetadataValue(name string) (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	value, ok := m.Metadata[name]
	return value, ok
}

func (m *ProcessingMessage) SetMetadata(name, value string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[name] = value
}

func (m *ProcessingMessage) AdditionalField(name string) (interface{}, bool) {
	if m.AdditionalFields == nil {
		return nil, false
	}
	value, ok := m.AdditionalFields[name]
	return value, ok
}

func (m *ProcessingMessage) SetAdditionalField(name string, value interface{}) {
	if m.AdditionalFields == nil {
		m.AdditionalFields = make(map[string]interface{})
	}
	m.AdditionalFields[name] = value
}
