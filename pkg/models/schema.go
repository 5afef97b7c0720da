package models

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateProcessingMessage checks the envelope fields every stage relies on.
// It does not check key naming, which depends on the consuming stage.
// Execution messages carry their inputs instead of an artifact address.
func ValidateProcessingMessage(msg *ProcessingMessage) error {
	if msg == nil {
		return &ValidationError{
			Field:   "message",
			Message: "processing message cannot be nil",
		}
	}

	if msg.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "message ID is required",
		}
	}

	if !msg.ProductFamily.Valid() {
		return &ValidationError{
			Field:   "product_family",
			Message: fmt.Sprintf("unknown product family %q", msg.ProductFamily),
		}
	}

	if _, ok := msg.AdditionalField(ExecutionInputField); ok {
		return nil
	}

	if msg.KeyObjectStorage == "" {
		return &ValidationError{
			Field:   "key_object_storage",
			Message: "object storage key is required",
		}
	}

	if msg.StoragePath != "" && !strings.HasPrefix(msg.StoragePath, "s3://") {
		return &ValidationError{
			Field:   "storage_path",
			Message: fmt.Sprintf("storage path %q must start with s3://", msg.StoragePath),
		}
	}

	return nil
}
