package models

import (
	"encoding/json"
	"time"
)

// Keys read from ProcessingMessage.Metadata and AdditionalFields.
const (
	DatastripIDField    = "datastrip_id"
	TileIDField         = "tile_id"
	T0PdgsDateField     = "t0_pdgs_date"
	ExecutionInputField = "execution_input"
	CorrelationIDField  = "correlation_id"
	TileCountField      = "tile_count"
	ProvisionalField    = "provisional"
	CompleteField       = "complete"
	SatelliteField      = "satellite"
	StationField        = "station"
)

// FileInfo describes one file a processing run consumed or produced.
type FileInfo struct {
	ProductFamily ProductFamily `json:"product_family"`
	Bucket        string        `json:"bucket"`
	Key           string        `json:"key"`
	ObsURL        string        `json:"obs_url"`
	LocalPath     string        `json:"local_path,omitempty"`
}

// ExecutionInput is the job description carried by messages that start a
// processing run.
type ExecutionInput struct {
	Satellite    string     `json:"satellite"`
	Station      string     `json:"station"`
	Datastrip    string     `json:"datastrip"`
	T0PdgsDate   time.Time  `json:"t0_pdgs_date"`
	Inputs       []FileInfo `json:"inputs"`
	OutputFolder string     `json:"output_folder,omitempty"`
}

// ExecutionInputOf decodes the execution_input field of msg. After a trip
// through the broker the field is a generic JSON object.
func ExecutionInputOf(msg *ProcessingMessage) (ExecutionInput, error) {
	var input ExecutionInput

	raw, ok := msg.AdditionalField(ExecutionInputField)
	if !ok {
		return input, &ValidationError{Field: ExecutionInputField, Message: "execution input is required"}
	}
	if typed, ok := raw.(ExecutionInput); ok {
		return typed, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return input, &ValidationError{Field: ExecutionInputField, Message: err.Error()}
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return input, &ValidationError{Field: ExecutionInputField, Message: err.Error()}
	}
	return input, nil
}
