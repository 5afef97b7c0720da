// Package output builds the messages a stage hands to the next one: the
// per-artifact notifications of an execution run and the tracking signals of
// the preparation worker.
package output

import (
	"context"
	"sort"
	"time"

	"groundseg/internal/logger"
	"groundseg/pkg/models"
)

// OutputFolderField names the run folder the artifacts were produced in.
const OutputFolderField = "output_folder"

type MessageBuilder struct {
	source string
	logger logger.Logger
}

func NewMessageBuilder(source string, log logger.Logger) *MessageBuilder {
	return &MessageBuilder{source: source, logger: log}
}

// Build returns one message per produced file. Every message carries the
// run's t0_pdgs_date so downstream timeliness can be computed.
func (b *MessageBuilder) Build(ctx context.Context, input models.ExecutionInput, filesByFamily map[models.ProductFamily][]models.FileInfo, outputFolder string) []models.ProcessingMessage {
	b.logger.InfowCtx(ctx, "Building outgoing messages", "datastrip", input.Datastrip)

	families := make([]models.ProductFamily, 0, len(filesByFamily))
	for family := range filesByFamily {
		families = append(families, family)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })

	var messages []models.ProcessingMessage
	for _, family := range families {
		for _, file := range filesByFamily[family] {
			msg := models.NewProcessingMessage(family, file.ObsURL, file.Key)
			msg.Source = b.source
			msg.SetAdditionalField(models.T0PdgsDateField, input.T0PdgsDate.UTC().Format(time.RFC3339Nano))
			if outputFolder != "" {
				msg.SetAdditionalField(OutputFolderField, outputFolder)
			}
			b.describe(&msg, input)
			messages = append(messages, msg)
		}
	}

	b.logger.InfowCtx(ctx, "Finished building outgoing messages", "count", len(messages))
	return messages
}

// BuildExecutionMessage wraps input into the single message that starts the
// next processing stage of family.
func (b *MessageBuilder) BuildExecutionMessage(ctx context.Context, family models.ProductFamily, input models.ExecutionInput) models.ProcessingMessage {
	msg := models.NewProcessingMessage(family, "", "")
	msg.Source = b.source
	msg.SetAdditionalField(models.ExecutionInputField, input)
	msg.SetAdditionalField(models.T0PdgsDateField, input.T0PdgsDate.UTC().Format(time.RFC3339Nano))
	b.describe(&msg, input)

	b.logger.InfowCtx(ctx, "Built execution message", "datastrip", input.Datastrip, "inputs", len(input.Inputs))
	return msg
}

func (b *MessageBuilder) describe(msg *models.ProcessingMessage, input models.ExecutionInput) {
	if input.Datastrip != "" {
		msg.SetMetadata(models.DatastripIDField, input.Datastrip)
	}
	if input.Satellite != "" {
		msg.SetMetadata(models.SatelliteField, input.Satellite)
	}
	if input.Station != "" {
		msg.SetMetadata(models.StationField, input.Station)
	}
}
