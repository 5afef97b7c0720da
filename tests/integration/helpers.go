package integration

import (
	"time"

	"groundseg/internal/config"
	"groundseg/internal/constants"
	"groundseg/internal/logger"
	"groundseg/internal/tracking"
	"groundseg/pkg/models"
)

const (
	containerStartupTimeout = 60
)

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestDeduplicationConfig() config.DeduplicationConfig {
	return config.DeduplicationConfig{
		Enabled:       true,
		HashAlgorithm: "md5",
		TTLSeconds:    300,
		OnRedisError:  constants.FallbackAllow,
	}
}

func createTestNotification(family models.ProductFamily, path string) models.ProcessingMessage {
	msg := models.NewProcessingMessage(family, path, path)
	msg.Source = "integration"
	return msg
}

func createTestTile(id string) tracking.TileInfo {
	return tracking.TileInfo{
		TileID:      id,
		StoragePath: "s3://l1c-tiles/" + id,
		CompletedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func strPtr(s string) *string {
	return &s
}
