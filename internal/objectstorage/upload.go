package objectstorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"groundseg/internal/config"
	"groundseg/internal/logger"
	"groundseg/pkg/errors"
	"groundseg/pkg/models"
	"groundseg/pkg/obs"
)

// UploadResult lists what a run produced per family and the output
// categories that came out empty.
type UploadResult struct {
	Files   map[models.ProductFamily][]models.FileInfo
	Missing []models.MissingOutputProductType
}

// UploadService pushes the entries of an output folder to the bucket of the
// family whose pattern matches the entry name.
type UploadService struct {
	store    Store
	families []models.ProductFamily
	patterns map[models.ProductFamily]*regexp.Regexp
	buckets  map[models.ProductFamily]string
	logger   logger.Logger
}

func NewUploadService(store Store, cfg config.ExecutionConfig, log logger.Logger) (*UploadService, error) {
	u := &UploadService{
		store:    store,
		patterns: make(map[models.ProductFamily]*regexp.Regexp, len(cfg.OutputPatterns)),
		buckets:  make(map[models.ProductFamily]string, len(cfg.OutputPatterns)),
		logger:   log,
	}

	for name, pattern := range cfg.OutputPatterns {
		family, err := models.ParseProductFamily(name)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid output pattern for %s: %w", family, err)
		}
		bucket, ok := cfg.OutputBuckets[name]
		if !ok || bucket == "" {
			return nil, fmt.Errorf("no output bucket configured for %s", family)
		}
		u.families = append(u.families, family)
		u.patterns[family] = re
		u.buckets[family] = bucket
	}
	sort.Slice(u.families, func(i, j int) bool { return u.families[i] < u.families[j] })

	return u, nil
}

// Families returns the configured output families in a stable order.
func (u *UploadService) Families() []models.ProductFamily {
	return append([]models.ProductFamily(nil), u.families...)
}

func (u *UploadService) match(name string) (models.ProductFamily, bool) {
	for _, family := range u.families {
		if u.patterns[family].MatchString(name) {
			return family, true
		}
	}
	return "", false
}

// Upload walks the top level of outputDir. Entries matching no pattern are
// left behind.
func (u *UploadService) Upload(ctx context.Context, outputDir, parentKey string) (*UploadResult, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, errors.ErrFileOperation.
			WithCause(err).
			WithDetail("operation", "list_outputs").
			WithDetail("local_path", outputDir)
	}

	result := &UploadResult{Files: make(map[models.ProductFamily][]models.FileInfo)}
	for _, entry := range entries {
		family, ok := u.match(entry.Name())
		if !ok {
			u.logger.DebugwCtx(ctx, "Skipping output without matching family", "name", entry.Name())
			continue
		}

		bucket := u.buckets[family]
		local := filepath.Join(outputDir, entry.Name())
		if _, err := u.store.UploadDir(ctx, local, bucket, parentKey); err != nil {
			return nil, err
		}

		key := obs.ToKey(parentKey, entry.Name())
		result.Files[family] = append(result.Files[family], models.FileInfo{
			ProductFamily: family,
			Bucket:        bucket,
			Key:           key,
			ObsURL:        obs.ToURL(bucket, "", key),
			LocalPath:     local,
		})
		u.logger.InfowCtx(ctx, "Uploaded output", "family", family, "key", key, "bucket", bucket)
	}

	produced := make(map[models.MissingOutputProductType]bool)
	for family, files := range result.Files {
		if category, ok := models.MissingOutputType(family); ok && len(files) > 0 {
			produced[category] = true
		}
	}
	for _, family := range u.families {
		category, ok := models.MissingOutputType(family)
		if !ok || produced[category] {
			continue
		}
		produced[category] = true
		result.Missing = append(result.Missing, category)
	}

	return result, nil
}
