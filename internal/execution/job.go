package execution

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"groundseg/internal/logger"
	"groundseg/internal/objectstorage"
	"groundseg/internal/output"
	"groundseg/pkg/errors"
	"groundseg/pkg/logging"
	"groundseg/pkg/metrics"
	"groundseg/pkg/models"
	"groundseg/pkg/obs"
	"groundseg/pkg/tracelog"
	"groundseg/pkg/tracing"
)

const (
	inputFolder  = "input"
	outputFolder = "output"
)

type Job struct {
	root      string
	store     objectstorage.Store
	uploader  *objectstorage.UploadService
	processor Processor
	builder   *output.MessageBuilder
	trace     *tracelog.TraceLogger
	logger    logger.Logger
	station   string
}

type JobOption func(*Job)

// WithStation sets the station used when a job does not name one.
func WithStation(station string) JobOption {
	return func(j *Job) {
		j.station = station
	}
}

func NewJob(root string, store objectstorage.Store, uploader *objectstorage.UploadService, processor Processor, builder *output.MessageBuilder, trace *tracelog.TraceLogger, log logger.Logger, opts ...JobOption) *Job {
	j := &Job{
		root:      root,
		store:     store,
		uploader:  uploader,
		processor: processor,
		builder:   builder,
		trace:     trace,
		logger:    log,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Execute runs the job carried by msg and returns the messages announcing
// its outputs.
func (j *Job) Execute(ctx context.Context, msg models.ProcessingMessage) (messages []models.ProcessingMessage, err error) {
	input, err := models.ExecutionInputOf(&msg)
	if err != nil {
		return nil, errors.ErrValidation.WithCause(err)
	}
	if input.Station == "" {
		input.Station = j.station
	}

	ctx = logging.WithDatastripID(ctx, input.Datastrip)
	ctx, span := tracing.StartSpan(ctx, "execution-worker", "execution.job", input.Datastrip, string(msg.ProductFamily))
	task := j.trace.Begin(ctx, "Execution",
		zap.String("datastrip_id", input.Datastrip),
		zap.Int("inputs", len(input.Inputs)),
	)
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			task.Fail(err)
		} else {
			task.End(zap.Int("outputs", len(messages)))
		}
		metrics.ObserveExecution(time.Since(start), status)
		tracing.EndSpan(span, err)
	}()

	folders, err := j.setup(msg.ID, input)
	if err != nil {
		return nil, err
	}

	if err := j.download(ctx, folders, input); err != nil {
		return nil, err
	}

	if err := j.processor.Run(ctx, folders, input); err != nil {
		return nil, err
	}

	result, err := j.uploader.Upload(ctx, folders.Output, input.OutputFolder)
	if err != nil {
		return nil, err
	}
	if len(result.Missing) > 0 {
		j.logger.WarnwCtx(ctx, "Processing produced no output for some product types",
			"missing", result.Missing,
		)
	}

	return j.builder.Build(ctx, input, result.Files, folders.Output), nil
}

// folderName names the job's work folder after the datastrip, falling back
// to the message id. Both must stay a single entry under the root.
func folderName(msgID string, input models.ExecutionInput) (string, error) {
	replacer := strings.NewReplacer("/", "_", string(os.PathSeparator), "_")
	for _, candidate := range []string{input.Datastrip, msgID} {
		name := replacer.Replace(candidate)
		if name != "" && name != "." && filepath.IsLocal(name) {
			return name, nil
		}
	}
	return "", errors.ErrValidation.
		WithMessage("no usable work folder name").
		WithDetail(errors.DetailDatastripID, input.Datastrip).
		AsFatal()
}

// setup empties and recreates the job's work folder.
func (j *Job) setup(msgID string, input models.ExecutionInput) (Folders, error) {
	name, err := folderName(msgID, input)
	if err != nil {
		return Folders{}, err
	}

	work := filepath.Join(j.root, name)
	if rel, err := filepath.Rel(j.root, work); err != nil || rel == "." || !filepath.IsLocal(rel) {
		return Folders{}, errors.ErrValidation.
			WithMessage("work folder escapes the shared root").
			WithDetail("local_path", work).
			AsFatal()
	}

	folders := Folders{
		Work:   work,
		Input:  filepath.Join(work, inputFolder),
		Output: filepath.Join(work, outputFolder),
	}

	if err := os.RemoveAll(work); err != nil {
		return folders, fileError(err, "clean", work)
	}
	for _, dir := range []string{folders.Input, folders.Output} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return folders, fileError(err, "mkdir", dir)
		}
	}
	return folders, nil
}

func (j *Job) download(ctx context.Context, folders Folders, input models.ExecutionInput) error {
	for _, in := range input.Inputs {
		url := in.ObsURL
		if url == "" {
			url = obs.ToURL(in.Bucket, "", in.Key)
		}

		dir := folders.Input
		if in.ProductFamily != "" {
			dir = filepath.Join(dir, string(in.ProductFamily))
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fileError(err, "mkdir", dir)
		}

		files, err := j.store.Download(ctx, url, dir)
		if err != nil {
			return err
		}
		j.logger.DebugwCtx(ctx, "Downloaded input", "url", url, "files", len(files))
	}
	return nil
}

func fileError(err error, operation, path string) error {
	return errors.ErrFileOperation.
		WithCause(err).
		WithDetail("operation", operation).
		WithDetail("local_path", path)
}
