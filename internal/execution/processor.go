// Package execution runs one processing job: it prepares the shared work
// folder, downloads the inputs, runs the processor and hands the produced
// outputs to the upload service.
package execution

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"groundseg/internal/logger"
	"groundseg/pkg/errors"
	"groundseg/pkg/models"
)

const (
	// outputTail bounds how much processor output is kept for error details.
	outputTail = 2048
	// waitDelay bounds how long output pipes are drained after the process
	// is killed.
	waitDelay = 5 * time.Second
)

// Folders is the layout of one job's work folder.
type Folders struct {
	Work   string
	Input  string
	Output string
}

type Processor interface {
	Run(ctx context.Context, folders Folders, input models.ExecutionInput) error
}

// CommandProcessor runs an external program. Arguments may use the
// placeholders {work_dir}, {input_dir}, {output_dir}, {datastrip},
// {satellite} and {station}.
type CommandProcessor struct {
	command []string
	timeout time.Duration
	logger  logger.Logger
}

func NewCommandProcessor(command []string, timeout time.Duration, log logger.Logger) *CommandProcessor {
	return &CommandProcessor{
		command: append([]string(nil), command...),
		timeout: timeout,
		logger:  log,
	}
}

func (p *CommandProcessor) args(folders Folders, input models.ExecutionInput) []string {
	replacer := strings.NewReplacer(
		"{work_dir}", folders.Work,
		"{input_dir}", folders.Input,
		"{output_dir}", folders.Output,
		"{datastrip}", input.Datastrip,
		"{satellite}", input.Satellite,
		"{station}", input.Station,
	)
	out := make([]string, len(p.command))
	for i, arg := range p.command {
		out[i] = replacer.Replace(arg)
	}
	return out
}

func (p *CommandProcessor) Run(ctx context.Context, folders Folders, input models.ExecutionInput) error {
	if len(p.command) == 0 {
		return errors.ErrExecution.WithMessage("no processor command configured").AsFatal()
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := p.args(folders, input)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = folders.Work
	cmd.WaitDelay = waitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	p.logger.InfowCtx(ctx, "Running processor", "command", args[0], "work_dir", folders.Work)
	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err == nil {
		p.logger.InfowCtx(ctx, "Processor finished", "duration", duration)
		return nil
	}

	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.ErrTimeout.
			WithCause(err).
			WithMessage("processor exceeded its timeout").
			WithDetail("timeout", p.timeout.String())
	}

	appErr := errors.ErrExecution.
		WithCause(err).
		WithDetail("command", args[0]).
		WithDetail("output", tail(out.String(), outputTail))

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		appErr = appErr.WithDetail("exit_code", exitErr.ExitCode())
	}
	return appErr
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
