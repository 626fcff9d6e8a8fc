// Package executor runs a planned command list one command at a time and
// stops at the first failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fpp-125/fbh/internal/command"
)

// BuildFailedError is returned when a step exits unsuccessfully or cannot be
// started. Result holds the captured output of that step.
type BuildFailedError struct {
	Index  int
	Total  int
	Spec   command.Spec
	Result command.Result
	Err    error
}

func (e *BuildFailedError) Error() string {
	msg := fmt.Sprintf("build failed at step %d/%d (%s)", e.Index+1, e.Total, e.Spec.Program)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildFailedError) Unwrap() error { return e.Err }

// Step describes one finished command for observers.
type Step struct {
	Index    int
	Total    int
	Spec     command.Spec
	Result   command.Result
	Duration time.Duration
	Err      error
}

type Executor struct {
	Runner command.Runner
	Logger *log.Logger
	// Observe, when set, is called after every command, failed or not.
	Observe func(Step)
}

func New(runner command.Runner, logger *log.Logger) *Executor {
	return &Executor{Runner: runner, Logger: logger}
}

func (e *Executor) Run(ctx context.Context, specs []command.Spec) error {
	logger := e.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	logger.Info("running build commands", "count", len(specs))
	for i, spec := range specs {
		logger.Info("step", "n", i+1, "of", len(specs), "cmd", spec.String())
		started := time.Now()
		res, err := e.Runner.Run(ctx, spec)
		if err == nil && res.ExitCode != 0 {
			err = &command.ExitError{Spec: spec, Result: res}
		}
		if e.Observe != nil {
			e.Observe(Step{Index: i, Total: len(specs), Spec: spec, Result: res, Duration: time.Since(started), Err: err})
		}
		if err != nil {
			if !errors.Is(err, command.ErrExternalCommandFailed) {
				err = fmt.Errorf("%w: %v", command.ErrExternalCommandFailed, err)
			}
			return &BuildFailedError{Index: i, Total: len(specs), Spec: spec, Result: res, Err: err}
		}
		if out := strings.TrimSpace(res.Stdout); out != "" {
			logger.Debug("step output", "n", i+1, "stdout", out)
		}
	}
	logger.Info("build succeeded")
	return nil
}
