// Package exec provides the command execution abstraction used for git and
// the wrapped build tools. The orchestrator's state machine depends only on
// the Executor interface, so tests can substitute a scriptable fake.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"
	"time"

	"github.com/rzbill/stencil/pkg/log"
)

// Result captures the outcome of one subprocess invocation.
type Result struct {
	ExitCode int
	Output   string // combined stdout and stderr
}

// Executor runs external commands synchronously.
type Executor interface {
	// Run executes argv in dir and returns the exit status and combined
	// output. A non-zero exit status is returned as a Result, not an
	// error; err is reserved for failures to run the command at all
	// (not found, context timeout).
	Run(ctx context.Context, dir string, argv ...string) (Result, error)
}

// OSExecutor runs commands on the host with a per-step wall-clock timeout.
type OSExecutor struct {
	// Timeout bounds each invocation. Zero means no bound beyond ctx.
	Timeout time.Duration

	logger log.Logger
}

// NewOSExecutor creates an executor with the given per-step timeout.
func NewOSExecutor(timeout time.Duration, logger log.Logger) *OSExecutor {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &OSExecutor{
		Timeout: timeout,
		logger:  logger.WithComponent("exec"),
	}
}

// Run executes the command.
func (e *OSExecutor) Run(ctx context.Context, dir string, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("empty command")
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	e.logger.Debug("Running command",
		log.Str("cmd", strings.Join(argv, " ")),
		log.Str("dir", dir))

	cmd := osexec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	result := Result{ExitCode: 0, Output: buf.String()}

	if err != nil {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("command %q timed out after %s", argv[0], e.Timeout)
		}
		return result, fmt.Errorf("running %q: %w", argv[0], err)
	}

	return result, nil
}

// LookPath reports whether a binary is present on PATH. Used to degrade
// gracefully when optional tooling is absent.
func LookPath(name string) bool {
	_, err := osexec.LookPath(name)
	return err == nil
}
