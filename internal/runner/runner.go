// Package runner executes external commands under a hard wall-clock bound
// and folds their outcome into a domain.Output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"neti/internal/domain"
)

// DefaultTimeout bounds every command unless overridden
const DefaultTimeout = 30 * time.Second

// waitDelay is how long Wait keeps reading pipes after the process group is killed
const waitDelay = 2 * time.Second

var (
	// ErrTimeout is returned by Exec when the command outlives its bound
	ErrTimeout = errors.New("command timed out")
	// ErrCanceled is returned by Exec when the caller's context ends first
	ErrCanceled = errors.New("command canceled")
	// ErrEmptyCommand is returned for an empty argument vector
	ErrEmptyCommand = errors.New("empty command")
)

// Runner runs argument vectors without a shell
type Runner struct {
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures a Runner
type Option func(*Runner)

// WithTimeout overrides the wall-clock bound
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for command tracing
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Runner
func New(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		log:     discardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the configured bound
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Result is the raw outcome of a finished command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec runs argv and returns its captured streams.
// A non-zero exit is not an error; ExitCode carries it.
func (r *Runner) Exec(ctx context.Context, argv []string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, ErrEmptyCommand
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	// the caller's context is checked first: its deadline also ends runCtx
	if err := ctx.Err(); err != nil {
		r.log.WithFields(logrus.Fields{
			"command": argv[0],
			"elapsed": elapsed,
			"cause":   err,
		}).Warn("Runner: command canceled, process group killed")
		return Result{}, fmt.Errorf("%s: %w: %w", argv[0], ErrCanceled, err)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		r.log.WithFields(logrus.Fields{
			"command": argv[0],
			"elapsed": elapsed,
		}).Warn("Runner: command timed out, process group killed")
		return Result{}, fmt.Errorf("%s: %w", argv[0], ErrTimeout)
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			r.log.WithFields(logrus.Fields{
				"command":   argv[0],
				"exit_code": res.ExitCode,
				"elapsed":   elapsed,
			}).Debug("Runner: command exited non-zero")
			return res, nil
		}
		return Result{}, err
	}

	r.log.WithFields(logrus.Fields{
		"command": argv[0],
		"elapsed": elapsed,
	}).Debug("Runner: command completed")
	return res, nil
}

// Run executes argv and normalizes the outcome:
// zero exit yields stdout, non-zero exit yields the trimmed combined streams,
// timeout and launch failures yield fixed messages.
func (r *Runner) Run(ctx context.Context, argv []string) domain.Output {
	res, err := r.Exec(ctx, argv)
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			return domain.Failure(TimeoutMessage(r.timeout))
		case errors.Is(err, ErrCanceled):
			return domain.Failure(CanceledMessage(ctx.Err()))
		}
		return domain.Failure(fmt.Sprintf("An unexpected error occurred: %v", err))
	}

	if res.ExitCode != 0 {
		combined := strings.TrimSpace(res.Stdout + "\n" + res.Stderr)
		if combined == "" {
			combined = fmt.Sprintf("Command exited with status %d", res.ExitCode)
		}
		return domain.Failure(combined)
	}

	return domain.Success(res.Stdout)
}

// TimeoutMessage is the fixed failure text for a command that outlived d
func TimeoutMessage(d time.Duration) string {
	return fmt.Sprintf("Error: Command timed out after %s seconds.", formatSeconds(d))
}

// CanceledMessage is the failure text for a command stopped by its caller
func CanceledMessage(cause error) string {
	return fmt.Sprintf("Error: Command canceled before completion (%v).", cause)
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.FormatInt(int64(d/time.Second), 10)
	}
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
