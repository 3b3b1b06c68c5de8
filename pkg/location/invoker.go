// Package location runs the external location command and decodes its output.
package location

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

const (
	// DefaultCommand is the location command shipped with Termux:API
	DefaultCommand = "termux-location"

	// DefaultTimeout bounds a single location request
	DefaultTimeout = 5 * time.Second

	// defaultDrainTimeout bounds how long output is drained after the
	// process is killed
	defaultDrainTimeout = time.Second
)

// Outcome classifies a location request
type Outcome int

const (
	// OutcomeOK means the command succeeded and produced output
	OutcomeOK Outcome = iota
	// OutcomeTimeout means the command was killed after the timeout
	OutcomeTimeout
	// OutcomeFailed means the command could not start, exited non-zero or
	// produced no output
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single location request
type Result struct {
	Outcome Outcome
	// Data is the raw command output, set only for OutcomeOK
	Data string
	// Detail describes a failure: stderr contents or the launch error
	Detail  string
	Elapsed time.Duration
}

// OK reports whether the request produced data
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Invoker runs the location command with a bounded timeout
type Invoker struct {
	command      string
	timeout      time.Duration
	drainTimeout time.Duration
	logger       *zap.Logger
}

// Option configures an Invoker
type Option func(*Invoker)

// WithCommand overrides the location command
func WithCommand(command string) Option {
	return func(i *Invoker) {
		i.command = command
	}
}

// WithTimeout overrides the request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(i *Invoker) {
		i.timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// NewInvoker creates an invoker for the location command
func NewInvoker(opts ...Option) *Invoker {
	i := &Invoker{
		command:      DefaultCommand,
		timeout:      DefaultTimeout,
		drainTimeout: defaultDrainTimeout,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Locate runs the location command for provider. It never returns an error:
// every failure mode is folded into the returned Result.
func (i *Invoker) Locate(ctx context.Context, provider types.Provider) Result {
	start := time.Now()
	i.logger.Debug("Starting location request", zap.Stringer("provider", provider))

	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, i.command, "-p", string(provider))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Once the process is killed, stop waiting on pipes held open by children
	cmd.WaitDelay = i.drainTimeout

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		i.logger.Warn("Location request timed out",
			zap.Duration("timeout", i.timeout),
			zap.Stringer("provider", provider))
		return Result{Outcome: OutcomeTimeout, Detail: "timed out", Elapsed: elapsed}
	}

	out := stdout.String()
	if err == nil && strings.TrimSpace(out) != "" {
		i.logger.Debug("Location request completed", zap.Duration("elapsed", elapsed))
		return Result{Outcome: OutcomeOK, Data: out, Elapsed: elapsed}
	}

	detail := strings.TrimSpace(stderr.String())
	switch {
	case detail != "":
	case err != nil:
		detail = err.Error()
	default:
		detail = "no output"
	}

	i.logger.Error("Location request failed",
		zap.Duration("elapsed", elapsed),
		zap.Stringer("provider", provider),
		zap.String("detail", detail))
	if out != "" {
		i.logger.Debug("Command output", zap.String("stdout", out))
	}

	return Result{Outcome: OutcomeFailed, Detail: detail, Elapsed: elapsed}
}
