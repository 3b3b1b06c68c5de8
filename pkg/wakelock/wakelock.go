// Package wakelock holds the device awake while a run records.
package wakelock

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const (
	// DefaultAcquireCommand acquires the Termux wakelock
	DefaultAcquireCommand = "termux-wake-lock"
	// DefaultReleaseCommand releases the Termux wakelock
	DefaultReleaseCommand = "termux-wake-unlock"
)

// Guard runs the wakelock acquire and release commands
type Guard struct {
	acquireCmd string
	releaseCmd string
	logger     *zap.Logger
}

// Option configures a Guard
type Option func(*Guard)

// WithCommands overrides the acquire and release commands
func WithCommands(acquire, release string) Option {
	return func(g *Guard) {
		g.acquireCmd = acquire
		g.releaseCmd = release
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New creates a wakelock guard
func New(opts ...Option) *Guard {
	g := &Guard{
		acquireCmd: DefaultAcquireCommand,
		releaseCmd: DefaultReleaseCommand,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Acquire takes the wakelock
func (g *Guard) Acquire(ctx context.Context) error {
	if err := run(ctx, g.acquireCmd); err != nil {
		return fmt.Errorf("failed to acquire wakelock: %w", err)
	}
	g.logger.Info("Wakelock acquired successfully")
	return nil
}

// Release drops the wakelock
func (g *Guard) Release(ctx context.Context) error {
	if err := run(ctx, g.releaseCmd); err != nil {
		return fmt.Errorf("failed to release wakelock: %w", err)
	}
	g.logger.Info("Wakelock released successfully")
	return nil
}

func run(ctx context.Context, name string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
