package sampler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/coattosintetico/termux-gps-tracker/pkg/location"
	"github.com/coattosintetico/termux-gps-tracker/pkg/shutdown"
	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

const (
	// DefaultInterval is the wait between two samples
	DefaultInterval = 4 * time.Second

	// DefaultWakeLockTimeout bounds each wakelock command
	DefaultWakeLockTimeout = 10 * time.Second
)

// State is a step of the sampling state machine
type State int32

const (
	StateIdle State = iota
	StateSampling
	StateSkipping
	StateAppending
	StateWaiting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateSkipping:
		return "skipping"
	case StateAppending:
		return "appending"
	case StateWaiting:
		return "waiting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the parameters of one run
type Config struct {
	// Path is the document written by the run
	Path     string
	Provider types.Provider
	Interval time.Duration
	// GracePeriod bounds the wait for the input watcher at the end of the run
	GracePeriod time.Duration
	// WakeLockTimeout bounds acquiring and releasing the wakelock
	WakeLockTimeout time.Duration
}

// Stats summarises a finished run
type Stats struct {
	Appended int
	Skipped  int
	Timeouts int
	Started  time.Time
	Ended    time.Time
}

// Loop samples the location provider and appends one feature per successful
// sample until the coordinator signals stop
type Loop struct {
	cfg      Config
	locator  Locator
	store    DocumentStore
	wakelock WakeLock
	coord    *shutdown.Coordinator

	logger  *zap.Logger
	now     func() time.Time
	onState func(State)
	state   atomic.Int32
}

// Option configures a Loop
type Option func(*Loop)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithClock overrides the clock used for feature timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// WithStateHook registers a function called on every state transition, from
// the loop goroutine
func WithStateHook(fn func(State)) Option {
	return func(l *Loop) {
		l.onState = fn
	}
}

// New creates a sampling loop
func New(
	cfg Config,
	locator Locator,
	store DocumentStore,
	wakelock WakeLock,
	coord *shutdown.Coordinator,
	opts ...Option,
) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = shutdown.DefaultGracePeriod
	}
	if cfg.WakeLockTimeout <= 0 {
		cfg.WakeLockTimeout = DefaultWakeLockTimeout
	}

	l := &Loop{
		cfg:      cfg,
		locator:  locator,
		store:    store,
		wakelock: wakelock,
		coord:    coord,
		logger:   zap.NewNop(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// State returns the current state of the loop
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	if l.onState != nil {
		l.onState(s)
	}
}

// stopping reports whether the loop must not start another step
func (l *Loop) stopping(ctx context.Context) bool {
	return l.coord.Stopped() || ctx.Err() != nil
}

// Run executes the run until stop is requested or the document cannot be
// written. The wakelock is released exactly once before Run returns.
func (l *Loop) Run(ctx context.Context) (stats Stats, err error) {
	stats.Started = l.now()

	l.acquire(ctx)
	defer func() {
		l.finish(ctx, err)
		stats.Ended = l.now()
	}()

	if err := l.store.Create(l.cfg.Path); err != nil {
		return stats, fmt.Errorf("failed to create document: %w", err)
	}
	l.logger.Info("Created new tracking file", zap.String("path", l.cfg.Path))
	l.setState(StateIdle)

	for !l.stopping(ctx) {
		l.setState(StateSampling)
		l.logger.Debug("Reading location", zap.Stringer("provider", l.cfg.Provider))
		res := l.locator.Locate(ctx, l.cfg.Provider)

		// A sample that arrives after stop was requested is dropped
		if l.stopping(ctx) {
			break
		}

		feature, ok := l.toFeature(res, &stats)
		if ok {
			l.setState(StateAppending)
			if err := l.store.Append(l.cfg.Path, feature); err != nil {
				l.logger.Error("Failed to append record, stopping run",
					zap.String("path", l.cfg.Path),
					zap.Error(err))
				return stats, fmt.Errorf("failed to append record: %w", err)
			}
			stats.Appended++
			l.logger.Info("New record appended",
				zap.String("path", l.cfg.Path),
				zap.Int("count", stats.Appended))
		}

		l.setState(StateWaiting)
		l.wait(ctx)
	}

	return stats, nil
}

// toFeature turns a location result into a feature, recording skipped cycles
func (l *Loop) toFeature(res location.Result, stats *Stats) (types.Feature, bool) {
	if !res.OK() {
		l.setState(StateSkipping)
		stats.Skipped++
		if res.Outcome == location.OutcomeTimeout {
			stats.Timeouts++
		}
		l.logger.Warn("Skipping this reading",
			zap.Stringer("outcome", res.Outcome),
			zap.String("detail", res.Detail),
			zap.Duration("elapsed", res.Elapsed))
		return types.Feature{}, false
	}

	sample, err := location.ParseSample(res.Data, l.cfg.Provider, l.now())
	if err != nil {
		l.setState(StateSkipping)
		stats.Skipped++
		l.logger.Error("Error decoding location payload", zap.Error(err))
		l.logger.Debug("Raw output", zap.String("payload", res.Data))
		return types.Feature{}, false
	}

	return types.NewFeature(sample), true
}

// wait sleeps for the interval, waking early when stop is requested
func (l *Loop) wait(ctx context.Context) {
	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-l.coord.Done():
	case <-ctx.Done():
	}
}

// acquire takes the wakelock. A hung command is abandoned after the timeout
// or as soon as stop is requested.
func (l *Loop) acquire(ctx context.Context) {
	acquireCtx, cancel := context.WithTimeout(ctx, l.cfg.WakeLockTimeout)
	defer cancel()
	go func() {
		select {
		case <-l.coord.Done():
			cancel()
		case <-acquireCtx.Done():
		}
	}()

	if err := l.wakelock.Acquire(acquireCtx); err != nil {
		l.logger.Warn("Could not acquire wakelock, recording may pause while the screen is locked",
			zap.Error(err))
	}
}

func (l *Loop) finish(ctx context.Context, runErr error) {
	l.setState(StateStopped)

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.WakeLockTimeout)
	defer cancel()
	if err := l.wakelock.Release(releaseCtx); err != nil {
		l.logger.Error("Could not release wakelock", zap.Error(err))
	}

	l.coord.Wait(l.cfg.GracePeriod)

	if runErr != nil {
		l.logger.Error("Recording terminated", zap.Error(runErr))
		return
	}
	l.logger.Info("Recording terminated gracefully", zap.String("path", l.cfg.Path))
}
