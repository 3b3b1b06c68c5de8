// Package shutdown implements the cooperative stop signal shared between the
// sampling loop and the operator input watcher.
//
// The flag is write-once: it moves from running to stopped and never back.
// Readers either poll Stopped between blocking steps or select on Done to
// wake up as soon as the flag flips.
package shutdown

import (
	"bufio"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultSentinel is the operator input that stops a run
	DefaultSentinel = "q"

	// DefaultGracePeriod bounds how long Wait blocks for the watcher
	DefaultGracePeriod = time.Second
)

// Coordinator holds the stop flag of one run
type Coordinator struct {
	sentinel string
	logger   *zap.Logger

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	watchOnce sync.Once
	watchDone chan struct{}
}

// New creates a coordinator in the running state
func New(sentinel string, logger *zap.Logger) *Coordinator {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		sentinel:  sentinel,
		logger:    logger,
		stopCh:    make(chan struct{}),
		watchDone: make(chan struct{}),
	}
}

// Stop flips the flag to stopped. Safe to call more than once and from any
// goroutine.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		close(c.stopCh)
	})
}

// Stopped reports whether a stop was requested
func (c *Coordinator) Stopped() bool {
	return c.stopped.Load()
}

// Done is closed once a stop was requested
func (c *Coordinator) Done() <-chan struct{} {
	return c.stopCh
}

// Watch starts the background goroutine reading operator input line by line.
// The sentinel line stops the run; anything else is ignored. End of input ends
// the watcher without stopping the run. Only the first call has an effect.
func (c *Coordinator) Watch(r io.Reader) {
	c.watchOnce.Do(func() {
		go c.watch(r)
	})
}

func (c *Coordinator) watch(r io.Reader) {
	defer close(c.watchDone)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if c.Stopped() {
			return
		}

		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line != c.sentinel {
			c.logger.Debug("Ignoring operator input", zap.String("input", line))
			continue
		}

		c.logger.Info("Stop requested, finishing current step")
		c.Stop()
		return
	}

	if err := scanner.Err(); err != nil {
		c.logger.Debug("Operator input watcher stopped", zap.Error(err))
		return
	}
	c.logger.Debug("Operator input closed, stop key unavailable")
}

// Wait blocks until the watcher goroutine has finished or grace elapses, and
// reports whether the watcher finished. A watcher blocked on input that never
// arrives is abandoned. Wait returns immediately if Watch was never called.
func (c *Coordinator) Wait(grace time.Duration) bool {
	started := true
	c.watchOnce.Do(func() {
		started = false
		close(c.watchDone)
	})
	if !started {
		return true
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-c.watchDone:
		return true
	case <-timer.C:
		c.logger.Debug("Operator input watcher still blocked, not waiting for it",
			zap.Duration("grace", grace))
		return false
	}
}
