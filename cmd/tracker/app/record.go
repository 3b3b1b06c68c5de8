package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/coattosintetico/termux-gps-tracker/internal/config"
	"github.com/coattosintetico/termux-gps-tracker/internal/logging"
	"github.com/coattosintetico/termux-gps-tracker/pkg/location"
	"github.com/coattosintetico/termux-gps-tracker/pkg/sampler"
	"github.com/coattosintetico/termux-gps-tracker/pkg/shutdown"
	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
	"github.com/coattosintetico/termux-gps-tracker/pkg/wakelock"
)

const catalogTimeout = 5 * time.Second

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a GPS track",
	Long: `Record a GPS track into a new GeoJSON document named after the start time.

A location is requested every --time seconds from the selected provider. Type q
and press Enter, or send SIGINT/SIGTERM, to stop the run.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	def := config.DefaultConfig()

	recordCmd.Flags().IntP("time", "t", int(def.Record.Interval/time.Second), "Seconds between two samples")
	recordCmd.Flags().StringP("provider", "p", string(def.Record.Provider),
		"Location provider: gps (g), network (n) or passive (p)")
	recordCmd.Flags().String("logs-dir", def.Record.LogsDir, "Directory holding the run logs")

	bindFlag(config.KeyRecordInterval, recordCmd.Flags().Lookup("time"))
	bindFlag(config.KeyRecordProvider, recordCmd.Flags().Lookup("provider"))
	bindFlag(config.KeyRecordLogsDir, recordCmd.Flags().Lookup("logs-dir"))
}

func runRecord(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	_, err = record(cmd.Context(), cfg, cmd.InOrStdin(), cmd.ErrOrStderr(), signals)
	return err
}

// record performs one run and returns its catalog entry
func record(
	ctx context.Context,
	cfg *config.Config,
	stdin io.Reader,
	console io.Writer,
	signals <-chan os.Signal,
) (*storage.RunRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	created, err := ensureDir(cfg.Record.RecordsDir)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	path := storage.DocumentPath(cfg.Record.RecordsDir, startedAt)
	logPath := logging.LogPathFor(cfg.Record.LogsDir, path)

	opts := logging.DefaultOptions(logPath)
	opts.Console = console
	logger, closeLog, err := logging.New(opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeLog() }()

	logger.Info("Logging initialized", zap.String("file", logPath))
	if created {
		logger.Info("Created records directory", zap.String("path", cfg.Record.RecordsDir))
	}
	if !isTerminal(stdin) {
		logger.Warn("Standard input is not a terminal, the quit key may be unavailable")
	}

	catalog, err := storage.NewCatalog(cfg.ToStorageConfig())
	if err != nil {
		logger.Warn("Run catalog unavailable, this run will not be listed", zap.Error(err))
	} else {
		defer catalog.Close()
	}

	run := &storage.RunRecord{
		ID:        uuid.NewString(),
		Path:      path,
		Provider:  cfg.Record.Provider,
		Interval:  cfg.Record.Interval,
		StartedAt: startedAt,
		Status:    storage.RunStatusRunning,
	}
	putRun(catalog, run, logger)

	coord := shutdown.New(cfg.Record.StopSentinel, logger)
	coord.Watch(stdin)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-signals:
			logger.Info("Shutdown signal received, stopping", zap.Stringer("signal", sig))
			coord.Stop()
		case <-done:
		}
	}()

	invoker := location.NewInvoker(
		location.WithCommand(cfg.Record.LocationCommand),
		location.WithTimeout(cfg.Record.ProviderTimeout),
		location.WithLogger(logger),
	)
	guard := wakelock.New(
		wakelock.WithCommands(cfg.Record.WakeLockCommand, cfg.Record.WakeUnlockCommand),
		wakelock.WithLogger(logger),
	)

	logger.Info("Starting GPS tracking",
		zap.Stringer("provider", cfg.Record.Provider),
		zap.Duration("interval", cfg.Record.Interval))
	logger.Info(fmt.Sprintf("Type %q and press Enter to stop", cfg.Record.StopSentinel))

	loop := sampler.New(cfg.ToSamplerConfig(path), invoker, storage.NewFileDocumentStore(), guard, coord,
		sampler.WithLogger(logger))
	stats, runErr := loop.Run(ctx)

	run.EndedAt = stats.Ended
	run.Appended = stats.Appended
	run.Skipped = stats.Skipped
	run.Timeouts = stats.Timeouts
	run.Status = storage.RunStatusStopped
	if runErr != nil {
		run.Status = storage.RunStatusFailed
		run.Error = runErr.Error()
	}
	putRun(catalog, run, logger)

	logger.Info("Run finished",
		zap.String("id", run.ID),
		zap.Int("appended", stats.Appended),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", stats.Ended.Sub(stats.Started)))

	return run, runErr
}

func putRun(catalog storage.Catalog, run *storage.RunRecord, logger *zap.Logger) {
	if catalog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	if err := catalog.Put(ctx, run); err != nil {
		logger.Warn("Failed to update run catalog", zap.String("id", run.ID), zap.Error(err))
	}
}

// ensureDir creates dir when missing and reports whether it did
func ensureDir(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat records directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create records directory: %w", err)
	}
	return true, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
