package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coattosintetico/termux-gps-tracker/internal/config"
	"github.com/coattosintetico/termux-gps-tracker/internal/logging"
	"github.com/coattosintetico/termux-gps-tracker/pkg/api"
	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
	"github.com/coattosintetico/termux-gps-tracker/pkg/transfer"
)

const defaultGracefulTimeout = 5 * time.Second

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Send the latest recorded document to another machine",
	Long: `Send the most recently modified document of the records directory.

With --method http the document is served on the local network until
interrupted. With --method share it is handed to the Android share sheet.`,
	Args: cobra.NoArgs,
	RunE: runTransfer,
}

func init() {
	def := config.DefaultConfig()

	transferCmd.Flags().StringP("method", "m", def.Transfer.Method, "Transfer method: http or share")
	transferCmd.Flags().Int("port", def.Transfer.Port, "Port for the HTTP server (only used with --method=http)")

	bindFlag(config.KeyTransferMethod, transferCmd.Flags().Lookup("method"))
	bindFlag(config.KeyTransferPort, transferCmd.Flags().Lookup("port"))
}

func runTransfer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewConsole(cmd.ErrOrStderr())

	latest, err := storage.LatestDocument(cfg.Record.RecordsDir)
	if err != nil {
		logger.Error("No document to transfer", zap.Error(err))
		return err
	}
	logger.Info("Latest document", zap.String("path", latest))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Transfer.Method == config.MethodShare {
		return transfer.NewSharer(cfg.Transfer.ShareCommand, logger).Share(ctx, latest)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveDocument(ctx, cfg, latest, cmd.OutOrStdout(), logger)
}

// serveDocument serves path until ctx is done
func serveDocument(ctx context.Context, cfg *config.Config, path string, out io.Writer, logger *zap.Logger) error {
	compressor, err := storage.NewCompressor(cfg.Storage.CompressionLevel)
	if err != nil {
		return err
	}
	defer compressor.Close()

	cache := storage.NewDocumentCache(compressor, cfg.Storage.CacheCapacity, cfg.Storage.CacheTTL)
	server := api.NewServer(fmt.Sprintf(":%d", cfg.Transfer.Port), path, storage.NewFileDocumentStore(), cache, logger)

	url := transfer.DownloadURL(transfer.LocalIP(logger), cfg.Transfer.Port, server.Name())
	logger.Info("HTTP server started", zap.Int("port", cfg.Transfer.Port))
	logger.Info("Access the file at: " + url)
	logger.Info("On your computer, you can download the file using:")
	for _, hint := range transfer.Hints(url) {
		logger.Info("  " + hint)
	}
	logger.Info("Compressed copy: " + url + storage.CompressedExt)

	if qr, err := transfer.QRCode(url); err != nil {
		logger.Warn("Could not render QR code", zap.Error(err))
	} else {
		fmt.Fprint(out, qr)
	}
	logger.Info("Press Ctrl+C to stop the server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	stats := cache.Stats()
	logger.Info("Server stopped",
		zap.Uint64("cache_hits", stats.Hits),
		zap.Uint64("cache_misses", stats.Misses),
		zap.Float64("cache_hit_rate", stats.HitRate()))
	return nil
}
