package app

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
	"github.com/coattosintetico/termux-gps-tracker/pkg/track"
	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [document]",
	Short: "Print statistics of a recorded document",
	Long: `Print the feature count, time span and distance of a document, the latest one by default.
A compressed copy downloaded from the transfer server (.geojson.zst) is accepted too.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := documentArg(cfg.Record.RecordsDir, args)
	if err != nil {
		return err
	}

	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	writeSummary(cmd.OutOrStdout(), path, track.Summarize(doc))
	return nil
}

// documentArg returns the explicit document or the latest one in dir
func documentArg(dir string, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return storage.LatestDocument(dir)
}

// readDocument reads a plain or zstd compressed document
func readDocument(path string) (*types.FeatureCollection, error) {
	if !strings.HasSuffix(path, storage.CompressedExt) {
		return storage.NewFileDocumentStore().Read(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	compressor, err := storage.NewCompressor(storage.DefaultConfig().CompressionLevel)
	if err != nil {
		return nil, err
	}
	defer compressor.Close()

	data, err = compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrCorruptDocument, path, err)
	}
	return storage.DecodeDocument(path, data)
}

func writeSummary(w io.Writer, path string, sum track.Summary) {
	fmt.Fprintf(w, "Document:  %s\n", path)
	fmt.Fprintf(w, "Features:  %d\n", sum.Features)
	if sum.Features == 0 {
		return
	}

	fmt.Fprintf(w, "Start:     %s\n", sum.Start.Local().Format(time.DateTime))
	fmt.Fprintf(w, "End:       %s\n", sum.End.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Duration:  %s\n", sum.Duration)
	fmt.Fprintf(w, "Distance:  %.1f m\n", sum.DistanceMeters)
	fmt.Fprintf(w, "Speed:     %.2f m/s\n", sum.AverageSpeed())

	providers := make([]types.Provider, 0, len(sum.Providers))
	for p := range sum.Providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	for _, p := range providers {
		fmt.Fprintf(w, "Provider:  %s (%d)\n", p, sum.Providers[p])
	}
}
