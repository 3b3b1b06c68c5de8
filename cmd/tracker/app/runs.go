package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List recorded runs",
	Long: `List recorded runs, or show one run in detail. The id may be
abbreviated to any unique prefix, such as the one printed in the list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	catalog, err := storage.NewCatalog(cfg.ToStorageConfig())
	if err != nil {
		return err
	}
	defer catalog.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) > 0 {
		run, err := findRun(ctx, catalog, args[0])
		if err != nil {
			return err
		}
		writeRun(cmd.OutOrStdout(), run)
		return nil
	}

	runs, err := catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	return writeRuns(cmd.OutOrStdout(), runs)
}

// findRun looks a run up by its full id, then by a unique id prefix
func findRun(ctx context.Context, catalog storage.Catalog, id string) (*storage.RunRecord, error) {
	run, err := catalog.Get(ctx, id)
	if err == nil || !errors.Is(err, storage.ErrRunNotFound) {
		return run, err
	}

	runs, err := catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var match *storage.RunRecord
	for i := range runs {
		if !strings.HasPrefix(runs[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run id %q is ambiguous", id)
		}
		match = &runs[i]
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, id)
	}
	return match, nil
}

func writeRun(w io.Writer, run *storage.RunRecord) {
	fmt.Fprintf(w, "ID:        %s\n", run.ID)
	fmt.Fprintf(w, "Document:  %s\n", run.Path)
	fmt.Fprintf(w, "Provider:  %s\n", run.Provider)
	fmt.Fprintf(w, "Interval:  %s\n", run.Interval)
	fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Duration:  %s\n", runDuration(*run))
	fmt.Fprintf(w, "Appended:  %d\n", run.Appended)
	fmt.Fprintf(w, "Skipped:   %d\n", run.Skipped)
	fmt.Fprintf(w, "Timeouts:  %d\n", run.Timeouts)
	fmt.Fprintf(w, "Status:    %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
}

func writeRuns(w io.Writer, runs []storage.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded")
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID[:min(8, len(run.ID))],
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
			string(run.Provider),
			strconv.Itoa(run.Appended),
			strconv.Itoa(run.Skipped),
			string(run.Status),
			run.Path,
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Started", "Duration", "Provider", "Appended", "Skipped", "Status", "Document")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to render runs: %w", err)
	}
	return table.Render()
}

func runDuration(run storage.RunRecord) string {
	if run.EndedAt.IsZero() {
		return "-"
	}
	return run.EndedAt.Sub(run.StartedAt).Round(time.Second).String()
}
