package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coattosintetico/termux-gps-tracker/internal/config"
	"github.com/coattosintetico/termux-gps-tracker/internal/logging"
	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
	"github.com/coattosintetico/termux-gps-tracker/pkg/track"
	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

// testConfig points every command and directory at a temporary fake device
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	require.NoError(t, os.MkdirAll(bin, 0755))

	cfg := config.DefaultConfig()
	cfg.Record.RecordsDir = filepath.Join(dir, "records")
	cfg.Record.LogsDir = filepath.Join(dir, "logs")
	cfg.Record.Interval = 20 * time.Millisecond
	cfg.Record.Provider = types.ProviderGPS
	cfg.Record.LocationCommand = writeScript(t, bin, "termux-location",
		`echo '{"longitude":1.5,"latitude":2.5,"accuracy":3,"provider":"'"$2"'"}'`)
	cfg.Record.WakeLockCommand = writeScript(t, bin, "termux-wake-lock", "exit 0")
	cfg.Record.WakeUnlockCommand = writeScript(t, bin, "termux-wake-unlock", "exit 0")
	return cfg
}

// featuresIn reports the feature count of the latest document, -1 when unreadable
func featuresIn(dir string) int {
	path, err := storage.LatestDocument(dir)
	if err != nil {
		return -1
	}
	doc, err := storage.NewFileDocumentStore().Read(path)
	if err != nil {
		return -1
	}
	return len(doc.Features)
}

func TestRecordStopsOnSentinel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	stdin, input := io.Pipe()
	defer input.Close()

	go func() {
		assert.Eventually(t, func() bool { return featuresIn(cfg.Record.RecordsDir) >= 2 },
			10*time.Second, 10*time.Millisecond)
		_, _ = io.WriteString(input, "q\n")
	}()

	var console bytes.Buffer
	run, err := record(context.Background(), cfg, stdin, &console, nil)
	require.NoError(t, err)

	assert.Equal(t, storage.RunStatusStopped, run.Status)
	assert.GreaterOrEqual(t, run.Appended, 2)
	assert.Equal(t, types.ProviderGPS, run.Provider)
	assert.Equal(t, cfg.Record.RecordsDir, filepath.Dir(run.Path))

	doc, err := storage.NewFileDocumentStore().Read(run.Path)
	require.NoError(t, err)
	require.Len(t, doc.Features, run.Appended)
	for _, f := range doc.Features {
		assert.Equal(t, []float64{1.5, 2.5}, f.Geometry.Coordinates)
		assert.Equal(t, types.ProviderGPS, f.Properties.Provider)
		assert.Equal(t, "gps", f.Properties.AdditionalInfo["provider"])
	}

	logData, err := os.ReadFile(logging.LogPathFor(cfg.Record.LogsDir, run.Path))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "[DEBUG] Reading location")
	assert.Contains(t, string(logData), "[INFO] Recording terminated gracefully")
	assert.Contains(t, console.String(), "[INFO] Created records directory")
	assert.Contains(t, console.String(), "[WARNING] Standard input is not a terminal")
	assert.NotContains(t, console.String(), "[DEBUG]")

	catalog, err := storage.NewCatalog(cfg.ToStorageConfig())
	require.NoError(t, err)
	defer catalog.Close()

	stored, err := catalog.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusStopped, stored.Status)
	assert.Equal(t, run.Appended, stored.Appended)
	assert.False(t, stored.EndedAt.IsZero())
}

func TestRecordStopsOnSignal(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	signals := make(chan os.Signal, 1)

	go func() {
		assert.Eventually(t, func() bool { return featuresIn(cfg.Record.RecordsDir) >= 1 },
			10*time.Second, 10*time.Millisecond)
		signals <- syscall.SIGTERM
	}()

	var console bytes.Buffer
	run, err := record(context.Background(), cfg, bytes.NewReader(nil), &console, signals)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, run.Appended, 1)
	assert.Contains(t, console.String(), "Shutdown signal received")
}

func TestRecordFailsOnCorruptDocument(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	// the provider corrupts the document being written before answering
	cfg.Record.LocationCommand = writeScript(t, t.TempDir(), "termux-location",
		`for f in `+cfg.Record.RecordsDir+`/*.geojson; do printf '{"type":' > "$f"; done
echo '{"longitude":1,"latitude":2}'`)

	var console bytes.Buffer
	run, err := record(context.Background(), cfg, bytes.NewReader(nil), &console, nil)
	require.ErrorIs(t, err, storage.ErrCorruptDocument)
	assert.Equal(t, storage.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "corrupt document")
	assert.Contains(t, console.String(), "[ERROR] Recording terminated")
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "records")

	created, err := ensureDir(dir)
	require.NoError(t, err)
	assert.True(t, created)
	assert.DirExists(t, dir)

	created, err = ensureDir(dir)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDocumentArg(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := documentArg(dir, nil)
	require.ErrorIs(t, err, storage.ErrNoDocuments)

	path := filepath.Join(dir, "a.geojson")
	require.NoError(t, storage.NewFileDocumentStore().Create(path))

	got, err := documentArg(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = documentArg(dir, []string{"/elsewhere/b.geojson"})
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere/b.geojson", got)
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writeSummary(&out, "records/run.geojson", track.Summary{
		Features:       2,
		Start:          time.Unix(1700000000, 0),
		End:            time.Unix(1700000004, 0),
		Duration:       4 * time.Second,
		DistanceMeters: 1111.9,
		Providers:      map[types.Provider]int{types.ProviderNetwork: 1, types.ProviderGPS: 1},
	})

	s := out.String()
	assert.Contains(t, s, "Features:  2")
	assert.Contains(t, s, "Duration:  4s")
	assert.Contains(t, s, "Distance:  1111.9 m")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("gps (1)")), bytes.Index(out.Bytes(), []byte("network (1)")))

	out.Reset()
	writeSummary(&out, "records/empty.geojson", track.Summary{})
	assert.Equal(t, "Document:  records/empty.geojson\nFeatures:  0\n", out.String())
}

func TestWriteRuns(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, writeRuns(&out, nil))
	assert.Equal(t, "No runs recorded\n", out.String())

	start := time.Unix(1700000000, 0)
	out.Reset()
	require.NoError(t, writeRuns(&out, []storage.RunRecord{
		{
			ID:        "0f8c2b1e-5a8d-4a53-9d0e-7d1c2f1a9b00",
			Path:      "records/2023-11-14_22-13-20.geojson",
			Provider:  types.ProviderNetwork,
			StartedAt: start,
			EndedAt:   start.Add(90 * time.Second),
			Appended:  20,
			Skipped:   2,
			Status:    storage.RunStatusStopped,
		},
		{
			ID:        "short",
			Path:      "records/2023-11-15_08-00-00.geojson",
			Provider:  types.ProviderGPS,
			StartedAt: start.Add(time.Hour),
			Status:    storage.RunStatusRunning,
		},
	}))

	s := out.String()
	assert.Contains(t, s, "0f8c2b1e")
	assert.NotContains(t, s, "0f8c2b1e-5a8d")
	assert.Contains(t, s, "1m30s")
	assert.Contains(t, s, "stopped")
	assert.Contains(t, s, "running")
	assert.Contains(t, s, "records/2023-11-15_08-00-00.geojson")
}

func TestFindRun(t *testing.T) {
	t.Parallel()

	catalog, err := storage.NewCatalog(&storage.Config{CatalogPath: filepath.Join(t.TempDir(), ".catalog")})
	require.NoError(t, err)
	defer catalog.Close()

	ctx := context.Background()
	for _, id := range []string{"0f8c2b1e-aaaa", "0f8c2b1e-bbbb", "7d1c2f1a-cccc"} {
		require.NoError(t, catalog.Put(ctx, &storage.RunRecord{ID: id, Status: storage.RunStatusStopped}))
	}

	run, err := findRun(ctx, catalog, "7d1c2f1a-cccc")
	require.NoError(t, err)
	assert.Equal(t, "7d1c2f1a-cccc", run.ID)

	run, err = findRun(ctx, catalog, "7d1c")
	require.NoError(t, err)
	assert.Equal(t, "7d1c2f1a-cccc", run.ID)

	run, err = findRun(ctx, catalog, "0f8c2b1e-b")
	require.NoError(t, err)
	assert.Equal(t, "0f8c2b1e-bbbb", run.ID)

	_, err = findRun(ctx, catalog, "0f8c")
	require.ErrorContains(t, err, "ambiguous")

	_, err = findRun(ctx, catalog, "ffff")
	require.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestWriteRun(t *testing.T) {
	t.Parallel()

	start := time.Unix(1700000000, 0)
	var out bytes.Buffer
	writeRun(&out, &storage.RunRecord{
		ID:        "0f8c2b1e-5a8d-4a53-9d0e-7d1c2f1a9b00",
		Path:      "records/run.geojson",
		Provider:  types.ProviderGPS,
		Interval:  4 * time.Second,
		StartedAt: start,
		EndedAt:   start.Add(time.Minute),
		Appended:  15,
		Timeouts:  1,
		Status:    storage.RunStatusFailed,
		Error:     "corrupt document",
	})

	s := out.String()
	assert.Contains(t, s, "ID:        0f8c2b1e-5a8d-4a53-9d0e-7d1c2f1a9b00\n")
	assert.Contains(t, s, "Interval:  4s\n")
	assert.Contains(t, s, "Duration:  1m0s\n")
	assert.Contains(t, s, "Timeouts:  1\n")
	assert.Contains(t, s, "Error:     corrupt document\n")
}

func TestReadDocumentCompressed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "run.geojson")
	store := storage.NewFileDocumentStore()
	require.NoError(t, store.Create(path))
	require.NoError(t, store.Append(path, types.NewFeature(types.Sample{
		Longitude: 1.5, Latitude: 2.5, Timestamp: 1700000000, Provider: types.ProviderGPS,
	})))

	comp, err := storage.NewCompressor(1)
	require.NoError(t, err)
	defer comp.Close()
	compressed, err := comp.CompressFile(path)
	require.NoError(t, err)
	zstPath := path + storage.CompressedExt
	require.NoError(t, os.WriteFile(zstPath, compressed, 0644))

	doc, err := readDocument(zstPath)
	require.NoError(t, err)
	require.Len(t, doc.Features, 1)
	assert.Equal(t, 1.5, doc.Features[0].Longitude())

	doc, err = readDocument(path)
	require.NoError(t, err)
	require.Len(t, doc.Features, 1)

	garbage := filepath.Join(dir, "bad.geojson.zst")
	require.NoError(t, os.WriteFile(garbage, []byte("not zstd"), 0644))
	_, err = readDocument(garbage)
	require.ErrorIs(t, err, storage.ErrCorruptDocument)
}

func TestNewRootCmdRepeated(t *testing.T) {
	first := NewRootCmd()
	var second *cobra.Command
	require.NotPanics(t, func() { second = NewRootCmd() })
	assert.Same(t, first, second)

	names := map[string]int{}
	for _, c := range second.Commands() {
		names[c.Name()]++
	}
	for _, name := range []string{"record", "transfer", "summary", "runs", "version"} {
		assert.Equal(t, 1, names[name], name)
	}
	assert.NotNil(t, second.PersistentFlags().Lookup("records-dir"))
}
