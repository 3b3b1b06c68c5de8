package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
)

const (
	// DocumentExt is the file extension of run documents
	DocumentExt = ".geojson"

	documentTimeLayout = "2006-01-02_15-04-05"
	documentIndent     = "    "
)

var (
	// ErrCorruptDocument means the document on disk is not a complete feature collection
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrDocumentExists is returned by Create when the path is already taken
	ErrDocumentExists = errors.New("document already exists")

	// ErrNoDocuments is returned by LatestDocument when the directory holds no documents
	ErrNoDocuments = errors.New("no documents found")
)

// DocumentStore owns the on-disk feature collection of a run
type DocumentStore interface {
	// Create writes an empty feature collection to path
	Create(path string) error

	// Append adds one feature to the end of the collection stored at path
	Append(path string, feature types.Feature) error

	// Read loads the whole collection stored at path
	Read(path string) (*types.FeatureCollection, error)
}

// FileDocumentStore stores documents as indented GeoJSON files
type FileDocumentStore struct{}

// NewFileDocumentStore creates a file-backed document store
func NewFileDocumentStore() *FileDocumentStore {
	return &FileDocumentStore{}
}

// rawCollection keeps already-stored features as raw JSON so that a rewrite
// re-emits them exactly as they were decoded
type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// DocumentPath returns the document path for a run started at start
func DocumentPath(dir string, start time.Time) string {
	return filepath.Join(dir, start.Format(documentTimeLayout)+DocumentExt)
}

// Create implements DocumentStore.Create
func (s *FileDocumentStore) Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDocumentExists, path)
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	defer file.Close()

	data, err := json.MarshalIndent(types.NewFeatureCollection(), "", documentIndent)
	if err != nil {
		return fmt.Errorf("failed to marshal empty document: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return file.Sync()
}

// Append implements DocumentStore.Append. The file is read whole, rewritten
// from offset zero and truncated to the new length. A crash between the
// rewrite and the truncate can leave a corrupt file.
func (s *FileDocumentStore) Append(path string, feature types.Feature) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	existing, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	var doc rawCollection
	if err := json.Unmarshal(existing, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptDocument, path, err)
	}
	if doc.Type != types.TypeFeatureCollection {
		return fmt.Errorf("%w: %s: unexpected type %q", ErrCorruptDocument, path, doc.Type)
	}

	encoded, err := json.Marshal(feature)
	if err != nil {
		return fmt.Errorf("failed to marshal feature: %w", err)
	}
	doc.Features = append(doc.Features, encoded)

	data, err := json.MarshalIndent(doc, "", documentIndent)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek document: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := file.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("failed to truncate document: %w", err)
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync document: %w", err)
	}

	return nil
}

// Read implements DocumentStore.Read
func (s *FileDocumentStore) Read(path string) (*types.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return DecodeDocument(path, data)
}

// DecodeDocument parses the bytes of a document, name is used in errors
func DecodeDocument(name string, data []byte) (*types.FeatureCollection, error) {
	var doc types.FeatureCollection
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, name, err)
	}
	if doc.Type != types.TypeFeatureCollection {
		return nil, fmt.Errorf("%w: %s: unexpected type %q", ErrCorruptDocument, name, doc.Type)
	}
	if doc.Features == nil {
		doc.Features = []types.Feature{}
	}

	return &doc, nil
}

// LatestDocument returns the most recently modified document in dir
func LatestDocument(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read records directory: %w", err)
	}

	var (
		latest    string
		latestMod time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), DocumentExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}

		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dir, entry.Name())
			latestMod = info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}

	return latest, nil
}
