package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"pdo/internal/state"
)

// FileName is the dump written inside each snapshot directory.
const FileName = "state.json"

type Snapshotter interface {
	WriteSnapshot(snapshotID string, st state.Store) (keys int, err error)
}

// NewID returns a fresh snapshot id.
func NewID() string { return uuid.NewString() }

type FilesystemSnapshotter struct {
	baseDir string
}

func NewFilesystemSnapshotter(baseDir string) *FilesystemSnapshotter {
	return &FilesystemSnapshotter{baseDir: baseDir}
}

// Path is where snapshotID's dump lives under baseDir.
func Path(baseDir, snapshotID string) string {
	return filepath.Join(baseDir, snapshotID, FileName)
}

// WriteSnapshot dumps every key of st. The file is written under a temporary
// name and renamed, so readers never see a partial dump.
func (f *FilesystemSnapshotter) WriteSnapshot(snapshotID string, st state.Store) (int, error) {
	dir := filepath.Join(f.baseDir, snapshotID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	dump := make(map[string]state.Aggregate)
	if err := st.Range(func(key string, a state.Aggregate) error {
		dump[key] = a
		return nil
	}); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, FileName+".*")
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dump); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), Path(f.baseDir, snapshotID)); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	return len(dump), nil
}

// Read loads a dump written by WriteSnapshot.
func Read(baseDir, snapshotID string) (map[string]state.Aggregate, error) {
	data, err := os.ReadFile(Path(baseDir, snapshotID))
	if err != nil {
		return nil, err
	}
	var dump map[string]state.Aggregate
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return dump, nil
}
