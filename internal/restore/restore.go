package restore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"pdo/internal/analytics"
	"pdo/internal/manifest"
	"pdo/internal/risk"
	"pdo/internal/snapshot"
	"pdo/internal/state"
)

// Restorer warm-starts an analytics store from the latest snapshot.
type Restorer struct {
	stateStore      state.Store
	manifestReader  manifest.Reader
	snapshotBaseDir string
	log             *zap.Logger
}

func NewRestorer(st state.Store, mr manifest.Reader, snapshotBaseDir string, log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{
		stateStore:      st,
		manifestReader:  mr,
		snapshotBaseDir: snapshotBaseDir,
		log:             log,
	}
}

type RestoreResult struct {
	Manifest manifest.Manifest
	Keys     int
	analytics.Result
}

// RestoreFromSnapshot replaces the store contents with the snapshot. A missing
// snapshot is logged and skipped, leaving the store untouched.
func (r *Restorer) RestoreFromSnapshot(snapshotID string) (int, error) {
	if snapshotID == "" {
		return 0, nil
	}
	dump, err := snapshot.Read(r.snapshotBaseDir, snapshotID)
	if errors.Is(err, os.ErrNotExist) {
		r.log.Warn("restore: snapshot not found, skipping",
			zap.String("path", snapshot.Path(r.snapshotBaseDir, snapshotID)))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	if err := r.stateStore.LoadAll(dump); err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	r.log.Info("restore: loaded snapshot", zap.Int("keys", len(dump)), zap.String("snapshot", snapshotID))
	return len(dump), nil
}

// RestoreLatest restores the snapshot the manifest points at. With no
// manifest published it is a cold start and returns a zero Manifest.
func (r *Restorer) RestoreLatest(ctx context.Context) (manifest.Manifest, int, error) {
	m, err := r.manifestReader.ReadLatest(ctx)
	if errors.Is(err, manifest.ErrNoManifest) {
		r.log.Info("restore: no manifest, cold start")
		return manifest.Manifest{}, 0, nil
	}
	if err != nil {
		return manifest.Manifest{}, 0, fmt.Errorf("read manifest: %w", err)
	}
	keys, err := r.RestoreFromSnapshot(m.SnapshotID)
	if err != nil {
		return m, 0, fmt.Errorf("restore snapshot: %w", err)
	}
	return m, keys, nil
}

// RestoreAndReplay restores the latest snapshot and then ingests recs on top.
// Orders already covered by the snapshot are skipped by sequence.
func (r *Restorer) RestoreAndReplay(ctx context.Context, recs []risk.ScoredRecord) (RestoreResult, error) {
	m, keys, err := r.RestoreLatest(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	res, err := analytics.Ingest(r.stateStore, recs)
	if err != nil {
		return RestoreResult{Manifest: m, Keys: keys, Result: res}, fmt.Errorf("replay: %w", err)
	}
	r.log.Info("restore: replayed records",
		zap.Int("applied", res.Applied), zap.Int("skipped", res.Skipped))
	return RestoreResult{Manifest: m, Keys: keys, Result: res}, nil
}
