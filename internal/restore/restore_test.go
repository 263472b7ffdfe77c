package restore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pdo/internal/manifest"
	"pdo/internal/state"
)

func TestRestoreFromSnapshot_LoadsState(t *testing.T) {
	base := t.TempDir()
	sid := "sid-001"
	dir := filepath.Join(base, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir snapshot: %v", err)
	}
	dump := map[string]state.Aggregate{
		"carrier#Carrier A": {Count: 3, DelayedCount: 1, DelayKnown: 3, LastSeq: 3},
		"priority#Express":  {Count: 2, RatingSum: 7, RatingCount: 2, LastSeq: 1},
	}
	b, _ := json.Marshal(dump)
	if err := os.WriteFile(filepath.Join(dir, "state.json"), b, 0o644); err != nil {
		t.Fatalf("write state.json: %v", err)
	}

	st := state.NewInMemoryStore()
	r := NewRestorer(st, manifest.NewFilesystemManifest(base), base, nil)
	keys, err := r.RestoreFromSnapshot(sid)
	if err != nil {
		t.Fatalf("RestoreFromSnapshot error: %v", err)
	}
	if keys != 2 {
		t.Fatalf("keys = %d", keys)
	}
	a, ok := st.Get("carrier#Carrier A")
	if !ok || a.Count != 3 || a.DelayedCount != 1 || a.LastSeq != 3 {
		t.Fatalf("bad state for carrier#Carrier A: %+v", a)
	}
	p, ok := st.Get("priority#Express")
	if !ok || p.RatingSum != 7 || p.LastSeq != 1 {
		t.Fatalf("bad state for priority#Express: %+v", p)
	}
}

func TestRestoreFromSnapshot_MissingIsSkipped(t *testing.T) {
	st := state.NewInMemoryStore()
	_, _, _ = st.Apply("k", state.Delta{}, 1)
	r := NewRestorer(st, manifest.NewFilesystemManifest(t.TempDir()), t.TempDir(), nil)
	keys, err := r.RestoreFromSnapshot("absent")
	if err != nil || keys != 0 {
		t.Fatalf("keys=%d err=%v", keys, err)
	}
	if _, ok := st.Get("k"); !ok {
		t.Fatalf("store should be untouched")
	}
}

func TestRestoreFromSnapshot_Malformed(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "sid"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "sid", "state.json"), []byte("{bad json}"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRestorer(state.NewInMemoryStore(), manifest.NewFilesystemManifest(base), base, nil)
	if _, err := r.RestoreFromSnapshot("sid"); err == nil {
		t.Fatalf("expected error for malformed snapshot")
	}
}

func TestRestoreLatest_ColdStart(t *testing.T) {
	base := t.TempDir()
	r := NewRestorer(state.NewInMemoryStore(), manifest.NewFilesystemManifest(base), base, nil)
	m, keys, err := r.RestoreLatest(context.Background())
	if err != nil {
		t.Fatalf("cold start should not fail: %v", err)
	}
	if m.SnapshotID != "" || keys != 0 {
		t.Fatalf("unexpected manifest %+v keys=%d", m, keys)
	}
}

type failingReader struct{}

func (failingReader) ReadLatest(context.Context) (manifest.Manifest, error) {
	return manifest.Manifest{}, errors.New("broker down")
}

func TestRestoreLatest_ReaderError(t *testing.T) {
	r := NewRestorer(state.NewInMemoryStore(), failingReader{}, t.TempDir(), nil)
	if _, _, err := r.RestoreLatest(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
