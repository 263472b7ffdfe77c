package restore

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"pdo/internal/analytics"
	"pdo/internal/manifest"
	"pdo/internal/model"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/snapshot"
	"pdo/internal/state"
)

func scoredRecords(ds model.Dataset) []risk.ScoredRecord {
	recs := pipeline.Join(ds)
	return risk.ScoreAll(recs, risk.NewScorer(risk.DefaultWeights()), nil)
}

func orders(n int) model.Dataset {
	var ds model.Dataset
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		ds.Orders = append(ds.Orders, model.Locate(model.Order{
			OrderID: i, OrderDate: day.AddDate(0, 0, i), Priority: model.PriorityStandard,
			Origin: model.CityMumbai, Destination: model.CityDelhi,
		}))
		ds.Deliveries = append(ds.Deliveries, model.DeliveryOutcome{
			OrderID: i, Carrier: "Carrier C",
			PromisedHours: model.Ptr(24), ActualHours: model.Ptr(24 + i%2),
			Cost: model.Ptr(10.0),
		})
	}
	return ds
}

// snapshot -> manifest -> RestoreAndReplay -> final state
func TestIntegration_RestoreAndReplay_EndToEnd(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	// 1) ingest the first 4 orders and snapshot them
	prep := state.NewInMemoryStore()
	if _, err := analytics.Ingest(prep, scoredRecords(orders(4))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	sid := snapshot.NewID()
	keys, err := snapshot.NewFilesystemSnapshotter(base).WriteSnapshot(sid, prep)
	if err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	// 2) publish the manifest
	mf := manifest.NewFilesystemManifest(base)
	if err := mf.PublishLatest(ctx, manifest.New(sid, 4, keys)); err != nil {
		t.Fatalf("publish manifest: %v", err)
	}

	// 3) restart on a fresh Pebble store with a grown dataset
	st, err := state.NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	r := NewRestorer(st, mf, base, zap.NewNop())
	res, err := r.RestoreAndReplay(ctx, scoredRecords(orders(6)))
	if err != nil {
		t.Fatalf("RestoreAndReplay: %v", err)
	}
	if res.Manifest.SnapshotID != sid || res.Keys != keys {
		t.Fatalf("unexpected restore: %+v", res)
	}

	// 4) only orders 5 and 6 were applied
	k := analytics.Summarize(st)
	if k.TotalOrders != 6 || k.TotalCost != 60 {
		t.Fatalf("kpis unexpected: %+v", k)
	}
	if k.DelayRate == nil || *k.DelayRate != 0.5 {
		t.Fatalf("delay rate unexpected: %v", k.DelayRate)
	}
	if res.Skipped == 0 || res.Applied == 0 {
		t.Fatalf("want both applied and skipped keys, got %+v", res.Result)
	}

	// a fresh ingest of the same 6 orders into an empty store matches
	cold := state.NewInMemoryStore()
	if _, err := analytics.Ingest(cold, scoredRecords(orders(6))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := analytics.Summarize(cold); got.TotalOrders != k.TotalOrders || *got.DelayRate != *k.DelayRate {
		t.Fatalf("warm %+v != cold %+v", k, got)
	}
}
