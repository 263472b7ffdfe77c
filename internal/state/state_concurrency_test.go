package state_test

import (
	"sync"
	"testing"

	"pdo/internal/acquire"
	"pdo/internal/analytics"
	"pdo/internal/pipeline"
	"pdo/internal/risk"
	"pdo/internal/state"
)

func dump(t *testing.T, st state.Store) map[string]state.Aggregate {
	t.Helper()
	out := make(map[string]state.Aggregate)
	if err := st.Range(func(k string, a state.Aggregate) error {
		out[k] = a
		return nil
	}); err != nil {
		t.Fatalf("range: %v", err)
	}
	return out
}

// Several ingesters replaying the same orders while readers summarize must
// end with every order counted once per key, as a single ingest would.
func TestInMemoryStore_ConcurrentReplaysConverge(t *testing.T) {
	recs := risk.ScoreAll(pipeline.Join(acquire.DefaultGenerator().Generate()), risk.NewScorer(risk.DefaultWeights()), nil)

	cold := state.NewInMemoryStore()
	want, err := analytics.Ingest(cold, recs)
	if err != nil {
		t.Fatalf("cold ingest: %v", err)
	}

	st := state.NewInMemoryStore()
	const replays = 4
	results := make([]analytics.Result, replays)
	done := make(chan struct{})
	var readers, writers sync.WaitGroup

	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if k := analytics.Summarize(st); k.TotalOrders > int64(len(recs)) {
				t.Errorf("over-counted mid-replay: %d > %d", k.TotalOrders, len(recs))
				return
			}
			if _, err := analytics.Breakdown(st, analytics.DimCarrier); err != nil {
				t.Errorf("breakdown: %v", err)
				return
			}
		}
	}()

	for i := range replays {
		writers.Add(1)
		go func() {
			defer writers.Done()
			res, err := analytics.Ingest(st, recs)
			if err != nil {
				t.Errorf("ingest %d: %v", i, err)
				return
			}
			results[i] = res
		}()
	}
	writers.Wait()
	close(done)
	readers.Wait()

	applied, total := 0, 0
	for _, r := range results {
		applied += r.Applied
		total += r.Applied + r.Skipped
	}
	if applied != want.Applied || total != replays*want.Applied {
		t.Fatalf("applied=%d total=%d, want applied=%d total=%d", applied, total, want.Applied, replays*want.Applied)
	}

	got, exp := dump(t, st), dump(t, cold)
	if len(got) != len(exp) {
		t.Fatalf("keys: got %d want %d", len(got), len(exp))
	}
	for k, a := range exp {
		if got[k] != a {
			t.Fatalf("key %s: got %+v want %+v", k, got[k], a)
		}
	}
	if k := analytics.Summarize(st); k.TotalOrders != int64(len(recs)) {
		t.Fatalf("total orders %d, want %d", k.TotalOrders, len(recs))
	}
}
