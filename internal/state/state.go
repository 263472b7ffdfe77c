package state

import (
	"fmt"
	"maps"
	"sync"
)

// Aggregate is the running per-key delivery summary. Each known value is
// counted separately so averages skip missing measurements.
type Aggregate struct {
	Count        int64   `json:"count"`
	DelayedCount int64   `json:"delayedCount"`
	DelayKnown   int64   `json:"delayKnown"`
	RatingSum    int64   `json:"ratingSum"`
	RatingCount  int64   `json:"ratingCount"`
	CostSum      float64 `json:"costSum"`
	CostCount    int64   `json:"costCount"`
	LastSeq      int64   `json:"lastSeq"`
}

// Delta is one order's contribution to an Aggregate.
type Delta struct {
	Delayed *bool
	Rating  *int
	Cost    *float64
}

func (a Aggregate) add(d Delta) Aggregate {
	a.Count++
	if d.Delayed != nil {
		a.DelayKnown++
		if *d.Delayed {
			a.DelayedCount++
		}
	}
	if d.Rating != nil {
		a.RatingSum += int64(*d.Rating)
		a.RatingCount++
	}
	if d.Cost != nil {
		a.CostSum += *d.Cost
		a.CostCount++
	}
	return a
}

// DelayRate is the share of known outcomes that were late.
func (a Aggregate) DelayRate() (float64, bool) {
	if a.DelayKnown == 0 {
		return 0, false
	}
	return float64(a.DelayedCount) / float64(a.DelayKnown), true
}

func (a Aggregate) AvgRating() (float64, bool) {
	if a.RatingCount == 0 {
		return 0, false
	}
	return float64(a.RatingSum) / float64(a.RatingCount), true
}

func (a Aggregate) AvgCost() (float64, bool) {
	if a.CostCount == 0 {
		return 0, false
	}
	return a.CostSum / float64(a.CostCount), true
}

// Store abstracts the state backend. Apply is idempotent per key: a seq at
// or below the key's LastSeq is skipped. Gaps are allowed.
type Store interface {
	Apply(key string, d Delta, seq int64) (applied bool, newState Aggregate, err error)
	Get(key string) (Aggregate, bool)
	Range(fn func(key string, st Aggregate) error) error
	LoadAll(all map[string]Aggregate) error
}

// InMemoryStore is a simple thread-safe map store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]Aggregate
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]Aggregate)}
}

// LoadAll replaces the store contents with the provided snapshot.
func (s *InMemoryStore) LoadAll(all map[string]Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = maps.Clone(all)
	if s.data == nil {
		s.data = make(map[string]Aggregate)
	}
	return nil
}

func (s *InMemoryStore) Apply(key string, d Delta, seq int64) (bool, Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data[key]
	if seq <= st.LastSeq {
		return false, st, nil
	}
	st = st.add(d)
	st.LastSeq = seq
	s.data[key] = st
	return true, st, nil
}

func (s *InMemoryStore) Get(key string) (Aggregate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[key]
	return st, ok
}

func (s *InMemoryStore) Range(fn func(key string, st Aggregate) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.data {
		if err := fn(k, v); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

// Open selects a backend by name: memory, pebble or badger. The returned
// close func is never nil.
func Open(backend, dir string) (Store, func() error, error) {
	switch backend {
	case "pebble":
		ps, err := NewPebbleStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("init pebble: %w", err)
		}
		return ps, ps.Close, nil
	case "badger":
		bs, err := NewBadgerStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("init badger: %w", err)
		}
		return bs, bs.Close, nil
	case "memory", "":
		return NewInMemoryStore(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown state backend %q", backend)
}
