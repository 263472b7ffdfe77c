package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		// aggregates are small; keep the memtable modest
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
		WALBytesPerSync:       1 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodeAggregate(st Aggregate) ([]byte, error) { return json.Marshal(st) }
func decodeAggregate(val []byte) (Aggregate, error) {
	var st Aggregate
	if err := json.Unmarshal(val, &st); err != nil {
		return Aggregate{}, err
	}
	return st, nil
}

// Apply is a read-modify-write without a lock; callers ingest from a single
// goroutine.
func (p *PebbleStore) Apply(key string, d Delta, seq int64) (bool, Aggregate, error) {
	k := []byte(key)
	var cur Aggregate
	v, closer, err := p.db.Get(k)
	if err == nil {
		cur, err = decodeAggregate(v)
		_ = closer.Close()
		if err != nil {
			return false, Aggregate{}, err
		}
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return false, Aggregate{}, err
	}
	if seq <= cur.LastSeq {
		return false, cur, nil
	}
	cur = cur.add(d)
	cur.LastSeq = seq
	bytes, err := encodeAggregate(cur)
	if err != nil {
		return false, Aggregate{}, err
	}
	if err := p.db.Set(k, bytes, pebble.NoSync); err != nil {
		return false, Aggregate{}, err
	}
	return true, cur, nil
}

func (p *PebbleStore) Get(key string) (Aggregate, bool) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		return Aggregate{}, false
	}
	defer closer.Close()
	st, e := decodeAggregate(v)
	if e != nil {
		return Aggregate{}, false
	}
	return st, true
}

func (p *PebbleStore) Range(fn func(key string, st Aggregate) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		st, err := decodeAggregate(it.Value())
		if err != nil {
			return err
		}
		if err := fn(string(k), st); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll replaces every key with the snapshot contents in one batch.
func (p *PebbleStore) LoadAll(all map[string]Aggregate) error {
	wb := p.db.NewBatch()
	defer wb.Close()

	it, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	for it.First(); it.Valid(); it.Next() {
		if err := wb.Delete(append([]byte(nil), it.Key()...), nil); err != nil {
			it.Close()
			return err
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	for k, st := range all {
		bytes, err := encodeAggregate(st)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(k), bytes, nil); err != nil {
			return err
		}
	}
	return wb.Commit(pebble.Sync)
}
