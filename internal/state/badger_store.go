package state

import (
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func (b *BadgerStore) Apply(key string, d Delta, seq int64) (bool, Aggregate, error) {
	var applied bool
	var out Aggregate
	err := b.db.Update(func(txn *badger.Txn) error {
		var cur Aggregate
		item, err := txn.Get([]byte(key))
		if err == nil {
			v, e := item.ValueCopy(nil)
			if e != nil {
				return e
			}
			if cur, e = decodeAggregate(v); e != nil {
				return e
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		out = cur
		if seq <= cur.LastSeq {
			return nil
		}
		cur = cur.add(d)
		cur.LastSeq = seq
		bytes, e := encodeAggregate(cur)
		if e != nil {
			return e
		}
		if e = txn.Set([]byte(key), bytes); e != nil {
			return e
		}
		applied = true
		out = cur
		return nil
	})
	return applied, out, err
}

func (b *BadgerStore) Get(key string) (Aggregate, bool) {
	var st Aggregate
	err := b.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get([]byte(key))
		if e != nil {
			return e
		}
		v, e := item.ValueCopy(nil)
		if e != nil {
			return e
		}
		st, e = decodeAggregate(v)
		return e
	})
	if err != nil {
		return Aggregate{}, false
	}
	return st, true
}

func (b *BadgerStore) Range(fn func(key string, st Aggregate) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			st, err := decodeAggregate(v)
			if err != nil {
				return err
			}
			if err := fn(string(k), st); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll replaces every key with the snapshot contents.
func (b *BadgerStore) LoadAll(all map[string]Aggregate) error {
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("badger drop: %w", err)
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for k, st := range all {
		bytes, err := encodeAggregate(st)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(k), bytes); err != nil {
			return err
		}
	}
	return wb.Flush()
}
