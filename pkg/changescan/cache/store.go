package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger with the few operations the cache needs.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store in dir.
func OpenStore(dir string) (*Store, error) {
	return openStore(badger.DefaultOptions(dir))
}

// OpenMemoryStore opens a store that lives only in memory.
func OpenMemoryStore() (*Store, error) {
	return openStore(badger.DefaultOptions("").WithInMemory(true))
}

func openStore(opts badger.Options) (*Store, error) {
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value stored at key into v.
func (s *Store) Get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, v)
		})
	})
}

// Put encodes v and stores it at key.
func (s *Store) Put(key []byte, v any) error {
	value, err := encode(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// PutBatch stores many values through a single write batch.
func (s *Store) PutBatch(values map[string]any) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for key, v := range values {
		value, err := encode(v)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(key), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Delete removes keys. Missing keys are ignored.
func (s *Store) Delete(keys ...[]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// DeletePrefix removes every key starting with prefix and returns how many
// keys were removed.
func (s *Store) DeletePrefix(prefix []byte) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return len(keys), s.Delete(keys...)
}

// Scan calls fn for each key under prefix in key order, or in reverse key
// order when reverse is set, until fn returns false.
func (s *Store) Scan(prefix []byte, reverse bool, fn func(key, value []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if reverse {
			// Seek lands on the last key <= seek when iterating backwards.
			seek = append(append([]byte{}, prefix...), 0xff)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			more, err := fn(item.KeyCopy(nil), val)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}
