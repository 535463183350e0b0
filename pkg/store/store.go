package store

import (
	"fmt"

	"xcp-lens/pkg/types"

	bolt "go.etcd.io/bbolt"
)

var entriesBucket = []byte("entries")

// EntryStore persists emitted index entries in a single bbolt bucket.
// Writes for one block go through a single transaction, so a block's entry
// set lands atomically.
type EntryStore struct {
	db *bolt.DB
}

func Open(path string) (*EntryStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open entry store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create entries bucket: %w", err)
	}
	return &EntryStore{db: db}, nil
}

func (s *EntryStore) Close() error {
	return s.db.Close()
}

// WriteEntries persists a block's entries atomically.
func (s *EntryStore) WriteEntries(entries []types.ToEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(entriesBucket)
		for _, entry := range entries {
			key, value := entry.Entry()
			if err := bucket.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the value stored under key, or nil when absent.
func (s *EntryStore) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(entriesBucket).Get(key); v != nil {
			value = append([]byte{}, v...)
		}
		return nil
	})
	return value, err
}

// ForEachKind walks every stored entry of one kind in key order.
func (s *EntryStore) ForEachKind(kind byte, fn func(key, value []byte) error) error {
	prefix := []byte{kind}
	return s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(entriesBucket).Cursor()
		for k, v := cursor.Seek(prefix); k != nil && k[0] == kind; k, v = cursor.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}
