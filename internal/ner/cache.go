// Store is the persistence interface behind CachingRecognizer. Keys are
// SHA-256 digests of the recognized text, values are JSON-encoded
// recognitions, so neither side of the store ever holds the raw text.
//
// Two backings are provided:
//   - memoryStore: in-memory only, used in tests and when no path is configured.
//   - boltStore: embedded key-value store (bbolt), used in production so
//     results survive restarts.
//
// OpenStore layers the S3-FIFO eviction policy (s3fifo.go) over either one.

package ner

import (
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"pii-masking-service/internal/logger"
)

// Store is a string key-value store. All implementations must be safe for
// concurrent use.
type Store interface {
	Get(key string) (value string, ok bool)
	Set(key, value string)
	Delete(key string)
	// Close releases file handles. The store must not be used afterwards.
	Close() error
}

// OpenStore returns a bounded store for recognizer results. An empty path
// keeps everything in memory; otherwise entries are persisted to a bbolt
// file at path.
func OpenStore(path string, capacity int, log *logger.Logger) (Store, error) {
	var backing Store = newMemoryStore()
	if path != "" {
		b, err := newBoltStore(path, log)
		if err != nil {
			return nil, err
		}
		backing = b
	}
	return newS3FIFO(backing, capacity, log), nil
}

// --- memoryStore ---------------------------------------------------------

type memoryStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{m: make(map[string]string)}
}

func (s *memoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *memoryStore) Set(key, value string) {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

func (s *memoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

func (s *memoryStore) Close() error { return nil }

// --- boltStore -----------------------------------------------------------

const boltBucket = "recognitions"

type boltStore struct {
	db  *bolt.DB
	log *logger.Logger
}

// newBoltStore opens (or creates) the bbolt file at path and ensures the
// bucket exists.
func newBoltStore(path string, log *logger.Logger) (*boltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open recognizer cache %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create bucket %q: %w", boltBucket, err)
	}
	log.Infof("cache_open", "recognizer cache opened at %s", path)
	return &boltStore{db: db, log: log}, nil
}

func (s *boltStore) Get(key string) (string, bool) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(boltBucket)); b != nil {
			if v := b.Get([]byte(key)); v != nil {
				// v is only valid inside the transaction
				value = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warnf("cache_get", "bbolt read failed: %v", err)
		return "", false
	}
	return string(value), value != nil
}

func (s *boltStore) Set(key, value string) {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", boltBucket)
		}
		return b.Put([]byte(key), []byte(value))
	}); err != nil {
		s.log.Warnf("cache_set", "bbolt write failed: %v", err)
	}
}

func (s *boltStore) Delete(key string) {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(boltBucket)); b != nil {
			return b.Delete([]byte(key))
		}
		return nil
	}); err != nil {
		s.log.Warnf("cache_delete", "bbolt delete failed: %v", err)
	}
}

func (s *boltStore) Close() error { return s.db.Close() }
