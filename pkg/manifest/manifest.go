// Package manifest records which documents have been indexed so repeated
// ingests can skip unchanged files.
package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// timeout bounds how long Open waits for another process holding the file.
const timeout = time.Second

// Manifest is a bbolt file holding one bucket per collection, mapping
// document IDs to the hash they were last indexed with.
type Manifest struct {
	path string
	db   *bolt.DB
	mu   sync.RWMutex
}

// Open creates the manifest file and its parent directory if needed.
func Open(path string) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for manifest: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	return &Manifest{path: path, db: db}, nil
}

// Indexed reports whether documentID was last indexed into collection with
// exactly this hash.
func (m *Manifest) Indexed(collection, documentID, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var indexed bool
	err := m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		indexed = string(b.Get([]byte(documentID))) == hash
		return nil
	})
	return indexed, err
}

func (m *Manifest) MarkIndexed(collection, documentID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		return b.Put([]byte(documentID), []byte(hash))
	})
}

// Count returns the number of documents recorded for collection.
func (m *Manifest) Count(collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	err := m.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(collection)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Reset forgets every document recorded for collection.
func (m *Manifest) Reset(collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(collection))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Hash fingerprints a document's text together with the settings that
// shaped its chunks, so changing either forces a re-index.
func Hash(text string, settings ...any) string {
	h := sha256.New()
	fmt.Fprint(h, settings...)
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
