// Package persist is the bbolt-backed adapter that rounds-trips a neighbour
// store's contents across restarts, adapted from the teacher repo's
// internal/storage/grantsbolt bucket-per-concern layout.
package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"kipa/internal/neighbourstore"
)

const (
	bucketNeighbours = "neighbours"
	keySnapshot      = "snapshot"

	defaultOpenTimeout = 2 * time.Second
)

// DB is an opened neighbour-persistence database.
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) a BoltDB database at path, creating the
// neighbours bucket if absent.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("persist: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return nil, err
	}

	d := &DB{db: db}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketNeighbours))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying database file.
func (d *DB) Close() error { return d.db.Close() }

// Load reads the persisted snapshot. A missing or corrupt record is not an
// error: it yields an empty snapshot so the neighbour set starts fresh.
func (d *DB) Load() ([]neighbourstore.Snapshot, error) {
	var snapshot []neighbourstore.Snapshot
	err := d.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketNeighbours)).Get([]byte(keySnapshot))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			snapshot = nil
			return nil
		}
		return nil
	})
	return snapshot, err
}

// Save overwrites the persisted snapshot.
func (d *DB) Save(snapshot []neighbourstore.Snapshot) error {
	val, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketNeighbours)).Put([]byte(keySnapshot), val)
	})
}
