package snapshotstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/beacon/pkg/types"
)

var (
	bucketClusterSnapshots = []byte("cluster_snapshots")
	bucketOrdinalSnapshots = []byte("ordinal_snapshots")
)

// BoltStore implements Source on top of go.etcd.io/bbolt, grounded on the
// teacher's pkg/storage.BoltStore bucket-per-entity layout.
type BoltStore struct {
	db *bolt.DB
}

// Open creates or opens the bbolt-backed snapshot cache at dataDir/beacon-snapshots.db.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "beacon-snapshots.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketClusterSnapshots, bucketOrdinalSnapshots} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func clusterKey(layer types.Layer) []byte {
	return []byte(string(layer))
}

func ordinalKey(node string, layer types.Layer) []byte {
	return []byte(node + "/" + string(layer))
}

// SaveClusterSnapshot persists the most recent ClusterSnapshot for its layer.
func (s *BoltStore) SaveClusterSnapshot(snap types.ClusterSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketClusterSnapshots).Put(clusterKey(snap.Layer), data)
	})
}

// LoadClusterSnapshot returns the last persisted snapshot for layer, if any.
func (s *BoltStore) LoadClusterSnapshot(layer types.Layer) (types.ClusterSnapshot, bool, error) {
	var snap types.ClusterSnapshot
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketClusterSnapshots).Get(clusterKey(layer))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &snap)
	})
	return snap, found, err
}

// SaveOrdinalSnapshot persists the most recent OrdinalSnapshot for (node, layer).
func (s *BoltStore) SaveOrdinalSnapshot(snap types.OrdinalSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketOrdinalSnapshots).Put(ordinalKey(snap.Node, snap.Layer), data)
	})
}

// LoadOrdinalSnapshot returns the last persisted ordinal for (node, layer), if any.
func (s *BoltStore) LoadOrdinalSnapshot(node string, layer types.Layer) (types.OrdinalSnapshot, bool, error) {
	var snap types.OrdinalSnapshot
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOrdinalSnapshots).Get(ordinalKey(node, layer))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &snap)
	})
	return snap, found, err
}

var _ Source = (*BoltStore)(nil)
