// Package badger implements persist.Adaptor against a BadgerDB key/value
// store — the one place github.com/dgraph-io/badger/v4 is imported.
// The core store package never depends on this package; callers that
// want durability wire it in explicitly.
package badger

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/RelationalFabric/relational-fabric-sub000/persist"
)

// snapshotKey is the single key the whole-store snapshot is stored
// under. A future revision could shard by type, but §6's persisted
// layout is small enough for one JSON blob per save.
var snapshotKey = []byte("relfab/snapshot")

// Adaptor is a BadgerDB-backed persist.Adaptor.
type Adaptor struct {
	db *badger.DB
}

// Open opens (creating if absent) a BadgerDB database at path and
// returns an Adaptor over it. Grounded on the teacher's
// NewBadgerStore: BadgerDB's default options with its own logger
// disabled; no other options are changed.
func Open(path string) (*Adaptor, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Adaptor{db: db}, nil
}

// Close closes the underlying database.
func (a *Adaptor) Close() error {
	return a.db.Close()
}

// Save encodes snap as JSON and writes it under snapshotKey,
// overwriting any prior snapshot.
func (a *Adaptor) Save(snap persist.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, data)
	})
}

// Load reads and decodes the most recently saved snapshot. A database
// with nothing saved yet returns a zero-value Snapshot and no error.
func (a *Adaptor) Load() (persist.Snapshot, error) {
	var snap persist.Snapshot
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return persist.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}
