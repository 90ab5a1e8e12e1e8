package state

import (
	"fmt"

	"github.com/ChainSafe/gossamer/pkg/scale"

	"github.com/eigerco/blackberry/pkg/db"
)

const (
	prefixMeta byte = iota + 1
	prefixPair
)

var (
	metaKeyTarget  = []byte{prefixMeta, 't'}
	metaKeyVersion = []byte{prefixMeta, 'v'}
	metaKeyChild   = []byte{prefixMeta, 'c'}
)

// snapshotTarget is the persisted form of the snapshot's block pin
type snapshotTarget struct {
	At     [32]byte
	Number uint
}

// WriteSnapshot persists a resolved state so it can be reloaded without a
// network. Pairs are written in one batch so a snapshot is never half-written.
func WriteSnapshot(store db.KVStore, raw *RawState) error {
	batch := store.NewBatch()
	defer batch.Close()

	target, err := scale.Marshal(snapshotTarget{At: raw.At, Number: raw.Number})
	if err != nil {
		return fmt.Errorf("marshal snapshot target: %w", err)
	}
	if err := batch.Put(metaKeyTarget, target); err != nil {
		return fmt.Errorf("store snapshot target: %w", err)
	}

	version, err := scale.Marshal(raw.Version)
	if err != nil {
		return fmt.Errorf("marshal runtime version: %w", err)
	}
	if err := batch.Put(metaKeyVersion, version); err != nil {
		return fmt.Errorf("store runtime version: %w", err)
	}

	child, err := scale.Marshal(raw.Child)
	if err != nil {
		return fmt.Errorf("marshal child pairs: %w", err)
	}
	if err := batch.Put(metaKeyChild, child); err != nil {
		return fmt.Errorf("store child pairs: %w", err)
	}

	for _, kv := range raw.Pairs {
		if err := batch.Put(append([]byte{prefixPair}, kv.Key...), kv.Value); err != nil {
			return fmt.Errorf("store pair: %w", err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot
func ReadSnapshot(store db.KVStore) (*RawState, error) {
	raw := &RawState{}

	target, err := store.Get(metaKeyTarget)
	if err != nil {
		return nil, fmt.Errorf("read snapshot target: %w", err)
	}
	var st snapshotTarget
	if err := scale.Unmarshal(target, &st); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot target: %w", err)
	}
	raw.At = st.At
	raw.Number = st.Number

	version, err := store.Get(metaKeyVersion)
	if err != nil {
		return nil, fmt.Errorf("read runtime version: %w", err)
	}
	if err := scale.Unmarshal(version, &raw.Version); err != nil {
		return nil, fmt.Errorf("unmarshal runtime version: %w", err)
	}

	child, err := store.Get(metaKeyChild)
	if err != nil {
		return nil, fmt.Errorf("read child pairs: %w", err)
	}
	if err := scale.Unmarshal(child, &raw.Child); err != nil {
		return nil, fmt.Errorf("unmarshal child pairs: %w", err)
	}

	iter, err := store.NewIterator([]byte{prefixPair}, []byte{prefixPair + 1})
	if err != nil {
		return nil, fmt.Errorf("iterate pairs: %w", err)
	}
	defer iter.Close()

	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return nil, fmt.Errorf("read pair: %w", err)
		}
		raw.Pairs = append(raw.Pairs, KeyValue{
			Key:   iter.Key()[1:],
			Value: value,
		})
	}

	return raw, nil
}
