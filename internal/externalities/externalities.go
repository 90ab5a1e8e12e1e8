package externalities

import (
	"sort"

	"github.com/eigerco/blackberry/internal/crypto"
)

// Externalities is the mutable state overlay handed to the execution engine
// during a call. The backend holds the resolved baseline state; writes go to
// a pending overlay that is committed after a successful call and discarded
// after a trapped one, so a failed call can never leak half-applied writes to
// the caller. An instance is exclusively owned by one invocation at a time.
type Externalities struct {
	backend map[string][]byte
	child   map[string]map[string][]byte
	pending map[string]pendingWrite
	at      crypto.Hash

	recorder *Recorder
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// New creates externalities over the given backend pairs
func New(pairs map[string][]byte, at crypto.Hash) *Externalities {
	if pairs == nil {
		pairs = make(map[string][]byte)
	}
	return &Externalities{
		backend: pairs,
		child:   make(map[string]map[string][]byte),
		pending: make(map[string]pendingWrite),
		at:      at,
	}
}

// At returns the block identifier the backend state was resolved at
func (e *Externalities) At() crypto.Hash {
	return e.at
}

// Get returns the current value of a key, pending writes first
func (e *Externalities) Get(key []byte) ([]byte, bool) {
	if w, ok := e.pending[string(key)]; ok {
		if w.deleted {
			return nil, false
		}
		return w.value, true
	}

	value, ok := e.backend[string(key)]
	if e.recorder != nil && ok {
		e.recorder.record(key, value)
	}
	return value, ok
}

// Set stages a write in the pending overlay
func (e *Externalities) Set(key, value []byte) {
	e.pending[string(key)] = pendingWrite{value: value}
}

// Delete stages a deletion in the pending overlay
func (e *Externalities) Delete(key []byte) {
	e.pending[string(key)] = pendingWrite{deleted: true}
}

// ChildGet returns the value of a key in the given child trie
func (e *Externalities) ChildGet(childKey, key []byte) ([]byte, bool) {
	pairs, ok := e.child[string(childKey)]
	if !ok {
		return nil, false
	}
	value, ok := pairs[string(key)]
	if e.recorder != nil && ok {
		e.recorder.recordChild(childKey, key, value)
	}
	return value, ok
}

// Commit applies all pending writes to the backend
func (e *Externalities) Commit() {
	for key, w := range e.pending {
		if w.deleted {
			delete(e.backend, key)
			continue
		}
		e.backend[key] = w.value
	}
	e.pending = make(map[string]pendingWrite)
}

// Revert discards all pending writes
func (e *Externalities) Revert() {
	e.pending = make(map[string]pendingWrite)
}

// PendingWrites reports how many writes are staged but not committed
func (e *Externalities) PendingWrites() int {
	return len(e.pending)
}

// BackendPairs returns the committed backend state sorted by key
func (e *Externalities) BackendPairs() []ProofEntry {
	keys := make([]string, 0, len(e.backend))
	for k := range e.backend {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]ProofEntry, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, ProofEntry{Key: []byte(k), Value: e.backend[k]})
	}
	return pairs
}

// StartRecording attaches a recorder so backend reads accumulate into a proof
func (e *Externalities) StartRecording(rec *Recorder) {
	e.recorder = rec
}

// StopRecording detaches the recorder
func (e *Externalities) StopRecording() {
	e.recorder = nil
}
