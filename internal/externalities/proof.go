package externalities

import (
	"sort"

	"github.com/eigerco/blackberry/internal/crypto"
)

// ProofEntry is one backend pair touched during execution
type ProofEntry struct {
	Key   []byte
	Value []byte
}

// ChildProofEntry is one child-trie pair touched during execution
type ChildProofEntry struct {
	ChildKey []byte
	Key      []byte
	Value    []byte
}

// Proof is the minimal set of backend entries read during an execution,
// sufficient for an independent verifier to re-derive the same result without
// the full state. Keys that were read but absent carry no entry: execution is
// deterministic, so a key missing from the proof was missing from the state.
type Proof struct {
	Entries      []ProofEntry
	ChildEntries []ChildProofEntry
}

// Empty reports whether the proof records no accesses
func (p *Proof) Empty() bool {
	return p == nil || (len(p.Entries) == 0 && len(p.ChildEntries) == 0)
}

// Externalities builds fresh externalities backed only by the proof entries,
// pinned to the same block identifier. Replaying the original call against
// them must reproduce the original output.
func (p *Proof) Externalities(at crypto.Hash) *Externalities {
	pairs := make(map[string][]byte, len(p.Entries))
	for _, entry := range p.Entries {
		pairs[string(entry.Key)] = entry.Value
	}

	ext := New(pairs, at)
	for _, entry := range p.ChildEntries {
		pairs, ok := ext.child[string(entry.ChildKey)]
		if !ok {
			pairs = make(map[string][]byte)
			ext.child[string(entry.ChildKey)] = pairs
		}
		pairs[string(entry.Key)] = entry.Value
	}
	return ext
}

// Recorder accumulates backend accesses while attached to externalities
type Recorder struct {
	touched      map[string][]byte
	childTouched map[string]map[string][]byte
}

func NewRecorder() *Recorder {
	return &Recorder{
		touched:      make(map[string][]byte),
		childTouched: make(map[string]map[string][]byte),
	}
}

func (r *Recorder) record(key, value []byte) {
	r.touched[string(key)] = value
}

func (r *Recorder) recordChild(childKey, key, value []byte) {
	pairs, ok := r.childTouched[string(childKey)]
	if !ok {
		pairs = make(map[string][]byte)
		r.childTouched[string(childKey)] = pairs
	}
	pairs[string(key)] = value
}

// Proof extracts the accumulated proof, sorted by key (child entries by child
// key, then key). The recorder keeps everything recorded so far, so a proof
// can be extracted after a failed call and still cover all accesses up to the
// failure point.
func (r *Recorder) Proof() *Proof {
	keys := make([]string, 0, len(r.touched))
	for k := range r.touched {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	proof := &Proof{Entries: make([]ProofEntry, 0, len(keys))}
	for _, k := range keys {
		proof.Entries = append(proof.Entries, ProofEntry{Key: []byte(k), Value: r.touched[k]})
	}

	childKeys := make([]string, 0, len(r.childTouched))
	for ck := range r.childTouched {
		childKeys = append(childKeys, ck)
	}
	sort.Strings(childKeys)

	for _, ck := range childKeys {
		pairs := r.childTouched[ck]
		keys = keys[:0]
		for k := range pairs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			proof.ChildEntries = append(proof.ChildEntries, ChildProofEntry{
				ChildKey: []byte(ck),
				Key:      []byte(k),
				Value:    pairs[k],
			})
		}
	}
	return proof
}
