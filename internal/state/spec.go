package state

import (
	"github.com/eigerco/blackberry/internal/crypto"
)

// Spec selects the origin of the key-value state used for a command. It is a
// closed union: Live scrapes a remote node, Snap loads a local capture.
// Flows that only support one variant must reject the other with
// ErrUnsupported rather than falling back silently.
type Spec interface {
	source() string
}

// Live describes a remote state source
type Live struct {
	// URI of the node to scrape state from
	URI string
	// At is the block whose state is wanted; nil means the current best
	// block, resolved with a header query at scrape time
	At *crypto.Hash
	// Pallets restricts the scrape to the storage prefixes of the named
	// pallets; empty means everything
	Pallets []string
	// HashedPrefixes are raw, already-hashed key prefixes to scrape in
	// addition to the pallet prefixes
	HashedPrefixes [][]byte
	// ChildTree includes child trie data in the scrape
	ChildTree bool
}

// Snap describes a local state capture written by create-snapshot
type Snap struct {
	// Path of the snapshot database
	Path string
}

func (Live) source() string { return "live" }
func (Snap) source() string { return "snap" }

// KeyValue is a single storage pair
type KeyValue struct {
	Key   []byte
	Value []byte
}

// ChildPairs holds the storage pairs of one child trie, keyed by the child
// storage key under which its root lives in the main trie.
type ChildPairs struct {
	ChildKey []byte
	Pairs    []KeyValue
}

// RuntimeVersion identifies the runtime a state was produced by
type RuntimeVersion struct {
	SpecName           string
	ImplName           string
	AuthoringVersion   uint32
	SpecVersion        uint32
	ImplVersion        uint32
	TransactionVersion uint32
	StateVersion       uint8
}

// RuntimeChecks are the compatibility gates evaluated once when externalities
// are built. They are advisory: once building succeeds no re-validation
// happens mid-execution.
type RuntimeChecks struct {
	// NameMatches rejects state whose chain identity differs from the
	// candidate runtime's
	NameMatches bool
	// VersionIncreases requires the candidate version to exceed the
	// on-chain one; always false in the execute-block flow
	VersionIncreases bool
	// TryRuntimeFeatureEnabled records the assumption that the candidate
	// exposes the diagnostic entry points; execution fails later if not
	TryRuntimeFeatureEnabled bool
}

// RawState is a resolved key-value state at a concrete block
type RawState struct {
	Pairs   []KeyValue
	Child   []ChildPairs
	At      crypto.Hash
	Number  uint
	Version RuntimeVersion
}

// ResolvedBlockTarget pins the block the state was fetched at (the baseline)
// and the block to be executed on top of it. The execute target is always
// exactly one block ahead of the baseline.
type ResolvedBlockTarget struct {
	StateHash     crypto.Hash
	StateNumber   uint
	ExecuteHash   crypto.Hash
	ExecuteNumber uint
}
