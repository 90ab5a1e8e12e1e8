package state

import "errors"

var (
	// ErrStateUnavailable means the remote source is unreachable or the
	// connection was lost mid-fetch. Retrying is left to the caller.
	ErrStateUnavailable = errors.New("state unavailable")
	// ErrBlockNotFound means the requested block identifier does not exist
	// on the remote source.
	ErrBlockNotFound = errors.New("block not found")
	// ErrNotFound means a requested key or header is missing.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported means the state spec variant is not permitted by the
	// calling flow.
	ErrUnsupported = errors.New("unsupported state spec")
	// ErrNoBlockIdentifier means an operation that needs a concrete block
	// identifier was given a spec that has not been resolved yet.
	ErrNoBlockIdentifier = errors.New("live state has no block identifier")
	// ErrGenesisBlock means the pinned block is the genesis block, which has
	// no parent state to replay on top of.
	ErrGenesisBlock = errors.New("genesis block has no parent state")
)
