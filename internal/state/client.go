package state

import (
	"context"

	"github.com/eigerco/blackberry/internal/block"
	"github.com/eigerco/blackberry/internal/crypto"
)

// ChainClient is the remote chain-query surface the state source needs. A nil
// hash on ChainGetHeader asks for the current best block. Implementations
// wrap transport failures in ErrStateUnavailable and missing blocks or keys
// in ErrBlockNotFound / ErrNotFound.
type ChainClient interface {
	ChainGetHeader(ctx context.Context, at *crypto.Hash) (block.Header, error)
	ChainGetBlock(ctx context.Context, at crypto.Hash) (block.SignedBlock, error)
	StateGetPairs(ctx context.Context, prefix []byte, at crypto.Hash) ([]KeyValue, error)
	ChildStateGetPairs(ctx context.Context, childKey []byte, at crypto.Hash) ([]KeyValue, error)
	StateGetRuntimeVersion(ctx context.Context, at *crypto.Hash) (RuntimeVersion, error)
	Close() error
}
