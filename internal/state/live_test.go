package state

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blackberry/internal/block"
	"github.com/eigerco/blackberry/internal/crypto"
)

// fakeChain is an in-memory ChainClient with a network-call counter
type fakeChain struct {
	best    block.Header
	headers map[crypto.Hash]block.Header
	blocks  map[crypto.Hash]block.SignedBlock
	pairs   map[crypto.Hash][]KeyValue
	child   map[string][]KeyValue
	version RuntimeVersion
	calls   int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		headers: make(map[crypto.Hash]block.Header),
		blocks:  make(map[crypto.Hash]block.SignedBlock),
		pairs:   make(map[crypto.Hash][]KeyValue),
		child:   make(map[string][]KeyValue),
		version: RuntimeVersion{SpecName: "westend", SpecVersion: 1000},
	}
}

func (f *fakeChain) addHeader(t *testing.T, h block.Header) crypto.Hash {
	t.Helper()
	hash, err := h.Hash()
	require.NoError(t, err)
	f.headers[hash] = h
	return hash
}

func (f *fakeChain) ChainGetHeader(_ context.Context, at *crypto.Hash) (block.Header, error) {
	f.calls++
	if at == nil {
		return f.best, nil
	}
	h, ok := f.headers[*at]
	if !ok {
		return block.Header{}, ErrNotFound
	}
	return h, nil
}

func (f *fakeChain) ChainGetBlock(_ context.Context, at crypto.Hash) (block.SignedBlock, error) {
	f.calls++
	b, ok := f.blocks[at]
	if !ok {
		return block.SignedBlock{}, ErrBlockNotFound
	}
	return b, nil
}

func (f *fakeChain) StateGetPairs(_ context.Context, prefix []byte, at crypto.Hash) ([]KeyValue, error) {
	f.calls++
	var out []KeyValue
	for _, kv := range f.pairs[at] {
		if len(prefix) == 0 || (len(kv.Key) >= len(prefix) && string(kv.Key[:len(prefix)]) == string(prefix)) {
			out = append(out, kv)
		}
	}
	return out, nil
}

func (f *fakeChain) ChildStateGetPairs(_ context.Context, childKey []byte, _ crypto.Hash) ([]KeyValue, error) {
	f.calls++
	return f.child[string(childKey)], nil
}

func (f *fakeChain) StateGetRuntimeVersion(_ context.Context, _ *crypto.Hash) (RuntimeVersion, error) {
	f.calls++
	return f.version, nil
}

func (f *fakeChain) Close() error { return nil }

func randomHash(t *testing.T) crypto.Hash {
	t.Helper()
	var h crypto.Hash
	_, err := rand.Read(h[:])
	require.NoError(t, err)
	return h
}

func TestResolveAt_ExplicitIdentifierKept(t *testing.T) {
	chain := newFakeChain()
	at := randomHash(t)

	live := Live{URI: "ws://localhost:9944", At: &at}
	resolved, err := live.ResolveAt(context.Background(), chain)
	require.NoError(t, err)

	// No silent substitution, and no network access.
	assert.Equal(t, at, *resolved.At)
	assert.Zero(t, chain.calls)
}

func TestResolveAt_BestBlock(t *testing.T) {
	chain := newFakeChain()
	chain.best = block.Header{Number: 100, ParentHash: randomHash(t)}
	bestHash, err := chain.best.Hash()
	require.NoError(t, err)

	live := Live{URI: "ws://localhost:9944"}
	resolved, err := live.ResolveAt(context.Background(), chain)
	require.NoError(t, err)

	// Resolving with no identifier matches an independent header(None) query.
	assert.Equal(t, bestHash, *resolved.At)
}

func TestPrevBlock(t *testing.T) {
	chain := newFakeChain()
	parent := block.Header{Number: 99}
	parentHash := chain.addHeader(t, parent)
	head := block.Header{Number: 100, ParentHash: parentHash}
	headHash := chain.addHeader(t, head)

	live := Live{At: &headHash}
	prev, target, err := live.PrevBlock(context.Background(), chain)
	require.NoError(t, err)

	assert.Equal(t, parentHash, *prev.At)
	assert.Equal(t, parentHash, target.StateHash)
	assert.Equal(t, uint(99), target.StateNumber)
	assert.Equal(t, headHash, target.ExecuteHash)
	assert.Equal(t, uint(100), target.ExecuteNumber)
	// Execute target is exactly one block ahead of the baseline.
	assert.Equal(t, target.StateNumber+1, target.ExecuteNumber)
}

func TestPrevBlock_RequiresIdentifier(t *testing.T) {
	_, _, err := Live{}.PrevBlock(context.Background(), newFakeChain())
	assert.ErrorIs(t, err, ErrNoBlockIdentifier)
}

func TestPrevBlock_GenesisHasNoParentState(t *testing.T) {
	chain := newFakeChain()
	genesisHash := chain.addHeader(t, block.Header{Number: 0})

	_, _, err := Live{At: &genesisHash}.PrevBlock(context.Background(), chain)
	assert.ErrorIs(t, err, ErrGenesisBlock)
}

func TestScrape_FullState(t *testing.T) {
	chain := newFakeChain()
	at := chain.addHeader(t, block.Header{Number: 50})
	chain.pairs[at] = []KeyValue{
		{Key: []byte{2}, Value: []byte("b")},
		{Key: []byte{1}, Value: []byte("a")},
	}

	raw, err := Live{At: &at}.Scrape(context.Background(), chain)
	require.NoError(t, err)

	assert.Equal(t, at, raw.At)
	assert.Equal(t, uint(50), raw.Number)
	assert.Equal(t, "westend", raw.Version.SpecName)
	// Pairs come back sorted by key.
	require.Len(t, raw.Pairs, 2)
	assert.Equal(t, []byte{1}, raw.Pairs[0].Key)
	assert.Equal(t, []byte{2}, raw.Pairs[1].Key)
}

func TestScrape_PalletFilter(t *testing.T) {
	chain := newFakeChain()
	at := chain.addHeader(t, block.Header{Number: 50})

	system := crypto.Twox128([]byte("System"))
	balances := crypto.Twox128([]byte("Balances"))
	chain.pairs[at] = []KeyValue{
		{Key: append(system[:], 0x01), Value: []byte("sys")},
		{Key: append(balances[:], 0x02), Value: []byte("bal")},
	}

	raw, err := Live{At: &at, Pallets: []string{"System"}}.Scrape(context.Background(), chain)
	require.NoError(t, err)

	require.Len(t, raw.Pairs, 1)
	assert.Equal(t, []byte("sys"), raw.Pairs[0].Value)
}

func TestScrape_ChildTries(t *testing.T) {
	chain := newFakeChain()
	at := chain.addHeader(t, block.Header{Number: 50})

	childKey := append(ChildStorageKeyPrefix, 0xaa)
	chain.pairs[at] = []KeyValue{
		{Key: childKey, Value: []byte("root")},
	}
	chain.child[string(childKey)] = []KeyValue{{Key: []byte{9}, Value: []byte("child")}}

	raw, err := Live{At: &at, ChildTree: true}.Scrape(context.Background(), chain)
	require.NoError(t, err)

	require.Len(t, raw.Child, 1)
	assert.Equal(t, childKey, raw.Child[0].ChildKey)
	require.Len(t, raw.Child[0].Pairs, 1)
	assert.Equal(t, []byte("child"), raw.Child[0].Pairs[0].Value)
}

func TestScrape_RequiresIdentifier(t *testing.T) {
	_, err := Live{}.Scrape(context.Background(), newFakeChain())
	assert.ErrorIs(t, err, ErrNoBlockIdentifier)
}
