package state

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/eigerco/blackberry/internal/crypto"
	"github.com/eigerco/blackberry/pkg/log"
)

// ChildStorageKeyPrefix is the main-trie prefix under which child trie roots
// live on the source chain.
var ChildStorageKeyPrefix = []byte(":child_storage:default:")

// ResolveAt pins the live spec to a concrete block identifier. When no
// identifier was given the chain's current best block is used: a header query
// with no argument returns the best header, and its hash becomes the resolved
// identifier. This lets users operate on a recent consistent state without
// hand-copying a hash.
func (l Live) ResolveAt(ctx context.Context, client ChainClient) (Live, error) {
	if l.At != nil {
		return l, nil
	}

	header, err := client.ChainGetHeader(ctx, nil)
	if err != nil {
		return Live{}, fmt.Errorf("resolve best block: %w", err)
	}
	hash, err := header.Hash()
	if err != nil {
		return Live{}, fmt.Errorf("hash best header: %w", err)
	}

	log.Replay.Info().
		Str("hash", hash.String()).
		Uint64("number", uint64(header.Number)).
		Msg("no block identifier given, resolved to best block")

	resolved := l
	resolved.At = &hash
	return resolved, nil
}

// PrevBlock derives the spec for the state immediately preceding this one,
// together with the resolved block target: state is taken at the parent of
// the pinned block, and the pinned block itself is the one to execute on top.
func (l Live) PrevBlock(ctx context.Context, client ChainClient) (Live, ResolvedBlockTarget, error) {
	if l.At == nil {
		return Live{}, ResolvedBlockTarget{}, ErrNoBlockIdentifier
	}

	header, err := client.ChainGetHeader(ctx, l.At)
	if err != nil {
		return Live{}, ResolvedBlockTarget{}, fmt.Errorf("fetch header %s: %w", l.At, err)
	}
	if header.Number == 0 {
		return Live{}, ResolvedBlockTarget{}, fmt.Errorf("block %s: %w", l.At, ErrGenesisBlock)
	}

	target := ResolvedBlockTarget{
		StateHash:     header.ParentHash,
		StateNumber:   header.Number - 1,
		ExecuteHash:   *l.At,
		ExecuteNumber: header.Number,
	}

	prev := l
	parent := header.ParentHash
	prev.At = &parent
	return prev, target, nil
}

// Scrape fetches the key-value state the spec describes. The spec must be
// pinned to a concrete block identifier first.
func (l Live) Scrape(ctx context.Context, client ChainClient) (*RawState, error) {
	if l.At == nil {
		return nil, ErrNoBlockIdentifier
	}
	at := *l.At

	prefixes := l.scrapePrefixes()
	seen := make(map[string][]byte)
	for _, prefix := range prefixes {
		pairs, err := client.StateGetPairs(ctx, prefix, at)
		if err != nil {
			return nil, fmt.Errorf("scrape prefix %x at %s: %w", prefix, at, err)
		}
		for _, kv := range pairs {
			seen[string(kv.Key)] = kv.Value
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	raw := &RawState{
		Pairs: make([]KeyValue, 0, len(keys)),
		At:    at,
	}
	for _, k := range keys {
		raw.Pairs = append(raw.Pairs, KeyValue{Key: []byte(k), Value: seen[k]})
	}

	if l.ChildTree {
		child, err := scrapeChildTries(ctx, client, raw.Pairs, at)
		if err != nil {
			return nil, err
		}
		raw.Child = child
	}

	header, err := client.ChainGetHeader(ctx, &at)
	if err != nil {
		return nil, fmt.Errorf("fetch scraped header: %w", err)
	}
	raw.Number = header.Number

	version, err := client.StateGetRuntimeVersion(ctx, &at)
	if err != nil {
		return nil, fmt.Errorf("fetch runtime version: %w", err)
	}
	raw.Version = version

	log.Replay.Info().
		Str("at", at.String()).
		Int("pairs", len(raw.Pairs)).
		Int("child_tries", len(raw.Child)).
		Str("spec_name", version.SpecName).
		Uint32("spec_version", version.SpecVersion).
		Msg("scraped state")

	return raw, nil
}

// scrapePrefixes maps the pallet filter to hashed key prefixes. No filters at
// all means one full scrape with an empty prefix.
func (l Live) scrapePrefixes() [][]byte {
	if len(l.Pallets) == 0 && len(l.HashedPrefixes) == 0 {
		return [][]byte{nil}
	}

	prefixes := make([][]byte, 0, len(l.Pallets)+len(l.HashedPrefixes))
	for _, pallet := range l.Pallets {
		hashed := crypto.Twox128([]byte(pallet))
		prefixes = append(prefixes, hashed[:])
	}
	prefixes = append(prefixes, l.HashedPrefixes...)
	return prefixes
}

func scrapeChildTries(ctx context.Context, client ChainClient, pairs []KeyValue, at crypto.Hash) ([]ChildPairs, error) {
	var child []ChildPairs
	for _, kv := range pairs {
		if !bytes.HasPrefix(kv.Key, ChildStorageKeyPrefix) {
			continue
		}
		childPairs, err := client.ChildStateGetPairs(ctx, kv.Key, at)
		if err != nil {
			return nil, fmt.Errorf("scrape child trie %x: %w", kv.Key, err)
		}
		child = append(child, ChildPairs{ChildKey: kv.Key, Pairs: childPairs})
	}
	return child, nil
}
