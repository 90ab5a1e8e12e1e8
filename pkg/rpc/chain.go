package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ChainSafe/gossamer/pkg/scale"

	"github.com/eigerco/blackberry/internal/block"
	"github.com/eigerco/blackberry/internal/crypto"
	"github.com/eigerco/blackberry/internal/state"
)

// jsonHeader is the node's JSON representation of a header
type jsonHeader struct {
	ParentHash     string `json:"parentHash"`
	Number         string `json:"number"`
	StateRoot      string `json:"stateRoot"`
	ExtrinsicsRoot string `json:"extrinsicsRoot"`
	Digest         struct {
		Logs []string `json:"logs"`
	} `json:"digest"`
}

type jsonBlock struct {
	Block struct {
		Header     jsonHeader `json:"header"`
		Extrinsics []string   `json:"extrinsics"`
	} `json:"block"`
	Justifications []json.RawMessage `json:"justifications"`
}

type jsonRuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	AuthoringVersion   uint32 `json:"authoringVersion"`
	SpecVersion        uint32 `json:"specVersion"`
	ImplVersion        uint32 `json:"implVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
	StateVersion       uint8  `json:"stateVersion"`
}

func encodeHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

func decodeHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return raw, nil
}

func (h jsonHeader) toHeader() (block.Header, error) {
	parentHash, err := crypto.ParseHash(h.ParentHash)
	if err != nil {
		return block.Header{}, fmt.Errorf("parent hash: %w", err)
	}
	stateRoot, err := crypto.ParseHash(h.StateRoot)
	if err != nil {
		return block.Header{}, fmt.Errorf("state root: %w", err)
	}
	extrinsicsRoot, err := crypto.ParseHash(h.ExtrinsicsRoot)
	if err != nil {
		return block.Header{}, fmt.Errorf("extrinsics root: %w", err)
	}
	number, err := strconv.ParseUint(strings.TrimPrefix(h.Number, "0x"), 16, 64)
	if err != nil {
		return block.Header{}, fmt.Errorf("block number %q: %w", h.Number, err)
	}

	digest := make(block.Digest, 0, len(h.Digest.Logs))
	for _, logEntry := range h.Digest.Logs {
		raw, err := decodeHex(logEntry)
		if err != nil {
			return block.Header{}, fmt.Errorf("digest log: %w", err)
		}
		var item block.DigestItem
		if err := scale.Unmarshal(raw, &item); err != nil {
			return block.Header{}, fmt.Errorf("decode digest log: %w", err)
		}
		digest = append(digest, item)
	}

	return block.Header{
		ParentHash:     parentHash,
		Number:         uint(number),
		StateRoot:      stateRoot,
		ExtrinsicsRoot: extrinsicsRoot,
		Digest:         digest,
	}, nil
}

// ChainGetHeader fetches a header; nil asks for the current best block.
// Headers pinned by hash are cached, best-block queries never are.
func (c *Client) ChainGetHeader(ctx context.Context, at *crypto.Hash) (block.Header, error) {
	if at != nil {
		if cached, ok := c.headers.Get(*at); ok {
			return cached, nil
		}
	}

	params := []any{}
	if at != nil {
		params = append(params, at.String())
	}

	var jh jsonHeader
	if err := c.call(ctx, "chain_getHeader", params, &jh); err != nil {
		return block.Header{}, err
	}
	header, err := jh.toHeader()
	if err != nil {
		return block.Header{}, err
	}

	if at != nil {
		c.headers.Add(*at, header)
	}
	return header, nil
}

// ChainGetBlock fetches the full block at the given hash
func (c *Client) ChainGetBlock(ctx context.Context, at crypto.Hash) (block.SignedBlock, error) {
	var jb jsonBlock
	if err := c.call(ctx, "chain_getBlock", []any{at.String()}, &jb); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return block.SignedBlock{}, fmt.Errorf("block %s: %w", at, state.ErrBlockNotFound)
		}
		return block.SignedBlock{}, err
	}

	header, err := jb.Block.Header.toHeader()
	if err != nil {
		return block.SignedBlock{}, err
	}

	extrinsics := make(block.Extrinsics, 0, len(jb.Block.Extrinsics))
	for _, xt := range jb.Block.Extrinsics {
		raw, err := decodeHex(xt)
		if err != nil {
			return block.SignedBlock{}, fmt.Errorf("extrinsic: %w", err)
		}
		extrinsics = append(extrinsics, raw)
	}

	// Justifications stay opaque; the replay flow never interprets them.
	justifications := make([][]byte, 0, len(jb.Justifications))
	for _, j := range jb.Justifications {
		justifications = append(justifications, []byte(j))
	}

	return block.SignedBlock{
		Block:          block.Block{Header: header, Extrinsics: extrinsics},
		Justifications: justifications,
	}, nil
}

// StateGetPairs fetches all storage pairs under the given prefix
func (c *Client) StateGetPairs(ctx context.Context, prefix []byte, at crypto.Hash) ([]state.KeyValue, error) {
	var rawPairs [][2]string
	if err := c.call(ctx, "state_getPairs", []any{encodeHex(prefix), at.String()}, &rawPairs); err != nil {
		return nil, err
	}
	return decodePairs(rawPairs)
}

// ChildStateGetPairs fetches every storage pair of one child trie by listing
// its keys and reading them back individually.
func (c *Client) ChildStateGetPairs(ctx context.Context, childKey []byte, at crypto.Hash) ([]state.KeyValue, error) {
	var rawKeys []string
	err := c.call(ctx, "childstate_getKeys", []any{encodeHex(childKey), "0x", at.String()}, &rawKeys)
	if err != nil {
		return nil, err
	}

	pairs := make([]state.KeyValue, 0, len(rawKeys))
	for _, rawKey := range rawKeys {
		key, err := decodeHex(rawKey)
		if err != nil {
			return nil, fmt.Errorf("child key: %w", err)
		}

		var rawValue string
		err = c.call(ctx, "childstate_getStorage", []any{encodeHex(childKey), rawKey, at.String()}, &rawValue)
		if err != nil {
			return nil, err
		}
		value, err := decodeHex(rawValue)
		if err != nil {
			return nil, fmt.Errorf("child value: %w", err)
		}
		pairs = append(pairs, state.KeyValue{Key: key, Value: value})
	}
	return pairs, nil
}

// StateGetRuntimeVersion fetches the runtime version at the given block
func (c *Client) StateGetRuntimeVersion(ctx context.Context, at *crypto.Hash) (state.RuntimeVersion, error) {
	params := []any{}
	if at != nil {
		params = append(params, at.String())
	}

	var jv jsonRuntimeVersion
	if err := c.call(ctx, "state_getRuntimeVersion", params, &jv); err != nil {
		return state.RuntimeVersion{}, err
	}
	return state.RuntimeVersion{
		SpecName:           jv.SpecName,
		ImplName:           jv.ImplName,
		AuthoringVersion:   jv.AuthoringVersion,
		SpecVersion:        jv.SpecVersion,
		ImplVersion:        jv.ImplVersion,
		TransactionVersion: jv.TransactionVersion,
		StateVersion:       jv.StateVersion,
	}, nil
}

func decodePairs(rawPairs [][2]string) ([]state.KeyValue, error) {
	pairs := make([]state.KeyValue, 0, len(rawPairs))
	for _, raw := range rawPairs {
		key, err := decodeHex(raw[0])
		if err != nil {
			return nil, fmt.Errorf("storage key: %w", err)
		}
		value, err := decodeHex(raw[1])
		if err != nil {
			return nil, fmt.Errorf("storage value: %w", err)
		}
		pairs = append(pairs, state.KeyValue{Key: key, Value: value})
	}
	return pairs, nil
}
