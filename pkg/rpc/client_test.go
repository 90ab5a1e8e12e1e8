package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ChainSafe/gossamer/pkg/scale"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blackberry/internal/block"
	"github.com/eigerco/blackberry/internal/crypto"
	"github.com/eigerco/blackberry/internal/state"
)

type rpcHandler func(params []json.RawMessage) (any, *RPCError)

// testNode is a canned JSON-RPC websocket server
type testNode struct {
	server   *httptest.Server
	handlers map[string]rpcHandler
	requests atomic.Int64
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	node := &testNode{handlers: make(map[string]rpcHandler)}
	upgrader := websocket.Upgrader{}

	node.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req struct {
				ID     uint64            `json:"id"`
				Method string            `json:"method"`
				Params []json.RawMessage `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			node.requests.Add(1)

			resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
			if handler, ok := node.handlers[req.Method]; ok {
				result, rpcErr := handler(req.Params)
				if rpcErr != nil {
					resp["error"] = rpcErr
				} else {
					resp["result"] = result
				}
			} else {
				resp["error"] = &RPCError{Code: -32601, Message: "method not found"}
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(node.server.Close)
	return node
}

func (n *testNode) dial(t *testing.T) *Client {
	t.Helper()
	uri := "ws" + strings.TrimPrefix(n.server.URL, "http")
	client, err := Dial(context.Background(), uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testJSONHeader(t *testing.T, parent crypto.Hash, number string) map[string]any {
	t.Helper()
	sealItem := block.NewDigestItem(block.SealDigest{
		ConsensusEngineID: block.ConsensusEngineID{'B', 'A', 'B', 'E'},
		Data:              []byte{1, 2},
	})
	encodedSeal, err := scale.Marshal(sealItem)
	require.NoError(t, err)

	zero := crypto.Hash{}
	return map[string]any{
		"parentHash":     parent.String(),
		"number":         number,
		"stateRoot":      zero.String(),
		"extrinsicsRoot": zero.String(),
		"digest": map[string]any{
			"logs": []string{encodeHex(encodedSeal)},
		},
	}
}

func TestChainGetHeader(t *testing.T) {
	node := newTestNode(t)
	parent := crypto.HashData([]byte("parent"))
	node.handlers["chain_getHeader"] = func([]json.RawMessage) (any, *RPCError) {
		return testJSONHeader(t, parent, "0x64"), nil
	}

	client := node.dial(t)
	header, err := client.ChainGetHeader(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, parent, header.ParentHash)
	assert.Equal(t, uint(100), header.Number)
	require.Len(t, header.Digest, 1)
	value, err := header.Digest[0].Value()
	require.NoError(t, err)
	assert.IsType(t, block.SealDigest{}, value)
}

func TestChainGetHeader_CachedByHash(t *testing.T) {
	node := newTestNode(t)
	parent := crypto.HashData([]byte("parent"))
	node.handlers["chain_getHeader"] = func([]json.RawMessage) (any, *RPCError) {
		return testJSONHeader(t, parent, "0x64"), nil
	}

	client := node.dial(t)
	at := crypto.HashData([]byte("pinned"))

	first, err := client.ChainGetHeader(context.Background(), &at)
	require.NoError(t, err)
	before := node.requests.Load()

	second, err := client.ChainGetHeader(context.Background(), &at)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, before, node.requests.Load())
}

func TestChainGetHeader_Null(t *testing.T) {
	node := newTestNode(t)
	node.handlers["chain_getHeader"] = func([]json.RawMessage) (any, *RPCError) {
		return nil, nil
	}

	client := node.dial(t)
	_, err := client.ChainGetHeader(context.Background(), nil)
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestChainGetBlock(t *testing.T) {
	node := newTestNode(t)
	parent := crypto.HashData([]byte("parent"))
	node.handlers["chain_getBlock"] = func([]json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"block": map[string]any{
				"header":     testJSONHeader(t, parent, "0x65"),
				"extrinsics": []string{"0x0401", "0xdead"},
			},
		}, nil
	}

	client := node.dial(t)
	signed, err := client.ChainGetBlock(context.Background(), crypto.HashData([]byte("at")))
	require.NoError(t, err)

	assert.Equal(t, uint(0x65), signed.Block.Header.Number)
	require.Len(t, signed.Block.Extrinsics, 2)
	assert.Equal(t, []byte{0x04, 0x01}, []byte(signed.Block.Extrinsics[0]))
	assert.Equal(t, []byte{0xde, 0xad}, []byte(signed.Block.Extrinsics[1]))
}

func TestChainGetBlock_Missing(t *testing.T) {
	node := newTestNode(t)
	node.handlers["chain_getBlock"] = func([]json.RawMessage) (any, *RPCError) {
		return nil, nil
	}

	client := node.dial(t)
	_, err := client.ChainGetBlock(context.Background(), crypto.HashData([]byte("at")))
	assert.ErrorIs(t, err, state.ErrBlockNotFound)
}

func TestStateGetPairs(t *testing.T) {
	node := newTestNode(t)
	node.handlers["state_getPairs"] = func(params []json.RawMessage) (any, *RPCError) {
		var prefix string
		require.NoError(t, json.Unmarshal(params[0], &prefix))
		assert.Equal(t, "0x26aa", prefix)
		return [][2]string{{"0x26aa01", "0x0a"}, {"0x26aa02", "0x0b"}}, nil
	}

	client := node.dial(t)
	pairs, err := client.StateGetPairs(context.Background(), []byte{0x26, 0xaa}, crypto.Hash{})
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, []byte{0x26, 0xaa, 0x01}, pairs[0].Key)
	assert.Equal(t, []byte{0x0a}, pairs[0].Value)
}

func TestChildStateGetPairs(t *testing.T) {
	node := newTestNode(t)
	node.handlers["childstate_getKeys"] = func([]json.RawMessage) (any, *RPCError) {
		return []string{"0x01", "0x02"}, nil
	}
	node.handlers["childstate_getStorage"] = func(params []json.RawMessage) (any, *RPCError) {
		var key string
		require.NoError(t, json.Unmarshal(params[1], &key))
		if key == "0x01" {
			return "0xaa", nil
		}
		return "0xbb", nil
	}

	client := node.dial(t)
	pairs, err := client.ChildStateGetPairs(context.Background(), []byte("child"), crypto.Hash{})
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, []byte{0xaa}, pairs[0].Value)
	assert.Equal(t, []byte{0xbb}, pairs[1].Value)
}

func TestStateGetRuntimeVersion(t *testing.T) {
	node := newTestNode(t)
	node.handlers["state_getRuntimeVersion"] = func([]json.RawMessage) (any, *RPCError) {
		return map[string]any{
			"specName":           "westend",
			"implName":           "parity-westend",
			"authoringVersion":   2,
			"specVersion":        1008,
			"implVersion":        0,
			"transactionVersion": 24,
			"stateVersion":       1,
		}, nil
	}

	client := node.dial(t)
	version, err := client.StateGetRuntimeVersion(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "westend", version.SpecName)
	assert.Equal(t, uint32(1008), version.SpecVersion)
	assert.Equal(t, uint8(1), version.StateVersion)
}

func TestCall_RPCErrorSurfaces(t *testing.T) {
	node := newTestNode(t)

	client := node.dial(t)
	_, err := client.StateGetRuntimeVersion(context.Background(), nil)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1")
	assert.ErrorIs(t, err, state.ErrStateUnavailable)
}
