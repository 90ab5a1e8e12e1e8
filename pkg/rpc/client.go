package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eigerco/blackberry/internal/block"
	"github.com/eigerco/blackberry/internal/crypto"
	"github.com/eigerco/blackberry/internal/state"
	"github.com/eigerco/blackberry/pkg/log"
)

const headerCacheSize = 128

var _ state.ChainClient = (*Client)(nil)

// Client speaks JSON-RPC over a websocket to one chain node. Requests are
// serialized: one outstanding call at a time, matching the strictly
// sequential fetch order of the replay flow. A client is owned by a single
// invocation and must not be shared across concurrent ones.
type Client struct {
	conn    *websocket.Conn
	uri     string
	mu      sync.Mutex
	nextID  uint64
	headers *lru.Cache[crypto.Hash, block.Header]
}

// RPCError is an error object returned by the remote node
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Dial connects to the node at the given ws uri
func Dial(ctx context.Context, uri string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", state.ErrStateUnavailable, uri, err)
	}

	headers, err := lru.New[crypto.Hash, block.Header](headerCacheSize)
	if err != nil {
		return nil, err
	}

	log.RPC.Debug().Str("uri", uri).Msg("connected")
	return &Client{conn: conn, uri: uri, headers: headers}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs one request-response exchange. A dropped connection surfaces
// as ErrStateUnavailable; nothing is cached across a failed attempt.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		_ = c.conn.SetWriteDeadline(deadline)
	}

	c.nextID++
	req := request{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params}
	if params == nil {
		req.Params = []any{}
	}

	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: send %s: %v", state.ErrStateUnavailable, method, err)
	}

	// One outstanding request at a time, so the next text message with a
	// matching id is ours. Server-initiated messages are skipped.
	for {
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("%w: receive %s: %v", state.ErrStateUnavailable, method, err)
		}
		if resp.ID != req.ID {
			log.RPC.Debug().Uint64("id", resp.ID).Msg("skipping unsolicited message")
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if string(resp.Result) == "null" || len(resp.Result) == 0 {
			return fmt.Errorf("%s: %w", method, state.ErrNotFound)
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}
