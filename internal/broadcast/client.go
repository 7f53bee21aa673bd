package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmfrees/zombodb/internal/fastterms"
	"github.com/jmfrees/zombodb/pkg/errors"
	"github.com/jmfrees/zombodb/pkg/rpc"
)

// MethodFastTerms is the RPC method shards expose for term enumeration.
const MethodFastTerms = "zdb.fast_terms"

// FastTermsParams is the JSON frame sent to a shard.
type FastTermsParams struct {
	Index    string `json:"index"`
	Field    string `json:"field"`
	Query    string `json:"query"`
	DataType uint8  `json:"data_type"`
	Shard    int    `json:"shard"`
}

// FastTermsResult carries the shard's binary payload; encoding/json
// transports the byte slice as base64.
type FastTermsResult struct {
	Payload []byte `json:"payload"`
}

// RPCShardClient resolves shard ordinals to TCP endpoints and issues
// fast-terms calls over the JSON RPC transport. Connections are dialed
// lazily and reused.
type RPCShardClient struct {
	addrs   []string
	mu      sync.Mutex
	clients map[int]*rpc.Client
}

func NewRPCShardClient(addrs []string) *RPCShardClient {
	return &RPCShardClient{
		addrs:   addrs,
		clients: make(map[int]*rpc.Client),
	}
}

// NumShards returns the number of configured shard endpoints.
func (c *RPCShardClient) NumShards() int {
	return len(c.addrs)
}

func (c *RPCShardClient) client(shard int) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[shard]; ok {
		return cl, nil
	}
	cl, err := rpc.Dial(c.addrs[shard])
	if err != nil {
		return nil, err
	}
	c.clients[shard] = cl
	return cl, nil
}

// FastTerms runs the query on one shard and decodes its payload. The
// context bounds the whole exchange; a call abandoned by the context also
// drops the connection so a late response cannot desynchronize the frame
// stream.
func (c *RPCShardClient) FastTerms(ctx context.Context, shard int, req TermsRequest) (fastterms.ShardData, error) {
	if shard < 0 || shard >= len(c.addrs) {
		return nil, fmt.Errorf("no endpoint for shard %d", shard)
	}
	cl, err := c.client(shard)
	if err != nil {
		return nil, errors.Newf(errors.ErrShardUnavailable, "connecting to shard %d: %v", shard, err)
	}

	params := FastTermsParams{
		Index:    req.Index,
		Field:    req.Field,
		Query:    req.Query,
		DataType: uint8(req.DataType),
		Shard:    shard,
	}
	var result FastTermsResult

	callDone := make(chan error, 1)
	go func() {
		callDone <- cl.Call(MethodFastTerms, params, &result)
	}()
	select {
	case <-ctx.Done():
		c.drop(shard, cl)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Newf(errors.ErrTimeout, "shard %d: %v", shard, ctx.Err())
		}
		return nil, fmt.Errorf("shard %d: %w", shard, ctx.Err())
	case err := <-callDone:
		if err != nil {
			c.drop(shard, cl)
			return nil, fmt.Errorf("shard %d: %w", shard, err)
		}
	}

	data, err := fastterms.DecodeShardData(req.DataType, result.Payload)
	if err != nil {
		return nil, fmt.Errorf("shard %d payload: %w", shard, err)
	}
	return data, nil
}

func (c *RPCShardClient) drop(shard int, cl *rpc.Client) {
	cl.Close()
	c.mu.Lock()
	if c.clients[shard] == cl {
		delete(c.clients, shard)
	}
	c.mu.Unlock()
}

// Close tears down all shard connections.
func (c *RPCShardClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for shard, cl := range c.clients {
		cl.Close()
		delete(c.clients, shard)
	}
}
