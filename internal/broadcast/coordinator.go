// Package broadcast fans a fast-terms request out to every shard of an
// index and folds the per-shard payloads into one TermsResponse. Retry and
// backoff are deliberately absent; a shard that fails within its timeout is
// recorded as a failure and the merge continues with the rest.
package broadcast

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmfrees/zombodb/internal/fastterms"
	"github.com/jmfrees/zombodb/pkg/logger"
)

// TermsRequest identifies one fast-terms query: the logical index, the
// field being enumerated, an opaque shard-side query, and the value shape
// the shards will return.
type TermsRequest struct {
	Index    string
	Field    string
	Query    string
	DataType fastterms.DataType
}

// ShardClient executes a fast-terms request against one shard ordinal.
type ShardClient interface {
	FastTerms(ctx context.Context, shard int, req TermsRequest) (fastterms.ShardData, error)
}

// Coordinator schedules the broadcast and assembles the response.
type Coordinator struct {
	client    ShardClient
	numShards int
	timeout   time.Duration
}

func NewCoordinator(client ShardClient, numShards int, timeout time.Duration) *Coordinator {
	return &Coordinator{
		client:    client,
		numShards: numShards,
		timeout:   timeout,
	}
}

// Execute queries all shards concurrently and returns the merged response.
// Individual shard failures do not fail the call; they are recorded in the
// response's shard summary. Execute itself errors only when the response
// cannot be constructed.
func (c *Coordinator) Execute(ctx context.Context, req TermsRequest) (*fastterms.TermsResponse, error) {
	start := time.Now()
	// The context carries the query id when the entrypoint tagged one.
	log := logger.FromContext(ctx).With("component", "broadcast-coordinator")

	payloads := make([]fastterms.ShardData, c.numShards)
	var mu sync.Mutex
	var failures []fastterms.ShardFailure

	g, gctx := errgroup.WithContext(ctx)
	for shard := 0; shard < c.numShards; shard++ {
		shard := shard
		g.Go(func() error {
			shardCtx := gctx
			if c.timeout > 0 {
				var cancel context.CancelFunc
				shardCtx, cancel = context.WithTimeout(gctx, c.timeout)
				defer cancel()
			}
			data, err := c.client.FastTerms(shardCtx, shard, req)
			if err != nil {
				mu.Lock()
				failures = append(failures, fastterms.ShardFailure{
					Shard: shard,
					Index: req.Index,
					Err:   err,
				})
				mu.Unlock()
				log.Warn("shard query failed",
					"index", req.Index,
					"shard", shard,
					"error", err,
				)
				return nil
			}
			payloads[shard] = data
			return nil
		})
	}
	// Worker funcs never return an error; Wait is the completion barrier
	// required before the response is read.
	_ = g.Wait()

	mu.Lock()
	sortFailures(failures)
	successful := c.numShards - len(failures)
	failed := len(failures)
	mu.Unlock()

	resp, err := fastterms.NewTermsResponse(req.Index, c.numShards, successful, failed, failures, req.DataType)
	if err != nil {
		return nil, err
	}
	for shard, data := range payloads {
		if data == nil {
			continue
		}
		if err := resp.AddData(shard, data); err != nil {
			return nil, err
		}
	}

	log.Info("fast terms broadcast complete",
		"index", req.Index,
		"field", req.Field,
		"data_type", req.DataType.String(),
		"shards", c.numShards,
		"failed", failed,
		"doc_count", resp.DocCount(),
		"duration", time.Since(start),
	)
	return resp, nil
}

// sortFailures orders failures by shard ordinal so the "first" failure that
// CheckShardFailures escalates is deterministic.
func sortFailures(failures []fastterms.ShardFailure) {
	sort.Slice(failures, func(i, j int) bool { return failures[i].Shard < failures[j].Shard })
}
