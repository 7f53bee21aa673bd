package broadcast

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jmfrees/zombodb/internal/fastterms"
	pkgerrors "github.com/jmfrees/zombodb/pkg/errors"
	"github.com/jmfrees/zombodb/pkg/rpc"
)

// fakeShardClient serves canned payloads and failures per shard ordinal.
type fakeShardClient struct {
	payloads map[int]fastterms.ShardData
	errors   map[int]error
	delay    time.Duration
}

func (f *fakeShardClient) FastTerms(ctx context.Context, shard int, req TermsRequest) (fastterms.ShardData, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errors[shard]; ok {
		return nil, err
	}
	return f.payloads[shard], nil
}

func TestExecuteMergesStringShards(t *testing.T) {
	client := &fakeShardClient{
		payloads: map[int]fastterms.ShardData{
			0: fastterms.NewCompactTermSetOf("a", "b"),
			1: fastterms.NewCompactTermSetOf("b", "c"),
			2: fastterms.NewCompactTermSetOf(),
		},
	}
	c := NewCoordinator(client, 3, time.Second)
	resp, err := c.Execute(context.Background(), TermsRequest{
		Index:    "idx",
		Field:    "name",
		DataType: fastterms.DataTypeString,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := resp.Status(); got != fastterms.StatusOK {
		t.Fatalf("Status() = %v, want ok", got)
	}
	if got := resp.DocCount(); got != 3 {
		t.Fatalf("DocCount() = %d, want 3", got)
	}
	want := []string{"a", "b", "c"}
	got := resp.SortedStrings()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedStrings() = %v, want %v", got, want)
		}
	}
}

func TestExecuteRecordsPartialFailure(t *testing.T) {
	root := stderrors.New("segment unreadable")
	client := &fakeShardClient{
		payloads: map[int]fastterms.ShardData{
			0: fastterms.NewNumberArrayLookup([]int64{1, 2}),
			2: fastterms.NewNumberArrayLookup([]int64{3}),
		},
		errors: map[int]error{
			1: fmt.Errorf("querying shard: %w", root),
		},
	}
	c := NewCoordinator(client, 3, time.Second)
	resp, err := c.Execute(context.Background(), TermsRequest{
		Index:    "idx",
		Field:    "id",
		DataType: fastterms.DataTypeLong,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := resp.Status(); got != fastterms.StatusPartial {
		t.Fatalf("Status() = %v, want partial", got)
	}
	if got := resp.DocCount(); got != 3 {
		t.Fatalf("DocCount() = %d, want 3", got)
	}
	if got := resp.Summary().Failed; got != 1 {
		t.Fatalf("Failed = %d, want 1", got)
	}
	esc := resp.CheckShardFailures()
	if !stderrors.Is(esc, pkgerrors.ErrShardFailure) {
		t.Fatalf("expected ErrShardFailure, got %v", esc)
	}
	if !strings.Contains(esc.Error(), "segment unreadable") {
		t.Fatalf("escalation %q lost the root cause", esc.Error())
	}
}

func TestExecuteAllShardsFail(t *testing.T) {
	client := &fakeShardClient{
		errors: map[int]error{
			0: stderrors.New("down"),
			1: stderrors.New("down"),
		},
	}
	c := NewCoordinator(client, 2, time.Second)
	resp, err := c.Execute(context.Background(), TermsRequest{
		Index:    "idx",
		DataType: fastterms.DataTypeString,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := resp.Status(); got != fastterms.StatusFailed {
		t.Fatalf("Status() = %v, want failed", got)
	}
	if got := resp.DocCount(); got != 0 {
		t.Fatalf("DocCount() = %d, want 0", got)
	}
}

func TestExecuteFirstFailureIsLowestShard(t *testing.T) {
	client := &fakeShardClient{
		errors: map[int]error{
			3: stderrors.New("failure on shard three"),
			1: stderrors.New("failure on shard one"),
		},
		payloads: map[int]fastterms.ShardData{
			0: fastterms.NewCompactTermSetOf("a"),
			2: fastterms.NewCompactTermSetOf("b"),
		},
	}
	c := NewCoordinator(client, 4, time.Second)
	resp, err := c.Execute(context.Background(), TermsRequest{
		Index:    "idx",
		DataType: fastterms.DataTypeString,
	})
	if err != nil {
		t.Fatal(err)
	}
	failures := resp.ShardFailures()
	if len(failures) != 2 || failures[0].Shard != 1 || failures[1].Shard != 3 {
		t.Fatalf("failures not ordered by shard: %+v", failures)
	}
	if esc := resp.CheckShardFailures(); !strings.Contains(esc.Error(), "shard one") {
		t.Fatalf("escalation %q is not the first failure", esc.Error())
	}
}

func TestExecuteShardTimeout(t *testing.T) {
	client := &fakeShardClient{
		payloads: map[int]fastterms.ShardData{
			0: fastterms.NewCompactTermSetOf("fast"),
		},
		delay: 200 * time.Millisecond,
	}
	c := NewCoordinator(client, 1, 10*time.Millisecond)
	resp, err := c.Execute(context.Background(), TermsRequest{
		Index:    "idx",
		DataType: fastterms.DataTypeString,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Status(); got != fastterms.StatusFailed {
		t.Fatalf("Status() = %v, want failed after timeout", got)
	}
}

func TestRPCShardClientEndToEnd(t *testing.T) {
	server := rpc.NewServer()
	server.Register(MethodFastTerms, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params FastTermsParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		payload, err := fastterms.EncodeShardData(fastterms.NewCompactTermSetOf("alpha", "beta"))
		if err != nil {
			return nil, err
		}
		return FastTermsResult{Payload: payload}, nil
	})
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve("127.0.0.1:0") }()
	defer server.Stop()

	// wait for the listener to bind
	var addr string
	for i := 0; i < 100; i++ {
		if a := server.Addr(); a != nil {
			addr = a.String()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatalf("server never bound: %v", <-serveErr)
	}

	client := NewRPCShardClient([]string{addr})
	defer client.Close()

	data, err := client.FastTerms(context.Background(), 0, TermsRequest{
		Index:    "idx",
		Field:    "name",
		DataType: fastterms.DataTypeString,
	})
	if err != nil {
		t.Fatalf("FastTerms: %v", err)
	}
	set, ok := data.(*fastterms.CompactTermSet)
	if !ok {
		t.Fatalf("payload decoded as %T, want *CompactTermSet", data)
	}
	if !set.Contains("alpha") || !set.Contains("beta") || set.Size() != 2 {
		t.Fatalf("unexpected payload content, size %d", set.Size())
	}
}

func TestRPCShardClientUnavailable(t *testing.T) {
	// Nothing listens on the reserved port.
	client := NewRPCShardClient([]string{"127.0.0.1:1"})
	defer client.Close()

	_, err := client.FastTerms(context.Background(), 0, TermsRequest{
		Index:    "idx",
		DataType: fastterms.DataTypeString,
	})
	if !stderrors.Is(err, pkgerrors.ErrShardUnavailable) {
		t.Fatalf("expected ErrShardUnavailable, got %v", err)
	}
}

func TestRPCShardClientTimeout(t *testing.T) {
	// A listener that accepts and never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		<-done
		conn.Close()
	}()

	client := NewRPCShardClient([]string{ln.Addr().String()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FastTerms(ctx, 0, TermsRequest{
		Index:    "idx",
		DataType: fastterms.DataTypeString,
	})
	if !stderrors.Is(err, pkgerrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
