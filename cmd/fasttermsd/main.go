package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmfrees/zombodb/internal/analytics"
	"github.com/jmfrees/zombodb/internal/bridge"
	"github.com/jmfrees/zombodb/internal/broadcast"
	"github.com/jmfrees/zombodb/internal/fastterms"
	"github.com/jmfrees/zombodb/internal/termcache"
	"github.com/jmfrees/zombodb/pkg/config"
	"github.com/jmfrees/zombodb/pkg/health"
	"github.com/jmfrees/zombodb/pkg/kafka"
	"github.com/jmfrees/zombodb/pkg/logger"
	"github.com/jmfrees/zombodb/pkg/metrics"
	"github.com/jmfrees/zombodb/pkg/postgres"
	pkgredis "github.com/jmfrees/zombodb/pkg/redis"
	"github.com/jmfrees/zombodb/pkg/rpc"
)

// MethodBridgeFastTerms is the RPC method the Postgres extension calls to
// run a merged fast-terms query across all shards. MethodBridgeMaterialize
// additionally bulk-loads the result into a Postgres temp table.
const (
	MethodBridgeFastTerms   = "bridge.fast_terms"
	MethodBridgeMaterialize = "bridge.materialize"
)

// newQueryID mints the correlation id attached to each query's context so
// log lines from the coordinator, cache, and bridge line up.
func newQueryID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

type materializeResult struct {
	Rows     int64  `json:"rows"`
	DocCount int    `json:"doc_count"`
	Status   string `json:"status"`
}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rpcAddr := flag.String("rpc-addr", ":9600", "bridge RPC listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting fast-terms bridge",
		"shards", len(cfg.Broadcast.ShardAddrs),
		"rpc_addr", *rpcAddr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics shutdown error", "error", err)
			}
		}()
	}

	shardClient := broadcast.NewRPCShardClient(cfg.Broadcast.ShardAddrs)
	defer shardClient.Close()
	coordinator := broadcast.NewCoordinator(shardClient, shardClient.NumShards(), cfg.Broadcast.TimeoutPerShard)

	var cache *termcache.Cache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, result caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cache = termcache.New(redisClient, cfg.Redis)
		slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var pgClient *postgres.Client
	pgClient, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, bridge health degraded", "error", err)
	} else {
		defer pgClient.Close()
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.QueryEvents)

	execute := func(ctx context.Context, req broadcast.TermsRequest) (*fastterms.TermsResponse, bool, error) {
		if cache == nil {
			resp, err := coordinator.Execute(ctx, req)
			return resp, false, err
		}
		before := cache.Hits()
		resp, err := cache.Fetch(ctx, req, func(ctx context.Context) (*fastterms.TermsResponse, error) {
			return coordinator.Execute(ctx, req)
		})
		if err != nil {
			return nil, false, err
		}
		hit := cache.Hits() > before
		if hit {
			m.CacheHitsTotal.Inc()
		} else {
			m.CacheMissesTotal.Inc()
		}
		return resp, hit, nil
	}

	server := rpc.NewServer()
	server.Register(MethodBridgeFastTerms, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params broadcast.FastTermsParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("parsing params: %w", err)
		}
		req := broadcast.TermsRequest{
			Index:    params.Index,
			Field:    params.Field,
			Query:    params.Query,
			DataType: fastterms.DataType(params.DataType),
		}
		start := time.Now()
		ctx = logger.WithQueryID(ctx, newQueryID())
		resp, cacheHit, err := execute(ctx, req)
		if err != nil {
			return nil, err
		}

		m.QueriesTotal.WithLabelValues(req.Index, req.DataType.String(), resp.Status().String()).Inc()
		m.QueryDuration.WithLabelValues(req.Index, req.DataType.String()).Observe(time.Since(start).Seconds())
		m.QueryDocCount.Observe(float64(resp.DocCount()))
		m.ResponseByteSize.Observe(float64(resp.EstimateByteSize()))
		if failed := resp.Summary().Failed; failed > 0 {
			m.ShardFailuresTotal.WithLabelValues(req.Index).Add(float64(failed))
		}
		collector.Track(analytics.QueryEvent{
			Index:        req.Index,
			Field:        req.Field,
			DataType:     req.DataType.String(),
			Status:       resp.Status().String(),
			DocCount:     resp.DocCount(),
			FailedShards: resp.Summary().Failed,
			DurationMs:   time.Since(start).Milliseconds(),
			CacheHit:     cacheHit,
		})

		var buf bytes.Buffer
		if err := resp.EncodeTo(&buf); err != nil {
			return nil, err
		}
		return broadcast.FastTermsResult{Payload: buf.Bytes()}, nil
	})

	if pgClient != nil {
		pgBridge := bridge.New(pgClient)
		server.Register(MethodBridgeMaterialize, func(ctx context.Context, raw json.RawMessage) (any, error) {
			var params broadcast.FastTermsParams
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("parsing params: %w", err)
			}
			req := broadcast.TermsRequest{
				Index:    params.Index,
				Field:    params.Field,
				Query:    params.Query,
				DataType: fastterms.DataType(params.DataType),
			}
			ctx = logger.WithQueryID(ctx, newQueryID())
			resp, _, err := execute(ctx, req)
			if err != nil {
				return nil, err
			}
			rows, err := pgBridge.Materialize(ctx, resp, nil)
			if err != nil {
				return nil, err
			}
			m.RowsMaterialized.Add(float64(rows))
			return materializeResult{
				Rows:     rows,
				DocCount: resp.DocCount(),
				Status:   resp.Status().String(),
			}, nil
		})
	}

	checker := health.NewChecker()
	checker.Register("shards", func(ctx context.Context) health.ComponentHealth {
		if shardClient.NumShards() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d shards configured", shardClient.NumShards())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no shards configured"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("health server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("health server shutdown error", "error", err)
		}
		server.Stop()
	}()

	if err := server.Serve(*rpcAddr); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}
	slog.Info("fast-terms bridge stopped")
}
