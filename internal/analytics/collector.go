// Package analytics publishes per-query fast-terms events to Kafka for
// offline analysis. Tracking is fire-and-forget: a full buffer drops the
// event rather than stalling the query path.
package analytics

import (
	"context"
	"log/slog"

	"github.com/jmfrees/zombodb/pkg/kafka"
	"github.com/jmfrees/zombodb/pkg/logger"
)

// QueryEvent describes one completed fast-terms broadcast.
type QueryEvent struct {
	Index        string `json:"index"`
	Field        string `json:"field"`
	DataType     string `json:"data_type"`
	Status       string `json:"status"`
	DocCount     int    `json:"doc_count"`
	FailedShards int    `json:"failed_shards"`
	DurationMs   int64  `json:"duration_ms"`
	CacheHit     bool   `json:"cache_hit"`
}

type publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events and publishes them asynchronously.
type Collector struct {
	producer publisher
	eventCh  chan QueryEvent
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan QueryEvent, bufferSize),
		logger:   logger.WithComponent("analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. The loop drains remaining buffered
// events when ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event, dropping it if the buffer is full.
func (c *Collector) Track(event QueryEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the loop to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event QueryEvent) {
	err := c.producer.Publish(ctx, kafka.Event{
		Key:   event.Index,
		Value: event,
	})
	if err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}
