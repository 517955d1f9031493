package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	deliveredTotalKey = "stats:delivered_total"
	failedTotalKey    = "stats:failed_total"
)

// LiveStats holds the Fan-Out Engine's rolling delivered/failed counters, incremented on every fan-out completion and
// read by the Admin API's status endpoint and the Live Push Hub's periodic broadcast. These are a live supplement to
// the Store's per-message counts, not a replacement: Store remains authoritative for historical totals.
type LiveStats struct {
	client *redis.Client
}

// NewLiveStats creates a new Valkey-backed live counter set.
func NewLiveStats(client *redis.Client) *LiveStats {
	return &LiveStats{client: client}
}

// RecordFanout atomically adds delivered and failed deliveries to the rolling totals.
func (s *LiveStats) RecordFanout(ctx context.Context, delivered, failed int64) error {
	pipe := s.client.TxPipeline()
	if delivered > 0 {
		pipe.IncrBy(ctx, deliveredTotalKey, delivered)
	}
	if failed > 0 {
		pipe.IncrBy(ctx, failedTotalKey, failed)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record fanout stats: %w", err)
	}
	return nil
}

// Totals is a snapshot of the rolling counters.
type Totals struct {
	DeliveredTotal int64
	FailedTotal    int64
}

// Read returns the current rolling totals. Unset counters read as zero.
func (s *LiveStats) Read(ctx context.Context) (*Totals, error) {
	pipe := s.client.Pipeline()
	delivered := pipe.Get(ctx, deliveredTotalKey)
	failed := pipe.Get(ctx, failedTotalKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read fanout stats: %w", err)
	}

	d, err := delivered.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("parse delivered total: %w", err)
	}
	f, err := failed.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("parse failed total: %w", err)
	}

	return &Totals{DeliveredTotal: d, FailedTotal: f}, nil
}
