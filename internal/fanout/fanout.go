// Package fanout implements the Fan-Out Engine: bounded-concurrency,
// per-target FIFO delivery of a formatted envelope to every other active
// subscription in a room, with retry on transient failures and
// subscription deactivation on permanent ones.
package fanout

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/platform"
)

// Target is one delivery destination: a channel in a guild subscribed to the room.
type Target struct {
	GuildID   string
	ChannelID string
}

// TargetError classifies why a delivery failed.
type TargetError struct {
	Target    Target
	Err       error
	Permanent bool // true for channel-deleted/bot-removed/forbidden; false for timeouts/5xx/rate-limit
}

func (e *TargetError) Error() string     { return e.Err.Error() }
func (e *TargetError) Unwrap() error     { return e.Err }
func (e *TargetError) IsPermanent() bool { return e.Permanent }

// permanentClassifier is implemented by any platform.Client error that already knows whether a retry could succeed
// (platform.TargetRequestError, TargetError above). errors.As is used against this interface rather than a single
// concrete type so the engine doesn't need to know which Client implementation produced the error.
type permanentClassifier interface {
	error
	IsPermanent() bool
}

// Result aggregates the outcome of fanning out one message to every target.
type Result struct {
	DeliveredCount int
	FailedCount    int
	// Deactivated lists targets whose subscription should be marked is_active=false because of a permanent failure.
	Deactivated []Target
}

// deliverJob is one enqueued delivery, carried on a target's persistent queue.
type deliverJob struct {
	ctx      context.Context
	envelope string
	result   chan engineOutcome
}

// targetQueue is the persistent, ordered job queue for a single delivery target. A single goroutine drains it, so
// jobs run strictly in the order they were enqueued across every call to Deliver, regardless of which call or
// goroutine did the enqueuing.
type targetQueue struct {
	jobs chan deliverJob
}

// Engine fans an envelope out to every target of a room. Each distinct target gets its own persistent FIFO queue and
// worker goroutine, created lazily on first use and kept for the engine's lifetime, so deliveries to one channel are
// always processed in inbound arrival order even when two overlapping Deliver calls race to enqueue onto it. Overall
// in-flight work across all targets is bounded by a semaphore sized to concurrency, so a burst of newly-seen targets
// can't flood the platform client all at once.
type Engine struct {
	client      platform.Client
	concurrency int
	maxAttempts int
	baseDelay   time.Duration
	log         zerolog.Logger

	sem chan struct{}

	mu     sync.Mutex
	queues map[Target]*targetQueue
}

// New creates a new Fan-Out Engine. concurrency bounds how many deliveries are in flight to the platform client at
// once, across every target; maxAttempts and baseDelay configure the per-target retry policy for transient failures.
func New(client platform.Client, concurrency, maxAttempts int, baseDelay time.Duration, logger zerolog.Logger) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		client:      client,
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		log:         logger,
		sem:         make(chan struct{}, concurrency),
		queues:      make(map[Target]*targetQueue),
	}
}

// queueFor returns the persistent queue for target, creating it (and its worker goroutine) on first use.
func (e *Engine) queueFor(target Target) *targetQueue {
	e.mu.Lock()
	defer e.mu.Unlock()

	if q, ok := e.queues[target]; ok {
		return q
	}

	q := &targetQueue{jobs: make(chan deliverJob, 64)}
	e.queues[target] = q
	go e.runQueue(target, q)
	return q
}

// runQueue drains q's jobs one at a time, preserving enqueue order for the lifetime of the engine.
func (e *Engine) runQueue(target Target, q *targetQueue) {
	for job := range q.jobs {
		job.result <- e.deliverOne(job.ctx, target, job.envelope)
	}
}

// Deliver enqueues envelope onto every target's persistent FIFO queue and waits for every outcome, retrying
// transient failures and classifying permanent ones for subscription deactivation. Two concurrent calls to Deliver
// that share a target are serialized with respect to each other in the order their jobs reach that target's queue.
func (e *Engine) Deliver(ctx context.Context, targets []Target, envelope string) Result {
	if len(targets) == 0 {
		return Result{}
	}

	results := make([]chan engineOutcome, len(targets))
	for i, target := range targets {
		resultCh := make(chan engineOutcome, 1)
		results[i] = resultCh

		job := deliverJob{ctx: ctx, envelope: envelope, result: resultCh}
		select {
		case e.queueFor(target).jobs <- job:
		case <-ctx.Done():
			resultCh <- engineOutcome{target: target, delivered: false}
		}
	}

	var result Result
	for _, resultCh := range results {
		o := <-resultCh
		if o.delivered {
			result.DeliveredCount++
		} else {
			result.FailedCount++
		}
		if o.deactivate {
			result.Deactivated = append(result.Deactivated, o.target)
		}
	}
	return result
}

type engineOutcome = struct {
	target     Target
	delivered  bool
	deactivate bool
}

func (e *Engine) deliverOne(ctx context.Context, target Target, envelope string) engineOutcome {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return engineOutcome{target: target, delivered: false}
		}
		_, err := e.client.Send(ctx, target.ChannelID, envelope)
		<-e.sem

		if err == nil {
			return engineOutcome{target: target, delivered: true}
		}

		var classified permanentClassifier
		permanent := errors.As(err, &classified) && classified.IsPermanent()
		lastErr = err

		if permanent {
			e.log.Warn().Err(err).Str("channel_id", target.ChannelID).Msg("permanent fan-out failure, deactivating subscription")
			return engineOutcome{target: target, delivered: false, deactivate: true}
		}

		if attempt == e.maxAttempts {
			break
		}

		delay := backoffWithJitter(e.baseDelay, attempt)
		select {
		case <-ctx.Done():
			return engineOutcome{target: target, delivered: false}
		case <-time.After(delay):
		}
	}

	e.log.Warn().Err(lastErr).Str("channel_id", target.ChannelID).Int("attempts", e.maxAttempts).
		Msg("fan-out delivery failed after retries")
	return engineOutcome{target: target, delivered: false}
}

// backoffWithJitter doubles the base delay per attempt and adds up to 50% jitter, matching the restart-backoff idiom
// used elsewhere in the relay.
func backoffWithJitter(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d + jitter
}
