// Package queue implements the Redis-backed ingest queue carrying result
// reports from the HTTP surface to the ingestion pipeline.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/surfaceops/surface-api/internal/core"
)

const (
	readyKey    = "ingest:ready"
	inflightKey = "ingest:inflight"
	retryKey    = "ingest:retry"
	dlqKey      = "ingest:dlq"

	defaultVisibility = 2 * time.Minute
)

// Options configures a ResultQueue.
type Options struct {
	Client *redis.Client
	// Visibility is how long a dequeued message stays invisible before a
	// crashed consumer's work is handed back out. Defaults to 2m.
	Visibility time.Duration
	Logger     *slog.Logger
}

// ResultQueue coordinates the ready list, the in-flight set, the retry set,
// and the dead-letter list in Redis. Members are JSON-encoded result
// messages, so a message's attempt counter is part of its queue identity.
type ResultQueue struct {
	client     *redis.Client
	visibility time.Duration
	logger     *slog.Logger
}

// NewResultQueue creates a ResultQueue.
func NewResultQueue(opts Options) (*ResultQueue, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	visibility := opts.Visibility
	if visibility <= 0 {
		visibility = defaultVisibility
	}
	return &ResultQueue{
		client:     opts.Client,
		visibility: visibility,
		logger:     opts.Logger,
	}, nil
}

// Enqueue appends a result message to the ready list.
func (q *ResultQueue) Enqueue(ctx context.Context, msg core.ResultMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode result message: %w", err)
	}
	if err := q.client.RPush(ctx, readyKey, body).Err(); err != nil {
		return fmt.Errorf("enqueue result message: %w", err)
	}
	return nil
}

// dequeueScript atomically pops the head of the ready list and records it
// in-flight under a visibility deadline.
var dequeueScript = redis.NewScript(`
local msg = redis.call('LPOP', KEYS[1])
if msg then
  redis.call('ZADD', KEYS[2], ARGV[1], msg)
  return msg
end
return nil
`)

// Dequeue pops one message and leases it under the visibility timeout.
// Returns (nil, nil) when the queue is empty.
func (q *ResultQueue) Dequeue(ctx context.Context) (*core.ResultMessage, error) {
	deadline := time.Now().Add(q.visibility).UnixMilli()
	res, err := dequeueScript.Run(ctx, q.client, []string{readyKey, inflightKey}, deadline).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue result message: %w", err)
	}
	body, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected type from dequeue script: %T", res)
	}

	msg := &core.ResultMessage{}
	if err := json.Unmarshal([]byte(body), msg); err != nil {
		// Broken payloads go straight to the DLQ; re-reading them would
		// wedge the consumer loop.
		q.client.ZRem(ctx, inflightKey, body)
		q.client.RPush(ctx, dlqKey, body)
		return nil, fmt.Errorf("decode result message: %w", err)
	}
	return msg, nil
}

// Ack removes a processed message from in-flight tracking.
func (q *ResultQueue) Ack(ctx context.Context, msg *core.ResultMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode result message: %w", err)
	}
	if err := q.client.ZRem(ctx, inflightKey, body).Err(); err != nil {
		return fmt.Errorf("ack result message: %w", err)
	}
	return nil
}

// Retry drops the in-flight lease and schedules the message to rejoin the
// ready list after the delay, with its attempt counter incremented.
func (q *ResultQueue) Retry(ctx context.Context, msg *core.ResultMessage, delay time.Duration) error {
	current, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode result message: %w", err)
	}
	next := *msg
	next.Attempt++
	nextBody, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode result message: %w", err)
	}

	due := time.Now().Add(delay).UnixMilli()
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, current)
	pipe.ZAdd(ctx, retryKey, redis.Z{Score: float64(due), Member: nextBody})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// DeadLetter parks an exhausted message on the dead-letter list for operator
// inspection and releases its lease.
func (q *ResultQueue) DeadLetter(ctx context.Context, msg *core.ResultMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode result message: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, body)
	pipe.RPush(ctx, dlqKey, body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-letter result message: %w", err)
	}
	if q.logger != nil {
		q.logger.WarnContext(ctx, "result message dead-lettered",
			"job_id", msg.JobID, "attempt", msg.Attempt)
	}
	return nil
}

// RequeueExpired returns lapsed in-flight messages and due retry messages to
// the ready list. Called periodically by the ingest consumer so a crashed
// sibling's leases are reclaimed.
func (q *ResultQueue) RequeueExpired(ctx context.Context, now time.Time) (int64, error) {
	var moved int64
	for _, key := range []string{inflightKey, retryKey} {
		n, err := q.promoteDue(ctx, key, now)
		if err != nil {
			return moved, err
		}
		moved += n
	}
	return moved, nil
}

func (q *ResultQueue) promoteDue(ctx context.Context, key string, now time.Time) (int64, error) {
	members, err := q.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", key, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, m := range members {
		pipe.ZRem(ctx, key, m)
		pipe.RPush(ctx, readyKey, m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("promote from %s: %w", key, err)
	}
	return int64(len(members)), nil
}

// DeadLetterPeek reads up to count parked messages without removing them.
func (q *ResultQueue) DeadLetterPeek(ctx context.Context, count int64) ([]core.ResultMessage, error) {
	bodies, err := q.client.LRange(ctx, dlqKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("peek dead-letter queue: %w", err)
	}
	msgs := make([]core.ResultMessage, 0, len(bodies))
	for _, body := range bodies {
		var msg core.ResultMessage
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Depth returns the current length of the ready list.
func (q *ResultQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, readyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("ready depth: %w", err)
	}
	return n, nil
}
