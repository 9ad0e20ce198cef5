package persist

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/indexlegal/honoris/internal/model"
)

// ErrQueueFull is returned by Push when the queue cannot take another entry.
var ErrQueueFull = errors.New("persist: queue full")

// Queue buffers entries between request handlers and the write worker.
type Queue interface {
	// Push enqueues without blocking on the consumer.
	Push(ctx context.Context, entry model.Entry) error
	// Pop waits up to wait for the first entry, then takes up to max entries.
	// An empty result with a nil error means the wait elapsed.
	Pop(ctx context.Context, max int, wait time.Duration) ([]model.Entry, error)
	Close() error
}

// MemoryQueue is a bounded in-process queue. Entries are lost on crash.
type MemoryQueue struct {
	ch chan model.Entry
}

// NewMemoryQueue creates a queue holding at most size entries.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan model.Entry, size)}
}

func (q *MemoryQueue) Push(_ context.Context, entry model.Entry) error {
	select {
	case q.ch <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, max int, wait time.Duration) ([]model.Entry, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	var first model.Entry
	select {
	case first = <-q.ch:
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := []model.Entry{first}
	for len(out) < max {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out, nil
		}
	}
	return out, nil
}

// Len reports the number of buffered entries.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	return nil
}

// DefaultRedisKey is the list analyses are queued on.
const DefaultRedisKey = "honoris:analysis_logs"

// RedisQueue keeps pending entries in a Redis list so they survive a restart.
type RedisQueue struct {
	client *redis.Client
	key    string
	limit  int64
}

// NewRedisQueue connects to url and pings it. limit caps the list length; 0 means unbounded.
func NewRedisQueue(ctx context.Context, url string, limit int) (*RedisQueue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "persist: parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "persist: ping redis")
	}
	return &RedisQueue{client: client, key: DefaultRedisKey, limit: int64(limit)}, nil
}

func (q *RedisQueue) Push(ctx context.Context, entry model.Entry) error {
	if q.limit > 0 {
		n, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			return eris.Wrap(err, "persist: redis queue depth")
		}
		if n >= q.limit {
			return ErrQueueFull
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "persist: marshal entry")
	}
	return eris.Wrap(q.client.LPush(ctx, q.key, data).Err(), "persist: redis push")
}

func (q *RedisQueue) Pop(ctx context.Context, max int, wait time.Duration) ([]model.Entry, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrap(err, "persist: redis pop")
	}
	if len(res) < 2 {
		return nil, nil
	}

	raw := []string{res[1]}
	for len(raw) < max {
		v, err := q.client.RPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			zap.L().Warn("persist: redis pop batch", zap.Error(err))
			break
		}
		raw = append(raw, v)
	}

	out := make([]model.Entry, 0, len(raw))
	for _, r := range raw {
		var e model.Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			zap.L().Error("persist: dropping undecodable queued entry", zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Depth reports the number of queued entries.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
