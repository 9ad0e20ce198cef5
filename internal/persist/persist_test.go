package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/model"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]model.Entry
	err     error
	block   chan struct{}
	written chan int
}

func newFakeStore() *fakeStore {
	return &fakeStore{written: make(chan int, 64)}
}

func (f *fakeStore) Append(ctx context.Context, entries ...model.Entry) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.batches = append(f.batches, append([]model.Entry(nil), entries...))
	f.mu.Unlock()
	f.written <- len(entries)
	return f.err
}

func (f *fakeStore) Recent(context.Context, int) ([]model.Entry, error) { return nil, nil }
func (f *fakeStore) Migrate(context.Context) error                      { return nil }
func (f *fakeStore) Close() error                                       { return nil }

func (f *fakeStore) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func entry(category string) model.Entry {
	return model.Entry{
		Source: model.SourceWeb,
		Analysis: model.Analysis{
			Classification: model.Classification{OriginalText: "x", Category: category},
			Evidence:       []model.EvidenceItem{},
		},
	}
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func waitWritten(t *testing.T, st *fakeStore, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return st.total() >= want }, 2*time.Second, 5*time.Millisecond)
}

func TestNoop(t *testing.T) {
	var s Sink = Noop{}
	s.Persist(context.Background(), entry("AMENAZA"))
}

func TestDispatcher_SyncWritesBeforeReturning(t *testing.T) {
	st := newFakeStore()
	d := NewDispatcher(st)
	assert.False(t, d.Async())

	d.Persist(context.Background(), entry("AMENAZA"))

	require.Equal(t, 1, st.total())
	assert.False(t, st.batches[0][0].CreatedAt.IsZero())
}

func TestDispatcher_SyncIgnoresRequestCancellation(t *testing.T) {
	st := newFakeStore()
	d := NewDispatcher(st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Persist(ctx, entry("AMENAZA"))

	assert.Equal(t, 1, st.total())
}

func TestDispatcher_StoreErrorIsLoggedNotRaised(t *testing.T) {
	logs := observeLogs(t)
	st := newFakeStore()
	st.err = errors.New("permission denied")
	d := NewDispatcher(st)

	d.Persist(context.Background(), entry("AMENAZA"))

	failures := logs.FilterMessage("persist: write failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "store_error", failures[0].ContextMap()["reason"])
	assert.Contains(t, failures[0].ContextMap()["error"], "persistence_failed")
}

func TestDispatcher_WriteTimeout(t *testing.T) {
	logs := observeLogs(t)
	st := newFakeStore()
	st.block = make(chan struct{})
	d := NewDispatcher(st, WithWriteTimeout(20*time.Millisecond))

	start := time.Now()
	d.Persist(context.Background(), entry("AMENAZA"))

	assert.Less(t, time.Since(start), time.Second)
	failures := logs.FilterMessage("persist: write failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "timeout", failures[0].ContextMap()["reason"])
}

func TestDispatcher_AsyncReturnsBeforeWrite(t *testing.T) {
	st := newFakeStore()
	st.block = make(chan struct{})
	q := NewMemoryQueue(8)
	d := NewDispatcher(st, WithQueue(q), WithBatch(4, 10*time.Millisecond), WithWriteTimeout(time.Second))
	assert.True(t, d.Async())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Persist(context.Background(), entry("AMENAZA"))
	assert.Equal(t, 0, st.total())

	close(st.block)
	waitWritten(t, st, 1)

	cancel()
	require.NoError(t, <-done)
}

func TestDispatcher_AsyncBatches(t *testing.T) {
	st := newFakeStore()
	q := NewMemoryQueue(16)
	d := NewDispatcher(st, WithQueue(q), WithBatch(10, 50*time.Millisecond))

	for i := 0; i < 5; i++ {
		d.Persist(context.Background(), entry("AMENAZA"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	waitWritten(t, st, 5)
	cancel()
	require.NoError(t, <-done)

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Len(t, st.batches, 1)
}

func TestDispatcher_QueueFullDropsAndLogs(t *testing.T) {
	logs := observeLogs(t)
	st := newFakeStore()
	d := NewDispatcher(st, WithQueue(NewMemoryQueue(1)))

	d.Persist(context.Background(), entry("AMENAZA"))
	d.Persist(context.Background(), entry("INJURIA"))

	dropped := logs.FilterMessage("persist: entry dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "INJURIA", dropped[0].ContextMap()["category"])
}

func TestDispatcher_RunFlushesOnShutdown(t *testing.T) {
	st := newFakeStore()
	q := NewMemoryQueue(16)
	d := NewDispatcher(st, WithQueue(q), WithBatch(2, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		d.Persist(context.Background(), entry("AMENAZA"))
	}

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 3, st.total())
	assert.Zero(t, q.Len())
}

func TestDispatcher_RunSyncReturnsImmediately(t *testing.T) {
	d := NewDispatcher(newFakeStore())
	assert.NoError(t, d.Run(context.Background()))
	assert.NoError(t, d.Close())
}

func TestFromConfig(t *testing.T) {
	st := newFakeStore()

	direct, err := FromConfig(context.Background(), config.Config{
		Persistence: config.PersistenceConfig{Mode: "sync", Queue: "memory"},
	}, st)
	require.NoError(t, err)
	assert.False(t, direct.Async())

	async, err := FromConfig(context.Background(), config.Config{
		Store:       config.StoreConfig{WriteTimeoutSecs: 2},
		Persistence: config.PersistenceConfig{Mode: "async", Queue: "memory", Buffer: 4, BatchSize: 3, PollMillis: 100},
	}, st)
	require.NoError(t, err)
	assert.True(t, async.Async())
	assert.Equal(t, 2*time.Second, async.writeTimeout)
	assert.Equal(t, 3, async.batchSize)
	assert.Equal(t, 100*time.Millisecond, async.poll)
}

func TestFromConfig_BadRedisURL(t *testing.T) {
	_, err := FromConfig(context.Background(), config.Config{
		Persistence: config.PersistenceConfig{Mode: "async", Queue: "redis", RedisURL: "not-a-url"},
	}, newFakeStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
