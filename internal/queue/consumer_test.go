package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu    sync.Mutex
	seen  []string
	fails int
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, msg.ID)
	if h.fails > 0 {
		h.fails--
		return errors.New("smtp unavailable")
	}
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func newConsumer(t *testing.T, handler MessageHandler, claimInterval time.Duration) (*Consumer, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewConsumer(client, "mail:outbound", "mail-workers", "worker-1", claimInterval, zerolog.Nop(), handler)
	c.block = 50 * time.Millisecond
	return c, client
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	info, err := client.XPending(context.Background(), "mail:outbound", "mail-workers").Result()
	require.NoError(t, err)
	return info.Count
}

func TestConsumer_EnsureGroupIsIdempotent(t *testing.T) {
	c, _ := newConsumer(t, &recordingHandler{}, time.Second)
	ctx := context.Background()

	require.NoError(t, c.EnsureGroup(ctx))
	require.NoError(t, c.EnsureGroup(ctx))
}

func TestConsumer_ReadAcksHandledMessages(t *testing.T) {
	handler := &recordingHandler{}
	c, client := newConsumer(t, handler, time.Second)
	ctx := context.Background()
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "mail:outbound", Values: map[string]any{"payload": "{}"}}).Err())
	require.NoError(t, c.read(ctx))

	assert.Equal(t, 1, handler.count())
	assert.Zero(t, pendingCount(t, client))

	require.NoError(t, c.read(ctx))
	assert.Equal(t, 1, handler.count())
}

func TestConsumer_FailedMessageIsClaimedAgain(t *testing.T) {
	handler := &recordingHandler{fails: 1}
	c, client := newConsumer(t, handler, 10*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, c.EnsureGroup(ctx))

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: "mail:outbound", Values: map[string]any{"payload": "{}"}}).Err())
	require.NoError(t, c.read(ctx))
	assert.Equal(t, int64(1), pendingCount(t, client))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.claimStalled(ctx))

	assert.Equal(t, 2, handler.count())
	assert.Zero(t, pendingCount(t, client))
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	c, _ := newConsumer(t, &recordingHandler{}, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
