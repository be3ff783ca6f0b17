package exchange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"monitorsync/internal/monitor"
)

type sendResult struct {
	receiver monitor.ID
	ok       bool
	err      error
}

type receiveResult[T any] struct {
	batch Batch[T]
	err   error
}

func sendAsync[T any](e *Exchange[T], ctx context.Context, item T, timeout time.Duration) <-chan sendResult {
	ch := make(chan sendResult, 1)
	go func() {
		id, ok, err := e.TrySend(ctx, item, timeout)
		ch <- sendResult{id, ok, err}
	}()
	return ch
}

func receiveAsync[T any](e *Exchange[T], ctx context.Context, n int, timeout time.Duration) <-chan receiveResult[T] {
	ch := make(chan receiveResult[T], 1)
	go func() {
		b, err := e.TryReceive(ctx, n, timeout)
		ch <- receiveResult[T]{b, err}
	}()
	return ch
}

func await[R any](t *testing.T, ch <-chan R) R {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for result")
		var zero R
		return zero
	}
}

func waitForOffers[T any](t *testing.T, e *Exchange[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.PendingOffers() == n },
		time.Second, time.Millisecond, "expected %d offers", n)
}

func waitForRequests[T any](t *testing.T, e *Exchange[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool { return e.PendingRequests() == n },
		time.Second, time.Millisecond, "expected %d requests", n)
}

func TestTryReceiveInvalidSize(t *testing.T) {
	e := New[int]()

	for _, n := range []int{0, -1} {
		batch, err := e.TryReceive(context.Background(), n, time.Second)
		assert.ErrorIs(t, err, monitor.ErrInvalidArgument)
		assert.Empty(t, batch.Items)
		assert.False(t, batch.Complete())
	}
	assert.Equal(t, 0, e.PendingRequests())
}

// 一つの TryReceive(3) が待機し、3つの生産者が順に送ると、全員が消費者の ID を
// 受け取り、消費者は送信順に3つのアイテムを受け取る
func TestReceiverWaitsForThreeProducers(t *testing.T) {
	e := New[string]()
	ctx := context.Background()

	consumer := receiveAsync(e, ctx, 3, 5*time.Second)
	waitForRequests(t, e, 1)

	var producers []<-chan sendResult
	for i, item := range []string{"a", "b", "c"} {
		producers = append(producers, sendAsync(e, ctx, item, 5*time.Second))
		if i < 2 {
			waitForOffers(t, e, i+1)
		}
	}

	got := await(t, consumer)
	require.NoError(t, got.err)
	assert.Equal(t, []string{"a", "b", "c"}, got.batch.Items)
	assert.True(t, got.batch.Complete())
	assert.False(t, got.batch.Receiver.IsZero())

	for i, p := range producers {
		r := await(t, p)
		require.NoError(t, r.err, "producer %d", i)
		assert.True(t, r.ok, "producer %d", i)
		assert.Equal(t, got.batch.Receiver, r.receiver, "producer %d", i)
	}

	assert.Equal(t, 0, e.PendingOffers())
	assert.Equal(t, 0, e.PendingRequests())
}

func TestTryReceiveFastPath(t *testing.T) {
	e := New[int]()
	ctx := context.Background()

	var producers []<-chan sendResult
	for i := range 3 {
		producers = append(producers, sendAsync(e, ctx, i, 5*time.Second))
		waitForOffers(t, e, i+1)
	}

	batch, err := e.TryReceive(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, batch.Items)
	assert.True(t, batch.Complete())

	for _, p := range producers[:2] {
		r := await(t, p)
		require.NoError(t, r.err)
		assert.Equal(t, batch.Receiver, r.receiver)
	}

	// 3つ目はまだ待機中
	assert.Equal(t, 1, e.PendingOffers())
	batch, err = e.TryReceive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, batch.Items)
	assert.True(t, await(t, producers[2]).ok)
}

func TestTrySendTimeout(t *testing.T) {
	e := New[int]()

	start := time.Now()
	id, ok, err := e.TrySend(context.Background(), 1, 30*time.Millisecond)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, id.IsZero())
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, 0, e.PendingOffers())
}

func TestTrySendCancelled(t *testing.T) {
	e := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	p := sendAsync(e, ctx, 1, 5*time.Second)
	waitForOffers(t, e, 1)
	cancel()

	r := await(t, p)
	assert.ErrorIs(t, r.err, monitor.ErrCancelled)
	assert.False(t, r.ok)
	assert.Equal(t, 0, e.PendingOffers())
}

func TestTryReceiveTimeoutDrainsOffers(t *testing.T) {
	e := New[int]()
	ctx := context.Background()

	consumer := receiveAsync(e, ctx, 3, 100*time.Millisecond)
	waitForRequests(t, e, 1)

	p1 := sendAsync(e, ctx, 10, 5*time.Second)
	waitForOffers(t, e, 1)
	p2 := sendAsync(e, ctx, 20, 5*time.Second)
	waitForOffers(t, e, 2)

	got := await(t, consumer)
	require.NoError(t, got.err)
	assert.Equal(t, []int{10, 20}, got.batch.Items)
	assert.False(t, got.batch.Complete())

	for _, p := range []<-chan sendResult{p1, p2} {
		r := await(t, p)
		require.NoError(t, r.err)
		assert.True(t, r.ok)
		assert.Equal(t, got.batch.Receiver, r.receiver)
	}
	assert.Equal(t, 0, e.PendingOffers())
	assert.Equal(t, 0, e.PendingRequests())
}

func TestTryReceiveTimeoutEmpty(t *testing.T) {
	e := New[int]()

	batch, err := e.TryReceive(context.Background(), 2, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, batch.Items)
	assert.False(t, batch.Complete())
	assert.Equal(t, 0, e.PendingRequests())
}

func TestTryReceiveCancelledDrainsOffers(t *testing.T) {
	e := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	consumer := receiveAsync(e, ctx, 3, 5*time.Second)
	waitForRequests(t, e, 1)
	p := sendAsync(e, context.Background(), 7, 5*time.Second)
	waitForOffers(t, e, 1)

	cancel()

	got := await(t, consumer)
	assert.ErrorIs(t, got.err, monitor.ErrCancelled)
	assert.Equal(t, []int{7}, got.batch.Items)

	r := await(t, p)
	require.NoError(t, r.err)
	assert.True(t, r.ok)
	assert.Equal(t, got.batch.Receiver, r.receiver)
}

// 先頭でない要求がタイムアウトしても、先頭の要求のための申し出は奪わない
func TestNonHeadWithdrawKeepsOffers(t *testing.T) {
	e := New[int]()
	ctx := context.Background()

	first := receiveAsync(e, ctx, 3, 5*time.Second)
	waitForRequests(t, e, 1)
	second := receiveAsync(e, ctx, 5, 50*time.Millisecond)
	waitForRequests(t, e, 2)

	p1 := sendAsync(e, ctx, 1, 5*time.Second)
	waitForOffers(t, e, 1)

	got := await(t, second)
	require.NoError(t, got.err)
	assert.Empty(t, got.batch.Items)
	assert.Equal(t, 1, e.PendingOffers())

	p2 := sendAsync(e, ctx, 2, 5*time.Second)
	waitForOffers(t, e, 2)
	id, ok, err := e.TrySend(ctx, 3, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	r := await(t, first)
	require.NoError(t, r.err)
	assert.Equal(t, []int{1, 2, 3}, r.batch.Items)
	assert.Equal(t, r.batch.Receiver, id)
	assert.True(t, await(t, p1).ok)
	assert.True(t, await(t, p2).ok)
}

func TestConsumersServedFIFO(t *testing.T) {
	e := New[int]()
	ctx := context.Background()

	a := receiveAsync(e, ctx, 2, 5*time.Second)
	waitForRequests(t, e, 1)
	b := receiveAsync(e, ctx, 1, 5*time.Second)
	waitForRequests(t, e, 2)

	p := sendAsync(e, ctx, 1, 5*time.Second)
	waitForOffers(t, e, 1)

	idA, ok, err := e.TrySend(ctx, 2, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ra := await(t, a)
	assert.Equal(t, []int{1, 2}, ra.batch.Items)
	assert.Equal(t, ra.batch.Receiver, idA)
	assert.Equal(t, idA, await(t, p).receiver)

	idB, ok, err := e.TrySend(ctx, 3, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	rb := await(t, b)
	assert.Equal(t, []int{3}, rb.batch.Items)
	assert.Equal(t, rb.batch.Receiver, idB)
	assert.NotEqual(t, idA, idB)
}

// 待機中の要求がある間は、後から来た TryReceive が申し出を横取りしない
func TestTryReceiveDoesNotOvertakeWaitingRequest(t *testing.T) {
	e := New[int]()
	ctx := context.Background()

	first := receiveAsync(e, ctx, 3, 5*time.Second)
	waitForRequests(t, e, 1)
	p1 := sendAsync(e, ctx, 1, 5*time.Second)
	waitForOffers(t, e, 1)

	late, err := e.TryReceive(ctx, 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, late.Items)
	assert.Equal(t, 1, e.PendingOffers())

	p2 := sendAsync(e, ctx, 2, 5*time.Second)
	waitForOffers(t, e, 2)
	_, ok, err := e.TrySend(ctx, 3, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []int{1, 2, 3}, await(t, first).batch.Items)
	assert.True(t, await(t, p1).ok)
	assert.True(t, await(t, p2).ok)
}

func TestClose(t *testing.T) {
	e := New[int]()
	ctx := context.Background()

	consumer := receiveAsync(e, ctx, 5, 5*time.Second)
	waitForRequests(t, e, 1)
	producer := sendAsync(e, ctx, 1, 5*time.Second)
	waitForOffers(t, e, 1)

	e.Close()
	e.Close()

	assert.ErrorIs(t, await(t, consumer).err, monitor.ErrRejected)
	assert.ErrorIs(t, await(t, producer).err, monitor.ErrRejected)
	assert.Equal(t, 0, e.PendingOffers())
	assert.Equal(t, 0, e.PendingRequests())

	_, _, err := e.TrySend(ctx, 2, time.Second)
	assert.ErrorIs(t, err, monitor.ErrRejected)
	_, err = e.TryReceive(ctx, 1, time.Second)
	assert.ErrorIs(t, err, monitor.ErrRejected)
}

func TestBatchExactness(t *testing.T) {
	const (
		batchSize = 4
		consumers = 8
		items     = batchSize * consumers
	)
	e := New[int]()
	ctx := context.Background()

	var mu sync.Mutex
	received := make(map[int]int)

	var g errgroup.Group
	for range consumers {
		g.Go(func() error {
			batch, err := e.TryReceive(ctx, batchSize, 10*time.Second)
			if err != nil {
				return err
			}
			assert.True(t, batch.Complete())
			assert.Len(t, batch.Items, batchSize)
			mu.Lock()
			for _, it := range batch.Items {
				received[it]++
			}
			mu.Unlock()
			return nil
		})
	}
	for i := range items {
		g.Go(func() error {
			_, ok, err := e.TrySend(ctx, i, 10*time.Second)
			if err != nil {
				return err
			}
			assert.True(t, ok)
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Len(t, received, items)
	for item, count := range received {
		assert.Equal(t, 1, count, "item %d delivered more than once", item)
	}
}
