package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitorsync/internal/monitor"
)

type result[T any] struct {
	msg Message[T]
	ok  bool
	err error
}

func waitAsync[T any](b *Broadcaster[T], ctx context.Context, timeout time.Duration) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		msg, ok, err := b.WaitForMessage(ctx, timeout)
		ch <- result[T]{msg, ok, err}
	}()
	return ch
}

func waitForReceivers[T any](t *testing.T, b *Broadcaster[T], n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Waiting() == n },
		time.Second, time.Millisecond, "expected %d receivers", n)
}

func await[T any](t *testing.T, ch <-chan result[T]) result[T] {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for WaitForMessage")
		return result[T]{}
	}
}

func TestSendToAllTwoReceivers(t *testing.T) {
	b := New[int]()
	ctx := context.Background()

	r1 := waitAsync(b, ctx, 5*time.Second)
	r2 := waitAsync(b, ctx, 5*time.Second)
	waitForReceivers(t, b, 2)

	ids := b.SendToAll(42)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	var receivers []monitor.ID
	for _, ch := range []<-chan result[int]{r1, r2} {
		r := await(t, ch)
		require.NoError(t, r.err)
		assert.True(t, r.ok)
		assert.Equal(t, 42, r.msg.Value)
		assert.Contains(t, ids, r.msg.Receiver)
		receivers = append(receivers, r.msg.Receiver)
	}
	assert.ElementsMatch(t, ids, receivers)
	assert.Equal(t, 0, b.Waiting())
}

func TestSendToAllReturnsReceiversInRegistrationOrder(t *testing.T) {
	b := New[string]()
	ctx := context.Background()

	// 前の受信者の登録を待ってから次を登録する
	var pending []<-chan result[string]
	for i := range 4 {
		pending = append(pending, waitAsync(b, ctx, 5*time.Second))
		waitForReceivers(t, b, i+1)
	}

	ids := b.SendToAll("hello")
	require.Len(t, ids, len(pending))

	for i, ch := range pending {
		r := await(t, ch)
		require.NoError(t, r.err)
		assert.Equal(t, "hello", r.msg.Value)
		assert.Equal(t, ids[i], r.msg.Receiver, "receiver %d out of order", i)
	}
}

func TestSendToAllWithoutReceivers(t *testing.T) {
	b := New[string]()
	assert.Empty(t, b.SendToAll("nobody"))
}

func TestLateReceiverMissesBroadcast(t *testing.T) {
	b := New[int]()
	ctx := context.Background()

	b.SendToAll(1)

	msg, ok, err := b.WaitForMessage(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, msg.Value)
	assert.False(t, msg.Receiver.IsZero())
	assert.Equal(t, 0, b.Waiting())
}

func TestZeroValueMessage(t *testing.T) {
	b := New[int]()
	r := waitAsync(b, context.Background(), 5*time.Second)
	waitForReceivers(t, b, 1)

	b.SendToAll(0)

	got := await(t, r)
	require.NoError(t, got.err)
	assert.True(t, got.ok)
	assert.Equal(t, 0, got.msg.Value)
}

func TestEachBroadcastIsASnapshot(t *testing.T) {
	b := New[string]()
	ctx := context.Background()

	first := waitAsync(b, ctx, 5*time.Second)
	waitForReceivers(t, b, 1)
	require.Len(t, b.SendToAll("one"), 1)

	second := waitAsync(b, ctx, 5*time.Second)
	waitForReceivers(t, b, 1)
	require.Len(t, b.SendToAll("two"), 1)

	assert.Equal(t, "one", await(t, first).msg.Value)
	assert.Equal(t, "two", await(t, second).msg.Value)
}

func TestWaitForMessageCancelled(t *testing.T) {
	b := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	r := waitAsync(b, ctx, 5*time.Second)
	waitForReceivers(t, b, 1)
	cancel()

	got := await(t, r)
	assert.ErrorIs(t, got.err, monitor.ErrCancelled)
	assert.False(t, got.ok)
	assert.Equal(t, 0, b.Waiting())
	assert.Empty(t, b.SendToAll(1))
}

func TestDeliveredBeforeCancel(t *testing.T) {
	b := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	r := waitAsync(b, ctx, 5*time.Second)
	waitForReceivers(t, b, 1)

	require.Len(t, b.SendToAll(7), 1)
	cancel()

	got := await(t, r)
	require.NoError(t, got.err)
	assert.True(t, got.ok)
	assert.Equal(t, 7, got.msg.Value)
}

func TestTimedOutReceiverNotNotified(t *testing.T) {
	b := New[int]()
	ctx := context.Background()

	short := waitAsync(b, ctx, 50*time.Millisecond)
	long := waitAsync(b, ctx, 5*time.Second)
	waitForReceivers(t, b, 2)

	timedOut := await(t, short)
	assert.False(t, timedOut.ok)
	waitForReceivers(t, b, 1)

	ids := b.SendToAll(9)
	require.Len(t, ids, 1)
	assert.NotContains(t, ids, timedOut.msg.Receiver)

	got := await(t, long)
	assert.Equal(t, 9, got.msg.Value)
	assert.Equal(t, ids[0], got.msg.Receiver)
}
