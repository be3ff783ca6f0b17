package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitorsync/internal/broadcast"
	"monitorsync/internal/events"
	"monitorsync/internal/exchange"
	"monitorsync/internal/semaphore"
	"monitorsync/internal/worker"
)

func newTargets() Targets {
	return Targets{
		Semaphore:   semaphore.New(2),
		Exchange:    exchange.New[int](),
		Pool:        worker.NewPool(2),
		Broadcaster: broadcast.New[string](),
	}
}

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BatchSize != 3 {
		t.Errorf("expected BatchSize 3, got %d", config.BatchSize)
	}
	if config.SemaphoreClients != 4 {
		t.Errorf("expected SemaphoreClients 4, got %d", config.SemaphoreClients)
	}
}

func TestNewClient(t *testing.T) {
	client := New(newTargets(), DefaultConfig())

	if client.IsRunning() {
		t.Error("expected client to not be running initially")
	}
	for _, source := range Sources() {
		require.NotNil(t, client.Metrics(source), source)
	}
}

func TestClientStartStop(t *testing.T) {
	targets := newTargets()
	client := New(targets, DefaultConfig())

	client.Start(context.Background())
	if !client.IsRunning() {
		t.Error("expected client to be running after Start")
	}

	time.Sleep(300 * time.Millisecond)

	client.Stop()
	if client.IsRunning() {
		t.Error("expected client to not be running after Stop")
	}

	for _, source := range Sources() {
		assert.NotZero(t, client.Metrics(source).Total(), "expected calls recorded for %s", source)
	}

	counters := client.Counters()
	assert.NotZero(t, counters.ItemsSent)
	assert.Equal(t, counters.ItemsSent, counters.ItemsReceived, "every claimed item reaches exactly one consumer")
	assert.NotZero(t, counters.JobsRun)
	assert.NotZero(t, counters.Broadcasts)

	// 全ての許可が返却されている
	assert.Equal(t, targets.Semaphore.Capacity(), targets.Semaphore.Available())

	require.NoError(t, targets.Pool.ShutdownAndWait(context.Background()))
}

func TestClientLoopsEndOnRejection(t *testing.T) {
	targets := Targets{
		Semaphore: semaphore.New(1),
		Exchange:  exchange.New[int](),
		Pool:      worker.NewPool(1),
	}
	client := New(targets, DefaultConfig())
	client.Start(context.Background())

	time.Sleep(50 * time.Millisecond)

	targets.Semaphore.Shutdown()
	targets.Exchange.Close()
	require.NoError(t, targets.Pool.ShutdownAndWait(context.Background()))

	// 全ループが拒否で終了していれば、クライアントのワーカーは全て待機状態になる
	assert.Eventually(t, func() bool {
		return client.pool.IdleWorkers() == client.pool.NumWorkers()
	}, time.Second, 5*time.Millisecond)

	assert.NotZero(t, client.Metrics(SourceSemaphore).Rejected()+client.Metrics(SourcePool).Rejected(),
		"expected at least one loop to observe a rejection")

	client.Stop()
	ok, err := targets.Semaphore.AwaitTermination(context.Background(), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientPublishesEvents(t *testing.T) {
	// 既定のバッファのまま読まずに溜め、バッチイベントが他のイベントを押し出さないことを確かめる
	bus := events.NewBus()
	ch := bus.Subscribe()

	config := DefaultConfig()
	config.SemaphoreClients = 0
	config.Submitters = 0
	config.EventInterval = 20 * time.Millisecond

	client := New(Targets{Exchange: exchange.New[int](), Broadcaster: broadcast.New[string]()}, config)
	client.SetEventBus(bus)
	client.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	client.Stop()

	var (
		batchEvents, broadcastEvents int
		batches, items               int
	)
	for len(ch) > 0 {
		ev := <-ch
		switch ev.Type {
		case events.EventBatchDelivered:
			batchEvents++
			batches += ev.Data.Batches
			items += ev.Data.Items
		case events.EventBroadcastSent:
			broadcastEvents++
		}
	}

	assert.NotZero(t, batchEvents, "expected batch delivered events")
	assert.NotZero(t, broadcastEvents, "expected broadcast sent events")
	assert.Less(t, batchEvents+broadcastEvents, 100, "events should fit the default buffer")
	assert.NotZero(t, batches)
	assert.Equal(t, batches*config.BatchSize, items)
}

func TestClientBatchEventsAreAggregated(t *testing.T) {
	bus := events.NewBusWithBuffer(1 << 12)
	ch := bus.Subscribe()

	config := DefaultConfig()
	config.SemaphoreClients = 0
	config.Submitters = 0
	config.Receivers = 0
	config.EventInterval = time.Hour

	client := New(Targets{Exchange: exchange.New[int]()}, config)
	client.SetEventBus(bus)
	client.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	client.Stop()

	// 間隔が来る前に停止したので、Stop 時の一回だけ発行される
	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, events.EventBatchDelivered, ev.Type)
	assert.NotZero(t, ev.Data.Batches)
	assert.Equal(t, ev.Data.Batches*config.BatchSize, ev.Data.Items)
}

func TestClientTargets(t *testing.T) {
	config := DefaultConfig()
	client := New(Targets{Broadcaster: broadcast.New[string]()}, config)
	client.Start(context.Background())
	defer client.Stop()

	targets := client.Targets()
	assert.Len(t, targets, config.Receivers, "the sender makes no blocking calls and is not a target")
	assert.Len(t, client.Participants(), config.Receivers+1)
}

func TestParticipantCancel(t *testing.T) {
	p := newParticipant("p")
	assert.False(t, p.Cancel(), "no call in flight")

	started := make(chan struct{})
	finished := make(chan error, 1)
	go p.call(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
	})

	<-started
	assert.True(t, p.Cancel())

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("call was not cancelled")
	}

	assert.Eventually(t, func() bool { return !p.Cancel() }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), p.Calls())
}

func TestParticipantDelayConsumedOnce(t *testing.T) {
	p := newParticipant("p")
	p.SetDelay(10 * time.Millisecond)
	p.SetDelay(5 * time.Millisecond)

	assert.Equal(t, 15*time.Millisecond, p.takeDelay())
	assert.Equal(t, time.Duration(0), p.takeDelay())
}

func TestParticipantHoldStopsOnContext(t *testing.T) {
	p := newParticipant("p")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	p.hold(ctx, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}
