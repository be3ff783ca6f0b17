package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"monitorsync/internal/broadcast"
	"monitorsync/internal/chaos"
	"monitorsync/internal/events"
	"monitorsync/internal/exchange"
	"monitorsync/internal/logger"
	"monitorsync/internal/metrics"
	"monitorsync/internal/monitor"
	"monitorsync/internal/semaphore"
	"monitorsync/internal/worker"
)

// メトリクスの記録先
const (
	SourceSemaphore       = "semaphore"
	SourceExchangeSend    = "exchange_send"
	SourceExchangeReceive = "exchange_receive"
	SourcePool            = "pool"
	SourceBroadcast       = "broadcast"
)

// Sources は全ての記録先を返す
func Sources() []string {
	return []string{SourceSemaphore, SourceExchangeSend, SourceExchangeReceive, SourcePool, SourceBroadcast}
}

// Targets は負荷をかける対象のプリミティブ。nil のものは使わない
type Targets struct {
	Semaphore   *semaphore.Semaphore
	Exchange    *exchange.Exchange[int]
	Pool        *worker.Pool
	Broadcaster *broadcast.Broadcaster[string]
}

// Config はClientの設定
type Config struct {
	SemaphoreClients int           // Acquire/Release を繰り返す参加者数
	HoldTime         time.Duration // 許可を保持する時間
	AcquireTimeout   time.Duration // Acquire のタイムアウト

	Producers       int           // TrySend を繰り返す参加者数
	Consumers       int           // TryReceive を繰り返す参加者数
	BatchSize       int           // TryReceive のバッチサイズ
	ExchangeTimeout time.Duration // TrySend/TryReceive のタイムアウト

	Submitters int           // Execute を繰り返す参加者数
	JobTime    time.Duration // ジョブの実行時間

	Receivers         int           // WaitForMessage を繰り返す参加者数
	BroadcastInterval time.Duration // SendToAll の間隔（0で送信しない）
	WaitTimeout       time.Duration // WaitForMessage のタイムアウト

	EventInterval time.Duration // バッチ配送イベントをまとめて発行する間隔
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		SemaphoreClients:  4,
		HoldTime:          10 * time.Millisecond,
		AcquireTimeout:    50 * time.Millisecond,
		Producers:         3,
		Consumers:         2,
		BatchSize:         3,
		ExchangeTimeout:   50 * time.Millisecond,
		Submitters:        3,
		JobTime:           5 * time.Millisecond,
		Receivers:         3,
		BroadcastInterval: 20 * time.Millisecond,
		WaitTimeout:       100 * time.Millisecond,
		EventInterval:     100 * time.Millisecond,
	}
}

// Client は負荷生成器
type Client struct {
	config   Config
	targets  Targets
	eventBus *events.Bus

	metrics      map[string]*metrics.Metrics
	participants []*Participant

	itemsSent     atomic.Uint64
	itemsReceived atomic.Uint64
	jobsRun       atomic.Uint64
	broadcasts    atomic.Uint64

	// 前回のイベント発行以降に揃ったバッチ
	pendingBatches atomic.Uint64
	pendingItems   atomic.Uint64

	running atomic.Bool
	mu      sync.Mutex
	pool    *worker.Pool
	cancel  context.CancelFunc
}

// New は新しいClientを作成する
func New(targets Targets, config Config) *Client {
	c := &Client{
		config:  config,
		targets: targets,
		metrics: make(map[string]*metrics.Metrics),
	}
	for _, source := range Sources() {
		c.metrics[source] = metrics.New()
	}
	return c
}

// SetEventBus はイベントバスを設定する
func (c *Client) SetEventBus(bus *events.Bus) {
	c.eventBus = bus
}

func (c *Client) publishEvent(event events.Event) {
	if c.eventBus != nil {
		c.eventBus.Publish(event)
	}
}

// loop は一つの参加者のループ
type loop struct {
	participant *Participant
	run         func(ctx context.Context, p *Participant)
}

// loops は設定とターゲットから参加者のループを組み立てる
func (c *Client) loops() []loop {
	var out []loop
	add := func(prefix string, n int, run func(ctx context.Context, p *Participant)) {
		for i := range n {
			out = append(out, loop{
				participant: newParticipant(fmt.Sprintf("%s-%d", prefix, i)),
				run:         run,
			})
		}
	}

	if c.targets.Semaphore != nil {
		add("semaphore-client", c.config.SemaphoreClients, c.semaphoreLoop)
	}
	if c.targets.Exchange != nil {
		add("exchange-producer", c.config.Producers, c.producerLoop)
		if c.config.BatchSize > 0 {
			add("exchange-consumer", c.config.Consumers, c.consumerLoop)
		}
	}
	if c.targets.Pool != nil {
		add("pool-submitter", c.config.Submitters, c.submitterLoop)
	}
	if c.targets.Broadcaster != nil {
		add("broadcast-receiver", c.config.Receivers, c.receiverLoop)
		if c.config.BroadcastInterval > 0 {
			out = append(out, loop{
				participant: newParticipant("broadcast-sender"),
				run:         c.senderLoop,
			})
		}
	}
	return out
}

// Start は負荷生成を開始する
func (c *Client) Start(ctx context.Context) {
	if c.running.Swap(true) {
		return // Already running
	}

	loops := c.loops()
	runCtx, cancel := context.WithCancel(ctx)

	participants := make([]*Participant, 0, len(loops))
	for _, l := range loops {
		participants = append(participants, l.participant)
	}

	jobs := make([]func(), 0, len(loops)+1)
	for _, l := range loops {
		jobs = append(jobs, func() { l.run(runCtx, l.participant) })
	}
	if c.eventBus != nil && c.config.EventInterval > 0 {
		jobs = append(jobs, func() { c.reportLoop(runCtx) })
	}

	// 各ループは専用ワーカーを占有する長いジョブとして動く
	pool := worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: max(len(jobs), 1),
		Name:       "client",
	})

	c.mu.Lock()
	c.pool = pool
	c.cancel = cancel
	c.participants = participants
	c.mu.Unlock()

	for _, job := range jobs {
		if err := pool.Execute(job); err != nil {
			logger.Error("client", "failed to start loop: %v", err)
		}
	}

	logger.Info("client", "Client started (participants: %d)", len(loops))
}

// Stop は負荷生成を停止し、全ループの終了を待つ
func (c *Client) Stop() {
	if !c.running.Swap(false) {
		return // Not running
	}

	c.mu.Lock()
	pool, cancel := c.pool, c.cancel
	c.mu.Unlock()

	cancel()
	if err := pool.ShutdownAndWait(context.Background()); err != nil {
		logger.Error("client", "Client stop: %v", err)
	}
	if err := pool.Err(); err != nil {
		logger.Error("client", "participant loop failed: %v", err)
	}
	c.flushBatches()

	logger.Info("client", "Client stopped")
}

// Targets は chaos.TargetSource の実装。ブロッキング呼び出しを行う参加者を返す
func (c *Client) Targets() []chaos.Target {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make([]chaos.Target, 0, len(c.participants))
	for _, p := range c.participants {
		if p.ID() == "broadcast-sender" {
			continue
		}
		targets = append(targets, p)
	}
	return targets
}

// Participants は参加者を名前順で返す
func (c *Client) Participants() []*Participant {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := append([]*Participant(nil), c.participants...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Metrics は記録先ごとのメトリクスを返す
func (c *Client) Metrics(source string) *metrics.Metrics {
	return c.metrics[source]
}

// Snapshots は全記録先のスナップショットを返す
func (c *Client) Snapshots() map[string]metrics.Snapshot {
	out := make(map[string]metrics.Snapshot, len(c.metrics))
	for source, m := range c.metrics {
		out[source] = m.Snapshot()
	}
	return out
}

// Counters は負荷生成中に数えた値
type Counters struct {
	ItemsSent     uint64 `json:"items_sent"`
	ItemsReceived uint64 `json:"items_received"`
	JobsRun       uint64 `json:"jobs_run"`
	Broadcasts    uint64 `json:"broadcasts"`
}

// Counters は現在のカウンタを返す
func (c *Client) Counters() Counters {
	return Counters{
		ItemsSent:     c.itemsSent.Load(),
		ItemsReceived: c.itemsReceived.Load(),
		JobsRun:       c.jobsRun.Load(),
		Broadcasts:    c.broadcasts.Load(),
	}
}

// IsRunning は実行中かどうかを返す
func (c *Client) IsRunning() bool {
	return c.running.Load()
}

// record は結果を記録し、ループを続けるかを返す
func (c *Client) record(source string, start time.Time, ok bool, err error) bool {
	outcome := metrics.Classify(ok, err)
	c.metrics[source].Record(outcome, time.Since(start))
	return outcome != metrics.OutcomeRejected && outcome != metrics.OutcomeFailed
}

func (c *Client) semaphoreLoop(ctx context.Context, p *Participant) {
	sem := c.targets.Semaphore
	for ctx.Err() == nil {
		var (
			ok  bool
			err error
		)
		start := time.Now()
		p.call(ctx, func(callCtx context.Context) {
			ok, err = sem.Acquire(callCtx, c.config.AcquireTimeout)
		})
		if !c.record(SourceSemaphore, start, ok, err) {
			return
		}
		if ok {
			p.hold(ctx, c.config.HoldTime)
			sem.Release()
		}
	}
}

func (c *Client) producerLoop(ctx context.Context, p *Participant) {
	ex := c.targets.Exchange
	for seq := 0; ctx.Err() == nil; seq++ {
		var (
			ok  bool
			err error
		)
		start := time.Now()
		p.call(ctx, func(callCtx context.Context) {
			_, ok, err = ex.TrySend(callCtx, seq, c.config.ExchangeTimeout)
		})
		if ok {
			c.itemsSent.Add(1)
		}
		if !c.record(SourceExchangeSend, start, ok, err) {
			return
		}
		p.hold(ctx, 0)
	}
}

func (c *Client) consumerLoop(ctx context.Context, p *Participant) {
	ex := c.targets.Exchange
	for ctx.Err() == nil {
		var (
			batch exchange.Batch[int]
			err   error
		)
		start := time.Now()
		p.call(ctx, func(callCtx context.Context) {
			batch, err = ex.TryReceive(callCtx, c.config.BatchSize, c.config.ExchangeTimeout)
		})
		c.itemsReceived.Add(uint64(len(batch.Items)))
		if batch.Complete() {
			c.pendingBatches.Add(1)
			c.pendingItems.Add(uint64(len(batch.Items)))
		}
		if !c.record(SourceExchangeReceive, start, batch.Complete(), err) {
			return
		}
		p.hold(ctx, 0)
	}
}

func (c *Client) submitterLoop(ctx context.Context, p *Participant) {
	pool := c.targets.Pool
	for ctx.Err() == nil {
		done := make(chan struct{})
		jobTime := c.config.JobTime + p.takeDelay()
		start := time.Now()

		err := pool.Execute(func() {
			defer close(done)
			time.Sleep(jobTime)
			c.jobsRun.Add(1)
		})
		if err != nil {
			c.record(SourcePool, start, false, err)
			return
		}

		// 自分のジョブが終わるまで次を投入しない
		var waitErr error
		p.call(ctx, func(callCtx context.Context) {
			select {
			case <-done:
			case <-callCtx.Done():
				waitErr = monitor.Cancelled(callCtx.Err())
			}
		})
		c.record(SourcePool, start, waitErr == nil, waitErr)
	}
}

func (c *Client) receiverLoop(ctx context.Context, p *Participant) {
	b := c.targets.Broadcaster
	for ctx.Err() == nil {
		var (
			ok  bool
			err error
		)
		start := time.Now()
		p.call(ctx, func(callCtx context.Context) {
			_, ok, err = b.WaitForMessage(callCtx, c.config.WaitTimeout)
		})
		if !c.record(SourceBroadcast, start, ok, err) {
			return
		}
		p.hold(ctx, 0)
	}
}

func (c *Client) senderLoop(ctx context.Context, _ *Participant) {
	ticker := time.NewTicker(c.config.BroadcastInterval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		delivered := c.targets.Broadcaster.SendToAll(fmt.Sprintf("tick-%d", seq))
		c.broadcasts.Add(1)
		if len(delivered) > 0 {
			c.publishEvent(events.NewBroadcastSentEvent("broadcast", len(delivered)))
		}
	}
}

// reportLoop は揃ったバッチを EventInterval ごとに一つのイベントにまとめて発行する
func (c *Client) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.EventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flushBatches()
		}
	}
}

// flushBatches は未発行のバッチがあればイベントを一つ発行する
func (c *Client) flushBatches() {
	batches := c.pendingBatches.Swap(0)
	items := c.pendingItems.Swap(0)
	if batches == 0 {
		return
	}
	c.publishEvent(events.NewBatchDeliveredEvent("exchange", int(batches), int(items)))
}
