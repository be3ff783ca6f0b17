package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"monitorsync/internal/broadcast"
	"monitorsync/internal/chaos"
	"monitorsync/internal/client"
	"monitorsync/internal/events"
	"monitorsync/internal/exchange"
	"monitorsync/internal/logger"
	"monitorsync/internal/metrics"
	"monitorsync/internal/semaphore"
	"monitorsync/internal/worker"
)

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Duration    time.Duration // 実行時間

	// セマフォ設定
	SemaphoreUnits   int           // 許可数
	SemaphoreClients int           // 参加者数
	HoldTime         time.Duration // 許可の保持時間
	AcquireTimeout   time.Duration // Acquire のタイムアウト

	// メッセージ交換設定
	Producers       int           // 生産者数
	Consumers       int           // 消費者数
	BatchSize       int           // バッチサイズ
	ExchangeTimeout time.Duration // TrySend/TryReceive のタイムアウト

	// ワーカープール設定
	PoolWorkers int           // ワーカー数
	Submitters  int           // ジョブ投入者数
	JobTime     time.Duration // ジョブの実行時間

	// ブロードキャスト設定
	Receivers         int           // 受信者数
	BroadcastInterval time.Duration // 送信間隔
	WaitTimeout       time.Duration // WaitForMessage のタイムアウト

	// カオス設定
	EnableChaos   bool               // カオス注入を有効化
	ChaosInterval time.Duration      // 攻撃間隔
	ChaosTargets  int                // 同時攻撃対象数
	AttackTypes   []chaos.AttackType // 有効な攻撃タイプ
	ChaosDelay    time.Duration      // Delay攻撃の遅延時間

	// 終了待ちのタイムアウト
	TerminationTimeout time.Duration
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:               "default",
		Description:        "Default scenario",
		Duration:           10 * time.Second,
		SemaphoreUnits:     2,
		SemaphoreClients:   4,
		HoldTime:           10 * time.Millisecond,
		AcquireTimeout:     50 * time.Millisecond,
		Producers:          3,
		Consumers:          2,
		BatchSize:          3,
		ExchangeTimeout:    50 * time.Millisecond,
		PoolWorkers:        2,
		Submitters:         3,
		JobTime:            5 * time.Millisecond,
		Receivers:          3,
		BroadcastInterval:  20 * time.Millisecond,
		WaitTimeout:        100 * time.Millisecond,
		EnableChaos:        true,
		ChaosInterval:      500 * time.Millisecond,
		ChaosTargets:       1,
		AttackTypes:        []chaos.AttackType{chaos.AttackCancel, chaos.AttackDelay},
		ChaosDelay:         50 * time.Millisecond,
		TerminationTimeout: 5 * time.Second,
	}
}

// Validate は設定を検証し、全ての問題をまとめて返す
func (c Config) Validate() error {
	var result *multierror.Error

	nonNegative := map[string]int{
		"semaphore units":   c.SemaphoreUnits,
		"semaphore clients": c.SemaphoreClients,
		"producers":         c.Producers,
		"consumers":         c.Consumers,
		"pool workers":      c.PoolWorkers,
		"submitters":        c.Submitters,
		"receivers":         c.Receivers,
		"chaos targets":     c.ChaosTargets,
	}
	names := make([]string, 0, len(nonNegative))
	for name := range nonNegative {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if nonNegative[name] < 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be non-negative, got %d", name, nonNegative[name]))
		}
	}

	if c.Duration <= 0 {
		result = multierror.Append(result, fmt.Errorf("duration must be positive, got %v", c.Duration))
	}
	if c.Consumers > 0 && c.BatchSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("batch size must be positive when consumers are configured, got %d", c.BatchSize))
	}
	if c.SemaphoreClients > 0 && c.SemaphoreUnits == 0 {
		result = multierror.Append(result, errors.New("semaphore clients need at least one unit"))
	}
	if c.EnableChaos && c.ChaosInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("chaos interval must be positive, got %v", c.ChaosInterval))
	}
	if c.TerminationTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("termination timeout must be positive, got %v", c.TerminationTimeout))
	}

	return result.ErrorOrNil()
}

// Termination はプリミティブごとの終了結果
type Termination struct {
	Primitive  string        `json:"primitive"`
	Terminated bool          `json:"terminated"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Error      string        `json:"error,omitempty"`
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string        `json:"scenario_name"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration_ns"`

	// 記録先ごとのメトリクス
	Metrics  map[string]metrics.Snapshot `json:"metrics"`
	Counters client.Counters             `json:"counters"`

	// カオス統計
	TotalAttacks uint64       `json:"total_attacks"`
	Chaos        *chaos.Stats `json:"chaos,omitempty"`

	// 終了結果
	Terminations []Termination `json:"terminations"`
	JobFailures  string        `json:"job_failures,omitempty"`
}

// AllTerminated は全てのプリミティブが終了したかを返す
func (r *Result) AllTerminated() bool {
	for _, t := range r.Terminations {
		if !t.Terminated {
			return false
		}
	}
	return true
}

// Status は実行中のプリミティブの状態
type Status struct {
	SemaphoreAvailable int `json:"semaphore_available"`
	SemaphoreCapacity  int `json:"semaphore_capacity"`
	SemaphoreWaiting   int `json:"semaphore_waiting"`
	PendingOffers      int `json:"pending_offers"`
	PendingRequests    int `json:"pending_requests"`
	PoolQueue          int `json:"pool_queue"`
	PoolIdle           int `json:"pool_idle"`
	BroadcastWaiting   int `json:"broadcast_waiting"`
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus

	semaphore   *semaphore.Semaphore
	exchange    *exchange.Exchange[int]
	pool        *worker.Pool
	broadcaster *broadcast.Broadcaster[string]
	client      *client.Client
	monkey      *chaos.Monkey

	mu      sync.RWMutex
	running bool
	stop    context.CancelFunc
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

func (e *Engine) publishEvent(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Config はシナリオ設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はシナリオを実行する
//
// 設定時間が経過するか Stop が呼ばれると、全プリミティブを並行して
// シャットダウンし、終了を待ってから結果を返す。
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	scenarioCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.stop = cancel
	e.setup()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.stop = nil
		e.mu.Unlock()
	}()

	logger.Info("scenario", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("scenario", "Description: %s", e.config.Description)
	e.publishEvent(events.NewScenarioStartEvent(e.config.Name))

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
	}

	// 参加者は終了処理の間も動き続け、拒否を観測して自ら止まる
	e.client.Start(context.WithoutCancel(ctx))
	if e.monkey != nil {
		e.monkey.Start(scenarioCtx)
	}

	<-scenarioCtx.Done()
	logger.Info("scenario", "Scenario duration completed, shutting down primitives...")

	if e.monkey != nil {
		e.monkey.Stop()
	}
	result.Terminations = e.shutdown(context.WithoutCancel(ctx))
	e.client.Stop()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result)

	var err error
	for _, t := range result.Terminations {
		if !t.Terminated {
			err = multierror.Append(err, fmt.Errorf("%s: %s", t.Primitive, t.Error))
		}
	}
	e.publishEvent(events.NewScenarioCompleteEvent(e.config.Name, err))

	logger.Info("scenario", "=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// Stop は実行中のシナリオを早めに終了させる
func (e *Engine) Stop() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stop == nil {
		return false
	}
	e.stop()
	return true
}

// setup はシナリオ実行前のセットアップ
func (e *Engine) setup() {
	e.semaphore = semaphore.New(e.config.SemaphoreUnits)
	e.exchange = exchange.New[int]()
	e.pool = worker.NewPoolWithConfig(worker.PoolConfig{
		NumWorkers: e.config.PoolWorkers,
		Name:       "pool",
	})
	e.broadcaster = broadcast.New[string]()

	clientConfig := client.Config{
		SemaphoreClients:  e.config.SemaphoreClients,
		HoldTime:          e.config.HoldTime,
		AcquireTimeout:    e.config.AcquireTimeout,
		Producers:         e.config.Producers,
		Consumers:         e.config.Consumers,
		BatchSize:         e.config.BatchSize,
		ExchangeTimeout:   e.config.ExchangeTimeout,
		Submitters:        e.config.Submitters,
		JobTime:           e.config.JobTime,
		Receivers:         e.config.Receivers,
		BroadcastInterval: e.config.BroadcastInterval,
		WaitTimeout:       e.config.WaitTimeout,
		EventInterval:     client.DefaultConfig().EventInterval,
	}
	e.client = client.New(client.Targets{
		Semaphore:   e.semaphore,
		Exchange:    e.exchange,
		Pool:        e.pool,
		Broadcaster: e.broadcaster,
	}, clientConfig)
	e.client.SetEventBus(e.eventBus)

	e.monkey = nil
	if e.config.EnableChaos {
		chaosConfig := chaos.DefaultConfig()
		chaosConfig.Interval = e.config.ChaosInterval
		chaosConfig.TargetCount = e.config.ChaosTargets
		if len(e.config.AttackTypes) > 0 {
			chaosConfig.AttackTypes = e.config.AttackTypes
		}
		if e.config.ChaosDelay > 0 {
			chaosConfig.DelayDuration = e.config.ChaosDelay
		}
		e.monkey = chaos.New(e.client, chaosConfig)
		e.monkey.SetEventBus(e.eventBus)
	}
}

// shutdown は全プリミティブを並行してシャットダウンし、終了を待つ
func (e *Engine) shutdown(ctx context.Context) []Termination {
	terminations := make([]Termination, 4)
	steps := []func(context.Context) Termination{
		e.terminateSemaphore,
		e.terminateExchange,
		e.terminatePool,
		e.terminateBroadcaster,
	}

	var g errgroup.Group
	for i, step := range steps {
		g.Go(func() error {
			start := time.Now()
			t := step(ctx)
			t.Elapsed = time.Since(start)
			terminations[i] = t
			e.publishEvent(events.NewTerminationEvent(t.Primitive, t.Terminated, termErr(t)))
			if !t.Terminated {
				return fmt.Errorf("%s did not terminate: %s", t.Primitive, t.Error)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("scenario", "shutdown incomplete: %v", err)
	}
	return terminations
}

func termErr(t Termination) error {
	if t.Error == "" {
		return nil
	}
	return errors.New(t.Error)
}

func (e *Engine) terminateSemaphore(ctx context.Context) Termination {
	t := Termination{Primitive: "semaphore"}

	e.semaphore.Shutdown()
	e.publishEvent(events.NewShutdownEvent(t.Primitive))

	ok, err := e.semaphore.AwaitTermination(ctx, e.config.TerminationTimeout)
	switch {
	case err != nil:
		t.Error = err.Error()
	case !ok:
		t.Error = fmt.Sprintf("timed out with %s", e.semaphore)
	default:
		t.Terminated = true
	}
	return t
}

func (e *Engine) terminateExchange(_ context.Context) Termination {
	e.exchange.Close()
	e.publishEvent(events.NewShutdownEvent("exchange"))
	return Termination{Primitive: "exchange", Terminated: true}
}

func (e *Engine) terminatePool(ctx context.Context) Termination {
	t := Termination{Primitive: "pool"}

	waitCtx, cancel := context.WithTimeout(ctx, e.config.TerminationTimeout)
	defer cancel()

	e.publishEvent(events.NewShutdownEvent(t.Primitive))
	if err := e.pool.ShutdownAndWait(waitCtx); err != nil {
		t.Error = err.Error()
		return t
	}
	t.Terminated = true
	return t
}

// terminateBroadcaster は待機中の受信者に最後のメッセージを届ける
func (e *Engine) terminateBroadcaster(_ context.Context) Termination {
	delivered := e.broadcaster.SendToAll("shutdown")
	e.publishEvent(events.NewBroadcastSentEvent("broadcast", len(delivered)))
	return Termination{Primitive: "broadcast", Terminated: true}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	result.Metrics = e.client.Snapshots()
	result.Counters = e.client.Counters()

	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.TotalAttacks = stats.TotalAttacks
		result.Chaos = &stats
	}

	if err := e.pool.Err(); err != nil {
		result.JobFailures = err.Error()
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, `
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v

CALL OUTCOMES
-------------
  %-18s %8s %10s %10s %10s %10s %12s %12s
`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		"Source", "Total", "Satisfied", "TimedOut", "Rejected", "Cancelled", "Avg Wait", "P99 Wait",
	)

	for _, source := range client.Sources() {
		snap, ok := r.Metrics[source]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-18s %8d %10d %10d %10d %10d %12v %12v\n",
			source, snap.Total, snap.Satisfied, snap.TimedOut, snap.Rejected, snap.Cancelled,
			snap.AverageWait.Round(time.Microsecond), snap.P99Wait.Round(time.Microsecond))
	}

	fmt.Fprintf(&b, `
EXCHANGE & POOL
---------------
  Items Sent:       %d
  Items Received:   %d
  Jobs Run:         %d
  Broadcasts:       %d

CHAOS STATISTICS
----------------
  Total Attacks:    %d
`,
		r.Counters.ItemsSent,
		r.Counters.ItemsReceived,
		r.Counters.JobsRun,
		r.Counters.Broadcasts,
		r.TotalAttacks,
	)
	if r.Chaos != nil {
		for _, name := range []string{"cancel", "delay"} {
			fmt.Fprintf(&b, "  %-17s %d\n", name+":", r.Chaos.ByType[name])
		}
		fmt.Fprintf(&b, "  %-17s %d\n", "missed:", r.Chaos.Missed)
	}

	b.WriteString(`
TERMINATION
-----------
`)
	for _, t := range r.Terminations {
		status := "terminated"
		if !t.Terminated {
			status = "NOT TERMINATED: " + t.Error
		}
		fmt.Fprintf(&b, "  %-20s %-12v %s\n", t.Primitive+":", t.Elapsed.Round(time.Millisecond), status)
	}
	if r.JobFailures != "" {
		fmt.Fprintf(&b, "\n  Job failures: %s\n", r.JobFailures)
	}

	b.WriteString("\n================================================================================")

	return b.String()
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ChaosStats はカオス統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// Metrics は記録先ごとのメトリクスを返す
func (e *Engine) Metrics() map[string]metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.client == nil {
		return nil
	}
	return e.client.Snapshots()
}

// Status は実行中のプリミティブの状態を返す
func (e *Engine) Status() *Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.semaphore == nil {
		return nil
	}
	return &Status{
		SemaphoreAvailable: e.semaphore.Available(),
		SemaphoreCapacity:  e.semaphore.Capacity(),
		SemaphoreWaiting:   e.semaphore.Waiting(),
		PendingOffers:      e.exchange.PendingOffers(),
		PendingRequests:    e.exchange.PendingRequests(),
		PoolQueue:          e.pool.QueueSize(),
		PoolIdle:           e.pool.IdleWorkers(),
		BroadcastWaiting:   e.broadcaster.Waiting(),
	}
}
