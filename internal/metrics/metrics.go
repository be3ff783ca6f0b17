package metrics

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"monitorsync/internal/monitor"
)

// Outcome はブロッキング呼び出しの結果を表す
type Outcome int

const (
	OutcomeSatisfied Outcome = iota
	OutcomeTimedOut
	OutcomeRejected
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSatisfied:
		return "satisfied"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Classify はプリミティブの戻り値を Outcome に分類する
func Classify(ok bool, err error) Outcome {
	switch {
	case err == nil && ok:
		return OutcomeSatisfied
	case err == nil:
		return OutcomeTimedOut
	case errors.Is(err, monitor.ErrRejected):
		return OutcomeRejected
	case errors.Is(err, monitor.ErrCancelled):
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxLatencySamples: 1000}
}

// Metrics はブロッキング呼び出しのメトリクスを収集する
type Metrics struct {
	total       atomic.Uint64
	satisfied   atomic.Uint64
	timedOut    atomic.Uint64
	rejected    atomic.Uint64
	cancelled   atomic.Uint64
	failed      atomic.Uint64
	totalWaitNs atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowOps         uint64
	waits             []time.Duration
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = DefaultConfig().MaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		waits:             make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// Record は一回の呼び出し結果と待ち時間を記録する
func (m *Metrics) Record(outcome Outcome, wait time.Duration) {
	m.total.Add(1)
	m.totalWaitNs.Add(uint64(wait.Nanoseconds()))

	switch outcome {
	case OutcomeSatisfied:
		m.satisfied.Add(1)
	case OutcomeTimedOut:
		m.timedOut.Add(1)
	case OutcomeRejected:
		m.rejected.Add(1)
	case OutcomeCancelled:
		m.cancelled.Add(1)
	default:
		m.failed.Add(1)
	}

	m.mu.Lock()
	m.windowOps++
	if outcome == OutcomeSatisfied && len(m.waits) < m.maxLatencySamples {
		m.waits = append(m.waits, wait)
	}
	m.mu.Unlock()
}

// Total は総呼び出し数を返す
func (m *Metrics) Total() uint64 {
	return m.total.Load()
}

// Satisfied は成功した呼び出し数を返す
func (m *Metrics) Satisfied() uint64 {
	return m.satisfied.Load()
}

// TimedOut はタイムアウトした呼び出し数を返す
func (m *Metrics) TimedOut() uint64 {
	return m.timedOut.Load()
}

// Rejected は拒否された呼び出し数を返す
func (m *Metrics) Rejected() uint64 {
	return m.rejected.Load()
}

// Cancelled はキャンセルされた呼び出し数を返す
func (m *Metrics) Cancelled() uint64 {
	return m.cancelled.Load()
}

// Failed はその他のエラーで終わった呼び出し数を返す
func (m *Metrics) Failed() uint64 {
	return m.failed.Load()
}

// Throughput は直近ウィンドウの秒間呼び出し数を返す
func (m *Metrics) Throughput() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowOps) / elapsed
}

// OverallThroughput は開始からの平均秒間呼び出し数を返す
func (m *Metrics) OverallThroughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.total.Load()) / elapsed
}

// AverageWait は平均待ち時間を返す
func (m *Metrics) AverageWait() time.Duration {
	total := m.total.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalWaitNs.Load() / total)
}

// P99Wait は成功した呼び出しの P99 待ち時間を返す（サンプルベース）
func (m *Metrics) P99Wait() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.waits) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.waits))
	copy(sorted, m.waits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// SatisfactionRate は成功率を返す（0.0〜1.0）
func (m *Metrics) SatisfactionRate() float64 {
	total := m.total.Load()
	if total == 0 {
		return 0
	}
	return float64(m.satisfied.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowOps = 0
	m.lastResetTime = time.Now()
	m.waits = m.waits[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Total             uint64        `json:"total"`
	Satisfied         uint64        `json:"satisfied"`
	TimedOut          uint64        `json:"timed_out"`
	Rejected          uint64        `json:"rejected"`
	Cancelled         uint64        `json:"cancelled"`
	Failed            uint64        `json:"failed"`
	Throughput        float64       `json:"throughput"`
	OverallThroughput float64       `json:"overall_throughput"`
	AverageWait       time.Duration `json:"average_wait_ns"`
	P99Wait           time.Duration `json:"p99_wait_ns"`
	SatisfactionRate  float64       `json:"satisfaction_rate"`
	Elapsed           time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Total:             m.Total(),
		Satisfied:         m.Satisfied(),
		TimedOut:          m.TimedOut(),
		Rejected:          m.Rejected(),
		Cancelled:         m.Cancelled(),
		Failed:            m.Failed(),
		Throughput:        m.Throughput(),
		OverallThroughput: m.OverallThroughput(),
		AverageWait:       m.AverageWait(),
		P99Wait:           m.P99Wait(),
		SatisfactionRate:  m.SatisfactionRate(),
		Elapsed:           time.Since(m.startTime),
	}
}
