package scenario

import (
	"time"

	"monitorsync/internal/chaos"
)

// BasicScenario は基本的なシナリオ設定を返す
// カオス注入なし、純粋な負荷テスト
func BasicScenario() Config {
	c := DefaultConfig()
	c.Name = "basic"
	c.Description = "Basic load on every primitive without chaos injection"
	c.EnableChaos = false
	return c
}

// ContentionScenario は競合の激しいシナリオを返す
// 許可数より遥かに多い参加者、大きなバッチ
func ContentionScenario() Config {
	c := DefaultConfig()
	c.Name = "contention"
	c.Description = "Heavy contention: many waiters per unit, large batches, few workers"
	c.Duration = 15 * time.Second
	c.SemaphoreUnits = 1
	c.SemaphoreClients = 16
	c.HoldTime = 5 * time.Millisecond
	c.AcquireTimeout = 20 * time.Millisecond
	c.Producers = 8
	c.Consumers = 4
	c.BatchSize = 5
	c.PoolWorkers = 1
	c.Submitters = 8
	c.EnableChaos = false
	return c
}

// CancellationScenario はキャンセル注入シナリオを返す
// Cancel攻撃のみ、短い間隔
func CancellationScenario() Config {
	c := DefaultConfig()
	c.Name = "cancellation"
	c.Description = "Frequent cancellation of in-flight blocking calls"
	c.ChaosInterval = 50 * time.Millisecond
	c.ChaosTargets = 2
	c.AttackTypes = []chaos.AttackType{chaos.AttackCancel}
	c.AcquireTimeout = 200 * time.Millisecond
	c.ExchangeTimeout = 200 * time.Millisecond
	c.WaitTimeout = 500 * time.Millisecond
	return c
}

// StressScenario は高負荷シナリオを返す
// 多数の参加者、複数の攻撃タイプ
func StressScenario() Config {
	c := DefaultConfig()
	c.Name = "stress"
	c.Description = "High load stress test with cancel and delay attacks"
	c.Duration = 20 * time.Second
	c.SemaphoreUnits = 4
	c.SemaphoreClients = 32
	c.Producers = 16
	c.Consumers = 8
	c.BatchSize = 4
	c.PoolWorkers = 4
	c.Submitters = 16
	c.Receivers = 16
	c.BroadcastInterval = 5 * time.Millisecond
	c.ChaosInterval = 100 * time.Millisecond
	c.ChaosTargets = 4
	return c
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	c := DefaultConfig()
	c.Name = "quick"
	c.Description = "Quick test for verification"
	c.Duration = 2 * time.Second
	c.ChaosInterval = 100 * time.Millisecond
	return c
}

var presets = map[string]func() Config{
	"basic":        BasicScenario,
	"contention":   ContentionScenario,
	"cancellation": CancellationScenario,
	"stress":       StressScenario,
	"quick":        QuickScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"basic", "contention", "cancellation", "stress", "quick"}
}
