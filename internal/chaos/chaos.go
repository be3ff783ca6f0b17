package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"monitorsync/internal/events"
	"monitorsync/internal/logger"
)

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackCancel AttackType = iota
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackCancel:
		return "cancel"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// ParseAttackType は文字列の攻撃タイプをパースする
func ParseAttackType(s string) (AttackType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancel":
		return AttackCancel, nil
	case "delay":
		return AttackDelay, nil
	default:
		return 0, fmt.Errorf("unknown attack type: %s", s)
	}
}

// Target は攻撃対象となる参加者
type Target interface {
	// ID は参加者名を返す
	ID() string
	// Cancel は実行中のブロッキング呼び出しをキャンセルし、呼び出し中だったかを返す
	Cancel() bool
	// SetDelay は次の保持時間に d を加える
	SetDelay(d time.Duration)
}

// TargetSource は現在の攻撃対象を提供する
type TargetSource interface {
	Targets() []Target
}

// Config はChaosMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // 同時攻撃対象数
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時の遅延時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackCancel, AttackDelay},
		DelayDuration: 100 * time.Millisecond,
	}
}

// Stats はカオス攻撃の統計情報
type Stats struct {
	TotalAttacks uint64            `json:"total_attacks"`
	ByType       map[string]uint64 `json:"attacks_by_type"`
	Missed       uint64            `json:"missed"`
}

// Monkey はカオスエンジニアリングを実行する
type Monkey struct {
	source   TargetSource
	eventBus *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	config       Config
	attackCount  uint64
	attackByType map[AttackType]uint64
	missed       uint64
	lastAttack   time.Time
}

// New は新しいChaosMonkeyを作成する
func New(source TargetSource, config Config) *Monkey {
	return &Monkey{
		config:       config,
		source:       source,
		attackByType: make(map[AttackType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start はカオス注入を開始する
func (m *Monkey) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	cfg := m.currentConfig()

	m.wg.Add(1)
	go m.attackLoop(cfg.Interval)

	logger.Info("chaos", "ChaosMonkey started (interval: %v, targets: %d)",
		cfg.Interval, cfg.TargetCount)
}

// Stop はカオス注入を停止する
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	logger.Info("chaos", "ChaosMonkey stopped (total attacks: %d)", m.AttackCount())
}

// attackLoop は定期的に攻撃を実行する
func (m *Monkey) attackLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// attack は攻撃を実行する
func (m *Monkey) attack() {
	targets := m.selectTargets()
	if len(targets) == 0 {
		return
	}

	attackType := m.selectAttackType()

	for _, t := range targets {
		m.executeAttack(t, attackType)
	}

	m.mu.Lock()
	m.attackCount++
	m.lastAttack = time.Now()
	m.mu.Unlock()
}

// selectTargets は攻撃対象の参加者を選択する
func (m *Monkey) selectTargets() []Target {
	targets := m.source.Targets()
	if len(targets) == 0 {
		return nil
	}

	count := m.currentConfig().TargetCount
	if count > len(targets) {
		count = len(targets)
	}

	rand.Shuffle(len(targets), func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})

	return targets[:count]
}

// selectAttackType は攻撃タイプをランダムに選択する
func (m *Monkey) selectAttackType() AttackType {
	types := m.currentConfig().AttackTypes
	if len(types) == 0 {
		return AttackCancel
	}
	return types[rand.Intn(len(types))]
}

// executeAttack は指定された攻撃を実行する
func (m *Monkey) executeAttack(t Target, attackType AttackType) {
	switch attackType {
	case AttackCancel:
		m.attackCancel(t)
	case AttackDelay:
		m.attackDelay(t)
	}
}

// attackCancel は参加者の実行中の呼び出しをキャンセルする
func (m *Monkey) attackCancel(t Target) {
	if !t.Cancel() {
		logger.Debug("chaos", "ChaosMonkey: %s had no call in flight", t.ID())
		m.mu.Lock()
		m.missed++
		m.mu.Unlock()
		return
	}
	logger.Warn("chaos", "ChaosMonkey: cancelled in-flight call of %s", t.ID())
	m.publishEvent(events.NewChaosAttackEvent(t.ID(), events.AttackTypeCancel))

	m.mu.Lock()
	m.attackByType[AttackCancel]++
	m.mu.Unlock()
}

// attackDelay は参加者に遅延を注入する
func (m *Monkey) attackDelay(t Target) {
	delay := m.currentConfig().DelayDuration
	t.SetDelay(delay)
	logger.Warn("chaos", "ChaosMonkey: injected %v delay to %s", delay, t.ID())
	m.publishEvent(events.NewChaosAttackEventWithDelay(t.ID(), delay))

	m.mu.Lock()
	m.attackByType[AttackDelay]++
	m.mu.Unlock()
}

func (m *Monkey) currentConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は攻撃回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// LastAttack は最後の攻撃時刻を返す
func (m *Monkey) LastAttack() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAttack
}

// SetConfig は設定を更新する（間隔の変更は次回のStartから有効）
func (m *Monkey) SetConfig(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks: m.attackCount,
		ByType:       byType,
		Missed:       m.missed,
	}
}
