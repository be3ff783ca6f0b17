package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"monitorsync/internal/chaos"
	"monitorsync/internal/scenario"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Preset             string `yaml:"preset" json:"preset"`
	Name               string `yaml:"name" json:"name"`
	Description        string `yaml:"description" json:"description"`
	Duration           string `yaml:"duration" json:"duration"`
	TerminationTimeout string `yaml:"termination_timeout" json:"termination_timeout"`

	Semaphore SemaphoreConfig `yaml:"semaphore" json:"semaphore"`
	Exchange  ExchangeConfig  `yaml:"exchange" json:"exchange"`
	Pool      PoolConfig      `yaml:"pool" json:"pool"`
	Broadcast BroadcastConfig `yaml:"broadcast" json:"broadcast"`
	Chaos     ChaosConfig     `yaml:"chaos" json:"chaos"`
}

// SemaphoreConfig はセマフォ設定
type SemaphoreConfig struct {
	Units          int    `yaml:"units" json:"units"`
	Clients        int    `yaml:"clients" json:"clients"`
	HoldTime       string `yaml:"hold_time" json:"hold_time"`
	AcquireTimeout string `yaml:"acquire_timeout" json:"acquire_timeout"`
}

// ExchangeConfig はメッセージ交換設定
type ExchangeConfig struct {
	Producers int    `yaml:"producers" json:"producers"`
	Consumers int    `yaml:"consumers" json:"consumers"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	Timeout   string `yaml:"timeout" json:"timeout"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Workers    int    `yaml:"workers" json:"workers"`
	Submitters int    `yaml:"submitters" json:"submitters"`
	JobTime    string `yaml:"job_time" json:"job_time"`
}

// BroadcastConfig はブロードキャスト設定
type BroadcastConfig struct {
	Receivers   int    `yaml:"receivers" json:"receivers"`
	Interval    string `yaml:"interval" json:"interval"`
	WaitTimeout string `yaml:"wait_timeout" json:"wait_timeout"`
}

// ChaosConfig はカオス設定
type ChaosConfig struct {
	Enabled     *bool    `yaml:"enabled" json:"enabled"`
	Interval    string   `yaml:"interval" json:"interval"`
	Targets     int      `yaml:"targets" json:"targets"`
	AttackTypes []string `yaml:"attack_types" json:"attack_types"`
	Delay       string   `yaml:"delay" json:"delay"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// durationField は設定ファイル中の時間指定
type durationField struct {
	key   string
	value string
	dst   *time.Duration
}

func (f *FileConfig) durations(config *scenario.Config) []durationField {
	sc := f.Scenario
	return []durationField{
		{"duration", sc.Duration, &config.Duration},
		{"termination_timeout", sc.TerminationTimeout, &config.TerminationTimeout},
		{"semaphore.hold_time", sc.Semaphore.HoldTime, &config.HoldTime},
		{"semaphore.acquire_timeout", sc.Semaphore.AcquireTimeout, &config.AcquireTimeout},
		{"exchange.timeout", sc.Exchange.Timeout, &config.ExchangeTimeout},
		{"pool.job_time", sc.Pool.JobTime, &config.JobTime},
		{"broadcast.interval", sc.Broadcast.Interval, &config.BroadcastInterval},
		{"broadcast.wait_timeout", sc.Broadcast.WaitTimeout, &config.WaitTimeout},
		{"chaos.interval", sc.Chaos.Interval, &config.ChaosInterval},
		{"chaos.delay", sc.Chaos.Delay, &config.ChaosDelay},
	}
}

// base はプリセットまたはデフォルトの設定を返す
func (f *FileConfig) base() (scenario.Config, error) {
	if f.Scenario.Preset == "" {
		return scenario.DefaultConfig(), nil
	}
	config, ok := scenario.GetPreset(f.Scenario.Preset)
	if !ok {
		return scenario.DefaultConfig(), fmt.Errorf("unknown preset: %s", f.Scenario.Preset)
	}
	return config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	config, err := f.base()
	if err != nil {
		return config, err
	}

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	for _, d := range f.durations(&config) {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return config, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	// 0 は指定なしとして扱う
	overrides := []struct {
		value int
		dst   *int
	}{
		{sc.Semaphore.Units, &config.SemaphoreUnits},
		{sc.Semaphore.Clients, &config.SemaphoreClients},
		{sc.Exchange.Producers, &config.Producers},
		{sc.Exchange.Consumers, &config.Consumers},
		{sc.Exchange.BatchSize, &config.BatchSize},
		{sc.Pool.Workers, &config.PoolWorkers},
		{sc.Pool.Submitters, &config.Submitters},
		{sc.Broadcast.Receivers, &config.Receivers},
		{sc.Chaos.Targets, &config.ChaosTargets},
	}
	for _, o := range overrides {
		if o.value > 0 {
			*o.dst = o.value
		}
	}

	// Chaos設定（未指定ならプリセットの値を使う）
	if sc.Chaos.Enabled != nil {
		config.EnableChaos = *sc.Chaos.Enabled
	}
	if len(sc.Chaos.AttackTypes) > 0 {
		attacks, err := parseAttackTypes(sc.Chaos.AttackTypes)
		if err != nil {
			return config, err
		}
		config.AttackTypes = attacks
	}

	return config, nil
}

// parseAttackTypes は文字列の攻撃タイプをパースする
func parseAttackTypes(types []string) ([]chaos.AttackType, error) {
	var attacks []chaos.AttackType

	for _, t := range types {
		attack, err := chaos.ParseAttackType(t)
		if err != nil {
			return nil, err
		}
		attacks = append(attacks, attack)
	}

	return attacks, nil
}

// Validate は設定を検証し、全ての問題をまとめて返す
func (f *FileConfig) Validate() error {
	sc := f.Scenario
	var result *multierror.Error

	if _, err := f.base(); err != nil {
		result = multierror.Append(result, err)
	}

	counts := []struct {
		key   string
		value int
	}{
		{"semaphore.units", sc.Semaphore.Units},
		{"semaphore.clients", sc.Semaphore.Clients},
		{"exchange.producers", sc.Exchange.Producers},
		{"exchange.consumers", sc.Exchange.Consumers},
		{"exchange.batch_size", sc.Exchange.BatchSize},
		{"pool.workers", sc.Pool.Workers},
		{"pool.submitters", sc.Pool.Submitters},
		{"broadcast.receivers", sc.Broadcast.Receivers},
		{"chaos.targets", sc.Chaos.Targets},
	}
	for _, c := range counts {
		if c.value < 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be non-negative", c.key))
		}
	}

	var scratch scenario.Config
	for _, d := range f.durations(&scratch) {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid %s: %w", d.key, err))
			continue
		}
		if parsed < 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be non-negative", d.key))
		}
	}

	for _, t := range sc.Chaos.AttackTypes {
		if _, err := chaos.ParseAttackType(t); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Load は設定ファイルを読み込み、検証してscenario.Configを返す
func Load(path string) (scenario.Config, error) {
	file, err := LoadFile(path)
	if err != nil {
		return scenario.Config{}, err
	}
	if err := file.Validate(); err != nil {
		return scenario.Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	config, err := file.ToScenarioConfig()
	if err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}
