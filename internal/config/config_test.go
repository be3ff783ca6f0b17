package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitorsync/internal/chaos"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func boolPtr(b bool) *bool { return &b }

func TestLoadFileYAML(t *testing.T) {
	content := `
scenario:
  name: test-scenario
  description: Test scenario
  duration: 10s
  semaphore:
    units: 3
    clients: 12
    hold_time: 5ms
    acquire_timeout: 20ms
  exchange:
    producers: 4
    consumers: 2
    batch_size: 5
    timeout: 30ms
  pool:
    workers: 2
    submitters: 6
    job_time: 1ms
  broadcast:
    receivers: 7
    interval: 15ms
    wait_timeout: 40ms
  chaos:
    enabled: true
    interval: 2s
    targets: 1
    attack_types:
      - cancel
      - delay
    delay: 25ms
`
	cfg, err := LoadFile(writeFile(t, "config.yaml", content))
	require.NoError(t, err)

	assert.Equal(t, "test-scenario", cfg.Scenario.Name)
	assert.Equal(t, 3, cfg.Scenario.Semaphore.Units)
	assert.Equal(t, 5, cfg.Scenario.Exchange.BatchSize)
	require.NotNil(t, cfg.Scenario.Chaos.Enabled)
	assert.True(t, *cfg.Scenario.Chaos.Enabled)

	sc, err := cfg.ToScenarioConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, sc.Duration)
	assert.Equal(t, 12, sc.SemaphoreClients)
	assert.Equal(t, 5*time.Millisecond, sc.HoldTime)
	assert.Equal(t, 20*time.Millisecond, sc.AcquireTimeout)
	assert.Equal(t, 30*time.Millisecond, sc.ExchangeTimeout)
	assert.Equal(t, 6, sc.Submitters)
	assert.Equal(t, time.Millisecond, sc.JobTime)
	assert.Equal(t, 7, sc.Receivers)
	assert.Equal(t, 15*time.Millisecond, sc.BroadcastInterval)
	assert.Equal(t, 40*time.Millisecond, sc.WaitTimeout)
	assert.Equal(t, 25*time.Millisecond, sc.ChaosDelay)
	assert.Equal(t, []chaos.AttackType{chaos.AttackCancel, chaos.AttackDelay}, sc.AttackTypes)
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "scenario": {
    "name": "json-test",
    "duration": "5s",
    "semaphore": {
      "units": 1
    },
    "chaos": {
      "enabled": false
    }
  }
}`
	cfg, err := LoadFile(writeFile(t, "config.json", content))
	require.NoError(t, err)

	if cfg.Scenario.Name != "json-test" {
		t.Errorf("expected name 'json-test', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Scenario.Chaos.Enabled == nil || *cfg.Scenario.Chaos.Enabled {
		t.Error("expected chaos to be disabled")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.txt", "test"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.yaml", "scenario: [unclosed"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestToScenarioConfigDefaults(t *testing.T) {
	cfg := &FileConfig{}

	sc, err := cfg.ToScenarioConfig()
	require.NoError(t, err)
	assert.Equal(t, "default", sc.Name)
	assert.True(t, sc.EnableChaos, "default scenario keeps chaos when the file does not mention it")
}

func TestToScenarioConfigPreset(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Preset:    "cancellation",
			Name:      "my-run",
			Semaphore: SemaphoreConfig{Clients: 9},
		},
	}

	sc, err := cfg.ToScenarioConfig()
	require.NoError(t, err)
	assert.Equal(t, "my-run", sc.Name)
	assert.Equal(t, 9, sc.SemaphoreClients)
	assert.True(t, sc.EnableChaos)
	assert.Equal(t, []chaos.AttackType{chaos.AttackCancel}, sc.AttackTypes)
}

func TestToScenarioConfigDisablesChaos(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Preset: "cancellation",
			Chaos:  ChaosConfig{Enabled: boolPtr(false)},
		},
	}

	sc, err := cfg.ToScenarioConfig()
	require.NoError(t, err)
	assert.False(t, sc.EnableChaos)
}

func TestToScenarioConfigUnknownPreset(t *testing.T) {
	cfg := &FileConfig{Scenario: ScenarioConfig{Preset: "nope"}}

	_, err := cfg.ToScenarioConfig()
	assert.Error(t, err)
}

func TestToScenarioConfigInvalidDuration(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Duration: "invalid",
		},
	}

	_, err := cfg.ToScenarioConfig()
	if err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestToScenarioConfigInvalidAttackType(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{
			Chaos: ChaosConfig{
				Enabled:     boolPtr(true),
				AttackTypes: []string{"unknown"},
			},
		},
	}

	_, err := cfg.ToScenarioConfig()
	if err == nil {
		t.Error("expected error for invalid attack type")
	}
}

func TestParseAttackTypes(t *testing.T) {
	tests := []struct {
		input    []string
		expected []chaos.AttackType
		hasError bool
	}{
		{[]string{"cancel"}, []chaos.AttackType{chaos.AttackCancel}, false},
		{[]string{"delay"}, []chaos.AttackType{chaos.AttackDelay}, false},
		{[]string{"CANCEL", "DELAY"}, []chaos.AttackType{chaos.AttackCancel, chaos.AttackDelay}, false},
		{[]string{"kill"}, nil, true},
	}

	for _, tt := range tests {
		attacks, err := parseAttackTypes(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("expected error for input %v", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for input %v: %v", tt.input, err)
			continue
		}
		assert.Equal(t, tt.expected, attacks)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name: "negative units",
			config: FileConfig{Scenario: ScenarioConfig{
				Semaphore: SemaphoreConfig{Units: -1},
			}},
			hasError: true,
		},
		{
			name: "negative batch size",
			config: FileConfig{Scenario: ScenarioConfig{
				Exchange: ExchangeConfig{BatchSize: -3},
			}},
			hasError: true,
		},
		{
			name: "bad duration",
			config: FileConfig{Scenario: ScenarioConfig{
				Pool: PoolConfig{JobTime: "soon"},
			}},
			hasError: true,
		},
		{
			name: "negative duration",
			config: FileConfig{Scenario: ScenarioConfig{
				Broadcast: BroadcastConfig{Interval: "-1s"},
			}},
			hasError: true,
		},
		{
			name:     "unknown preset",
			config:   FileConfig{Scenario: ScenarioConfig{Preset: "nope"}},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := FileConfig{Scenario: ScenarioConfig{
		Semaphore: SemaphoreConfig{Units: -1, HoldTime: "later"},
		Chaos:     ChaosConfig{AttackTypes: []string{"kill", "suspend"}},
	}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"semaphore.units", "semaphore.hold_time", "kill", "suspend"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "run.yml", `
scenario:
  preset: quick
  duration: 1s
`)
	sc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quick", sc.Name)
	assert.Equal(t, time.Second, sc.Duration)

	bad := writeFile(t, "bad.yml", `
scenario:
  semaphore:
    units: -1
`)
	_, err = Load(bad)
	assert.Error(t, err)
}
