package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"monitorsync/internal/config"
	"monitorsync/internal/logger"
	"monitorsync/internal/scenario"
)

// NewRunCmd returns the command that runs one scenario and prints its report.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario against every primitive and print the report",
		Example: `  # プリセットシナリオを実行
  monitorsync run --preset quick

  # 設定ファイルから実行
  monitorsync run --config scenario.yaml

  # フラグでカスタマイズ
  monitorsync run --preset contention --duration 30s --units 2 --clients 20`,
		Args: cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			cfg, err := buildScenarioConfig(cc.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cc.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScenario(ctx, cc, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Scenario file path (YAML/JSON)")
	flags.String("preset", "", "Preset scenario name (see the presets command); not allowed with --config")
	flags.Duration("duration", 0, "Scenario duration (e.g. 10s, 1m)")
	flags.Int("units", 0, "Semaphore units")
	flags.Int("clients", 0, "Semaphore clients")
	flags.Int("batch_size", 0, "Exchange batch size")
	flags.Int("workers", 0, "Worker pool size")
	flags.Bool("chaos", true, "Enable chaos injection")
	flags.Bool("json", false, "Print the result as JSON instead of a report")

	return cmd
}

// buildScenarioConfig はシナリオ設定を構築する
//
// 設定ファイル、プリセット、quickシナリオの順に基本設定を決め、
// （設定ファイルとプリセットの同時指定はエラー）
// 明示的に指定されたフラグで上書きする。
func buildScenarioConfig(flags *pflag.FlagSet) (scenario.Config, error) {
	var cfg scenario.Config

	configFile, _ := flags.GetString("config")
	presetName, _ := flags.GetString("preset")
	if configFile != "" && presetName != "" {
		return cfg, fmt.Errorf("--config and --preset cannot be combined; set scenario.preset in %s instead", configFile)
	}

	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	case presetName != "":
		preset, ok := scenario.GetPreset(presetName)
		if !ok {
			return cfg, fmt.Errorf("unknown preset %q (available: %v)", presetName, scenario.ListPresets())
		}
		cfg = preset
	default:
		cfg = scenario.QuickScenario()
	}

	if flags.Changed("duration") {
		cfg.Duration, _ = flags.GetDuration("duration")
	}
	ints := map[string]*int{
		"units":      &cfg.SemaphoreUnits,
		"clients":    &cfg.SemaphoreClients,
		"batch_size": &cfg.BatchSize,
		"workers":    &cfg.PoolWorkers,
	}
	for name, dst := range ints {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("chaos") {
		cfg.EnableChaos, _ = flags.GetBool("chaos")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid scenario: %w", err)
	}
	return cfg, nil
}

// runScenario はシナリオを実行する
func runScenario(ctx context.Context, cc *cobra.Command, cfg scenario.Config) error {
	logger.Info("cli", "Scenario: %s (%v, chaos: %v)", cfg.Name, cfg.Duration, cfg.EnableChaos)

	engine := scenario.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	out := cc.OutOrStdout()
	if asJSON, _ := cc.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		fmt.Fprintln(out, result.Report())
	}

	if !result.AllTerminated() {
		return errors.New("some primitives did not terminate")
	}
	return nil
}
