package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"monitorsync/internal/scenario"
)

// NewPresetsCmd returns the command that lists preset scenarios.
func NewPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List preset scenarios",
		Args:  cobra.NoArgs,
		Run: func(cc *cobra.Command, _ []string) {
			out := cc.OutOrStdout()
			for _, name := range scenario.ListPresets() {
				cfg, _ := scenario.GetPreset(name)
				fmt.Fprintf(out, "  %-14s %-8v %s\n", name, cfg.Duration, cfg.Description)
			}
		},
	}
}
