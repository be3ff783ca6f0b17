// Package cli builds the monitorsync command tree.
package cli

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"monitorsync/internal/logger"
)

// Version is set at build time.
var Version = "dev"

// NewRootCmd returns the root command with every subcommand attached.
func NewRootCmd(name, shortDesc, longDesc string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           name,
		Short:         shortDesc,
		Long:          longDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	cmd.PersistentFlags().String("log_level", "info", "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log_format", "text", "Set the log format (text, logfmt, json)")

	cmd.PersistentPreRunE = func(cc *cobra.Command, _ []string) error {
		flags := cc.Flags()

		var merr error

		levelName, err := flags.GetString("log_level")
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		level, err := logger.ParseLevel(levelName)
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		formatName, err := flags.GetString("log_format")
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		format, err := logger.ParseFormat(formatName)
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		if merr != nil {
			return fmt.Errorf("invalid argument: %w", merr)
		}

		logger.Configure(cc.ErrOrStderr(), logger.Options{Level: level, Format: format})

		return nil
	}

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewPresetsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd returns the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cc *cobra.Command, _ []string) {
			fmt.Fprintln(cc.OutOrStdout(), Version)
		},
		SilenceUsage: true,
	}
}
