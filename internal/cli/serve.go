package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"monitorsync/internal/api"
)

// NewServeCmd returns the command that starts the HTTP/websocket server.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scenario control, live events and the broadcast relay over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			addr, err := cc.Flags().GetString("addr")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cc.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.NewServer(addr).Start(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address (e.g. :8080, 0.0.0.0:3000)")

	return cmd
}
