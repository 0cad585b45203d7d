package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"smartkeiba/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listenAddr string
		scheduler  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the export HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("scheduler") {
				cfg.SchedulerEnabled = scheduler
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return a.Serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address (default $LISTEN_ADDR)")
	cmd.Flags().BoolVar(&scheduler, "scheduler", false, "Run scheduled exports (default $SCHEDULER_ENABLED)")
	return cmd
}
