package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"baobab/internal/logger"
	"baobab/internal/scheduler"
)

var serveNoCron bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service with the recurring pipeline schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var sched *scheduler.Scheduler
		if !serveNoCron {
			sched = scheduler.New(ctx)
			err := scheduler.Register(sched, scheduler.Pipelines{
				Collector: app.Collector,
				Syncer:    app.Syncer,
				Trending:  app.Trending,
				Health:    app.Health,
			})
			if err != nil {
				return err
			}
			sched.Start()
		}

		errCh := make(chan error, 1)
		go func() { errCh <- app.Server.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig.String())
		case err := <-errCh:
			return err
		}

		if sched != nil {
			sched.Stop(30 * time.Second)
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return app.Server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoCron, "no-cron", false, "serve HTTP only, without the recurring schedule")
	rootCmd.AddCommand(serveCmd)
}
