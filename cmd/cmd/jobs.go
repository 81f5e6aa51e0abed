package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"baobab/internal/logger"
)

const oneShotTimeout = 10 * time.Minute

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one feed collection pass over all due sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()

		summary, err := app.Collector.Collect(ctx)
		if err != nil {
			return err
		}
		logger.Info("collection finished",
			"sources_checked", summary.SourcesChecked,
			"new_articles", summary.NewArticles,
			"errors", summary.Errors,
			"elapsed_ms", summary.ElapsedMS)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate recent articles and dictionaries into the edge cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()

		stats := app.Syncer.Sync(ctx)
		logger.Info("edge sync finished",
			"articles", stats.Articles,
			"keywords", stats.Keywords,
			"categories", stats.Categories,
			"errors", stats.Errors,
			"elapsed_ms", stats.ElapsedMS)
		return nil
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Recompute and cache the trending topic snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()

		result := app.Trending.Refresh(ctx)
		logger.Info("trending refresh finished",
			"global_topics", len(result.Global),
			"countries", len(result.Countries))
		return nil
	},
}

var healthAuditCmd = &cobra.Command{
	Use:   "health-audit",
	Short: "Audit source health and persist quality scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
		defer cancel()

		result, err := app.Health.Audit(ctx)
		if err != nil {
			return err
		}
		logger.Info("health audit finished",
			"sources", result.Sources,
			"healthy", result.Healthy,
			"degraded", result.Degraded,
			"failing", result.Failing,
			"critical", result.Critical,
			"alerts", len(result.Alerts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd, syncCmd, trendingCmd, healthAuditCmd)
}
