// Package cmd defines the baobab command tree: the long-running server
// plus one-shot triggers for collection, edge sync, trending refresh
// and source health audits.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"baobab/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "baobab",
	Short: "Baobab is the news processing service: feed collection, enrichment, search and trending.",
	Long: `Baobab ingests publisher RSS feeds across African markets, enriches
articles with cleaning, keyword tagging and quality scoring, and serves
search, ranking, clustering and trending over HTTP.

Run "baobab serve" for the long-running service, or use the one-shot
subcommands to trigger individual pipelines.`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() {
	logger.Init()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
