package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/server"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs the service until
// it is interrupted.
func newCrawlCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run the crawler service",
		Long: `Builds the queues, dedup store, fetcher and product sinks from the
configuration, loads robots.txt, starts the visit and product workers and the
status server, and crawls until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			zap.ReplaceGlobals(logger)

			app, err := server.Build(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("build failed", zap.Error(err))
				return fmt.Errorf("build application: %w", err)
			}
			if err := app.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("run crawler: %w", err)
			}
			return nil
		},
	}
}
