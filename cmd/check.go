package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/product-crawler/internal/errorsink"
	"github.com/JakeFAU/product-crawler/internal/retry"
	"github.com/JakeFAU/product-crawler/internal/server"
)

// newCheckCmd creates the 'check' subcommand. It validates the configuration
// and the per-domain component wiring without touching the network.
func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and component wiring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			sink := &errorsink.Memory{}
			reg, err := server.BuildRegistry(cfg, retry.New(cfg.Crawler.MaxRetry, sink, logger), sink, logger)
			if err != nil {
				return err
			}
			domain, err := cfg.Domain()
			if err != nil {
				return err
			}
			robotsURL, err := cfg.RobotsTxtURL()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "crawled domain: %s\n", domain)
			fmt.Fprintf(out, "robots.txt:     %s\n", robotsURL)
			fmt.Fprintf(out, "store:          %s\n", cfg.Crawler.Store)
			fmt.Fprintf(out, "queue:          %s\n", cfg.Queue.Backend)
			fmt.Fprintf(out, "sinks:          %v\n", cfg.Sink.Providers)
			for _, d := range reg.Domains() {
				fmt.Fprintf(out, "domain %s: ok\n", d)
			}
			return nil
		},
	}
}
