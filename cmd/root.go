// Package cmd defines the CLI commands of the product-crawler executable.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/product-crawler/internal/config"
	"github.com/JakeFAU/product-crawler/internal/logging"
)

type rootOptions struct {
	configPath string
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "product-crawler",
		Short: "Crawls one retail domain and publishes the products it finds.",
		Long: `product-crawler walks a single retail site from its trigger URL,
follows category and sitemap links within the domain, extracts structured
product records from product pages and publishes them to the configured sinks.
When every queue has been quiet long enough it starts a new crawl cycle.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default ./config.yaml or /etc/product-crawler/config.yaml)")

	cmd.AddCommand(newCrawlCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	return cmd
}

// load reads the configuration and builds the logger it describes.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}
