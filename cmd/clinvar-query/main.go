// Package main provides the clinvar-query command-line tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinvar-query/internal/app"
	"github.com/clinvar-query/internal/config"
	"github.com/clinvar-query/internal/logging"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "clinvar-query",
		Short:         "Annotate patient variant files with transcript and ClinVar data",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(
		newIngestCmd(opts),
		newAnnotateCmd(opts),
		newParseCmd(),
		newServeCmd(opts),
		newMCPCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// loadConfig reads and validates configuration and builds the logger
func loadConfig(opts *rootOptions) (*config.Manager, *logrus.Logger, error) {
	cm, err := config.NewManager(opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg := cm.GetConfig()
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cm.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cm, logger, nil
}

// openApp loads configuration and wires the full application
func openApp(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cm, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cm, logger)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
