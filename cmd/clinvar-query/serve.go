package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/clinvar-query/internal/api"
	"github.com/clinvar-query/internal/app"
	"github.com/clinvar-query/internal/database"
	"github.com/clinvar-query/internal/mcp"
	"github.com/clinvar-query/internal/setup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			server := api.NewServer(a.Config.Server, a.Pipeline, a.Intake, a.Store, a.Logger)
			if err := server.Start(cmd.Context()); err != nil {
				return err
			}
			a.Logger.Info("Server stopped")
			return nil
		},
	}
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the annotation tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.NewServer(a.Config.MCP, a.Pipeline, a.Intake, a.Store, a.Logger).Run(cmd.Context())
		},
	}
	cmd.AddCommand(newMCPInstallCmd(opts), newMCPUninstallCmd())
	return cmd
}

func newMCPInstallCmd(opts *rootOptions) *cobra.Command {
	var clientConfig, name string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register this binary as an MCP server in the desktop client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clientConfigPath(clientConfig)
			if err != nil {
				return err
			}
			binary, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate executable: %w", err)
			}

			replaced, err := setup.Register(afero.NewOsFs(), path, name, setup.EntryFor(binary, opts.configFile))
			if err != nil {
				return err
			}
			verb := "Registered"
			if replaced {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q in %s; restart the client to load it\n", verb, name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientConfig, "client-config", "", "client config file (default: the desktop client's location for this OS)")
	cmd.Flags().StringVar(&name, "name", setup.DefaultServerName, "server name to register")
	return cmd
}

func newMCPUninstallCmd() *cobra.Command {
	var clientConfig, name string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the MCP server entry from the desktop client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := clientConfigPath(clientConfig)
			if err != nil {
				return err
			}
			removed, err := setup.Unregister(afero.NewOsFs(), path, name)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%q is not registered in %s\n", name, path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %q from %s\n", name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientConfig, "client-config", "", "client config file (default: the desktop client's location for this OS)")
	cmd.Flags().StringVar(&name, "name", setup.DefaultServerName, "server name to remove")
	return cmd
}

func clientConfigPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return setup.DesktopConfigPath()
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	for _, direction := range []string{"up", "down"} {
		direction := direction
		cmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: fmt.Sprintf("Apply migrations %s", direction),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cm, logger, err := loadConfig(opts)
				if err != nil {
					return err
				}
				return app.Migrate(cmd.Context(), cm, logger, direction)
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			runner, err := database.NewMigrationRunner(cm.GetDatabaseConnectionString(), logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			v, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
			return nil
		},
	})
	return cmd
}
