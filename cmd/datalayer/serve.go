package main

import (
	"fmt"
	"os"

	"github.com/artpar/datalayer/bootstrap"
	"github.com/artpar/datalayer/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the datalayer HTTP server.

The server will:
  - Load configuration from datalayer.yaml (or --config)
  - Or load configuration from DATALAYER_* environment variables
  - Open the configured storage driver (memory, sqlite or redis)
  - Serve objects under /objects/{schema} and schemas under /schemas/{name}

With a config file and --hot-reload, the file is watched and SIGHUP
reloads it. The log level is applied without restart.

Examples:
  datalayer serve
  datalayer serve --config /etc/datalayer/config.yaml
  DATALAYER_DATABASE_DRIVER=memory datalayer serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !hasConfigFile {
		fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Models: models, Version: version})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if hasConfigFile && hotReload {
		holder, err := config.NewHolder(cfgFile, app.Logger.With().Str("component", "config").Logger())
		if err != nil {
			app.Close()
			return err
		}
		defer holder.Stop()

		if err := holder.WatchFile(); err != nil {
			app.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
		app.Watch(holder)
	}

	// Run (blocks until shutdown)
	return app.Run(ctx)
}
