package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/artpar/datalayer/bootstrap"
	"github.com/artpar/datalayer/config"
	"github.com/artpar/datalayer/core/object"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string

	// logOutput receives application logs of the object commands.
	logOutput io.Writer = os.Stderr

	// models binds model types to schemas for put and serve.
	models = object.NewModels()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "datalayer",
	Short: "Schema-driven object storage with indexed, deduplicated references",
	Long: `datalayer stores graphs of JSON-schema described objects.

Objects with an identity are stored once under "{schema}:{id}:{version}"
and referenced from their owners. Reserved attributes (names starting
with "_") are indexed and unique across objects.

Quick start:
  datalayer schema check user     # Load and resolve a schema
  datalayer put user ada.json     # Store an object graph
  datalayer get user <id>         # Fetch it back with references resolved
  datalayer serve                 # Start the HTTP server`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "datalayer.yaml", "config file path")
}

// loadConfig loads the config file, or the environment when it is absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// openApp wires the storage stack without starting the server.
// Callers close the returned app.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{LogOutput: logOutput, Models: models, Version: version})
	if err != nil {
		return nil, fmt.Errorf("error initializing: %w", err)
	}
	return app, nil
}
