package main

import (
	"fmt"
	"os"

	"github.com/artpar/datalayer/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the datalayer configuration file.

Checks:
  - YAML syntax is valid
  - Values are in range
  - The schema location is readable (optional)
  - The storage driver opens (optional)

Examples:
  datalayer validate
  datalayer validate --check-driver --config /etc/datalayer/config.yaml`,
	RunE: runValidate,
}

var (
	validateCheckSchemas bool
	validateCheckDriver  bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckSchemas, "check-schemas", true, "check that the schema location lists schemas")
	validateCmd.Flags().BoolVar(&validateCheckDriver, "check-driver", false, "check that the storage driver opens")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config syntax valid\n", checkMark)

	fmt.Fprintf(out, "  %s Schemas: %s (%s)\n", checkMark, cfg.Schemas.URI, cfg.Schemas.Version)
	fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.Driver)
	fmt.Fprintf(out, "  %s Server: %s\n", checkMark, cfg.Server.Addr())

	if validateCheckSchemas {
		_, src, err := openRegistry()
		var names []string
		if err == nil {
			names, err = src.List()
		}
		if err != nil {
			fmt.Fprintf(out, "  %s Schema location readable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Schema location readable (%d schemas)\n", checkMark, len(names))
		}
	}

	if validateCheckDriver {
		app, err := openApp(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "  %s Storage driver opens\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			app.Close()
			fmt.Fprintf(out, "  %s Storage driver opens\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}
