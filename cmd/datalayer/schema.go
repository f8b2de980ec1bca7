package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/artpar/datalayer/adapters/schemasource"
	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/registry"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect schemas",
	Long: `Inspect the schemas of the configured schema location.

Examples:
  datalayer schema show node
  datalayer schema show node/definitions/port
  datalayer schema check
  datalayer schema check user role`,
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show the attributes of a schema path",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaShow,
}

var schemaCheckCmd = &cobra.Command{
	Use:   "check [name...]",
	Short: "Load schemas and resolve their references",
	Long: `Load each named schema, or every schema of the location when none is
given, and construct an empty object of it. This resolves all references,
so a schema passes only when everything it refers to loads too.`,
	RunE: runSchemaCheck,
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaCheckCmd)
}

func openRegistry() (*registry.Registry, *schemasource.Source, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	src, err := schemasource.New(cfg.Schemas.URI, cfg.Schemas.Version)
	if err != nil {
		return nil, nil, err
	}
	return registry.New(src), src, nil
}

func runSchemaShow(cmd *cobra.Command, args []string) error {
	reg, _, err := openRegistry()
	if err != nil {
		return err
	}

	caps, err := reg.Capabilities(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Schema:   %s\n", caps.Path)
	fmt.Fprintf(out, "Identity: %v\n", caps.Identity)
	fmt.Fprintf(out, "Version:  %v\n\n", caps.Version)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tKIND\tSCHEMA\tARRAY")
	fmt.Fprintln(w, "----\t----\t----\t------\t-----")

	for _, c := range caps.Attributes {
		array := "-"
		if len(c.ArrayOps) > 0 {
			array = "items: " + strings.Join(c.Items, ", ")
			if c.Tuple {
				array = fmt.Sprintf("tuple(%d): %s", c.Width, strings.Join(c.Items, ", "))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.Name, c.Type, orDash(string(c.Kind)), orDash(c.Schema), array)
	}
	return w.Flush()
}

func runSchemaCheck(cmd *cobra.Command, args []string) error {
	reg, src, err := openRegistry()
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names, err = src.List()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range names {
		if _, err := object.New(reg, name, nil); err != nil {
			fmt.Fprintf(out, "  %s %s\n      Error: %v\n", crossMark, name, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "  %s %s\n", checkMark, name)
	}

	fmt.Fprintln(out)
	if failed > 0 {
		return fmt.Errorf("%d of %d schemas failed", failed, len(names))
	}
	fmt.Fprintf(out, "All %d schemas are valid (%d loaded).\n", len(names), len(reg.List()))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
