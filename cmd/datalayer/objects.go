package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/artpar/datalayer/core/object"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <schema> <file.json>",
	Short: "Store an object graph",
	Long: `Construct an object of <schema> from a JSON file and store its graph.

Nested objects with an identity are stored as their own documents.
The stored identities are printed, children before their owners.
Use "-" to read the object from stdin.

Examples:
  datalayer put user ada.json
  datalayer put role admin.json --ref admin
  echo '{"_id":"n1"}' | datalayer put node -`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <schema> <id>",
	Short: "Fetch an object by identity",
	Long: `Fetch the object stored under "{schema}:{id}" with its references
resolved and print it as JSON. Versioned schemas take the composite
identity, e.g. "n1:latest".`,
	Args: cobra.ExactArgs(2),
	RunE: runGet,
}

var findCmd = &cobra.Command{
	Use:   "find <schema> <attr> <value>",
	Short: "Find objects by an indexed attribute",
	Long: `Print every object of <schema> whose reserved attribute <attr> equals
<value>. The leading "_" of the attribute may be omitted.

Examples:
  datalayer find user email ada@example.com
  datalayer find node id n1 --version latest`,
	Args: cobra.ExactArgs(3),
	RunE: runFind,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <schema> <id>...",
	Short: "Delete objects by identity",
	Long:  `Delete the documents of <schema> stored under the given identities. Referenced documents are kept.`,
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDelete,
}

var (
	putRef      string
	findVersion string
)

func init() {
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(deleteCmd)

	putCmd.Flags().StringVar(&putRef, "ref", "", "identity for objects whose schema declares no _id")
	findCmd.Flags().StringVar(&findVersion, "version", "", "only match this version (default: all versions)")
}

func runPut(cmd *cobra.Command, args []string) error {
	fields, err := readFields(cmd, args[1])
	if err != nil {
		return err
	}

	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	obj, err := object.New(app.Registry, args[0], fields)
	if err != nil {
		return err
	}

	ids, err := app.Storage.Store(cmd.Context(), app.Storage.Models().Wrap(obj), putRef)
	if err != nil {
		return err
	}

	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	m, err := app.Storage.FindByRef(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("schema %s declares no identity", args[0])
	}

	return printJSON(cmd, m.Base().Plain())
}

func runFind(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	ms, err := app.Storage.FindAllBy(cmd.Context(), args[0], args[1], args[2], findVersion)
	if err != nil {
		return err
	}

	out := make([]map[string]any, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Base().Plain())
	}
	return printJSON(cmd, out)
}

func runDelete(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Registry.Definition(args[0]); err != nil {
		return err
	}
	if err := app.Storage.Delete(cmd.Context(), args[0], args[1:]...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d object(s)\n", len(args)-1)
	return nil
}

// readFields decodes the JSON object in path, or stdin for "-".
func readFields(cmd *cobra.Command, path string) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var fields map[string]any
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fields, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
