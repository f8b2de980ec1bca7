// Package schemasource loads schema documents from a schema location URI.
//
// A location "file://{folder}" with version v serves the schema "name" from
// "{folder}/{v}/name.json", falling back to name.yaml and name.yml.
// http and https locations are recognized but not supported.
package schemasource

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/ports"
)

// DefaultVersion is used when no version label is given.
const DefaultVersion = "latest"

var extensions = []string{".json", ".yaml", ".yml"}

// Source is a file-backed schema loader.
type Source struct {
	dir string
}

// New returns the loader for uri and version.
func New(uri, version string) (*Source, error) {
	if version == "" {
		version = DefaultVersion
	}

	switch {
	case strings.HasPrefix(uri, "file://"):
		folder := strings.TrimPrefix(uri, "file://")
		if folder == "" {
			return nil, fmt.Errorf("%w: empty path in %q", schema.ErrUnsupportedSchemaSource, uri)
		}
		return &Source{dir: filepath.Join(folder, version)}, nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return nil, fmt.Errorf("%w: %s (http sources are not implemented)", schema.ErrUnsupportedSchemaSource, uri)
	default:
		return nil, fmt.Errorf("%w: %q", schema.ErrUnsupportedSchemaSource, uri)
	}
}

// Dir returns the folder schemas are read from.
func (s *Source) Dir() string { return s.dir }

// Load implements ports.SchemaLoader.
func (s *Source) Load(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: invalid name %q", schema.ErrSchemaNotFound, name)
	}

	for _, ext := range extensions {
		data, err := os.ReadFile(filepath.Join(s.dir, name+ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s in %s", schema.ErrSchemaNotFound, name, s.dir)
}

// List returns the sorted names of all schemas in the folder.
func (s *Source) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(extensions, ext) {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(e.Name(), ext))
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Ensure interface compliance.
var _ ports.SchemaLoader = (*Source)(nil)
