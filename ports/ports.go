// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() string

// New calls f.
func (f IDFunc) New() string { return f() }

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SchemaLoader retrieves raw schema documents by name.
// Loaders are called once per name; the registry caches the result.
type SchemaLoader interface {
	// Load returns the JSON or YAML source of the named schema.
	// It returns an error wrapping schema.ErrSchemaNotFound when the name is unknown.
	Load(name string) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Driver errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrUniqueConstraint = errors.New("unique constraint violation")
	ErrIndexValueEmpty  = errors.New("indexed value must not be empty")
)

// UniqueViolationError reports an index value already owned by another identity.
type UniqueViolationError struct {
	Key      string
	Attr     string
	Value    string
	Identity string
	Owner    string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("%s:%s not unique, already owned by %s", e.Attr, e.Value, e.Owner)
}

func (e *UniqueViolationError) Unwrap() error {
	return ErrUniqueConstraint
}

// Document is the unit a driver persists.
type Document struct {
	SchemaPath string
	Identity   string
	Body       map[string]any
}

// Key returns the storage key of the document.
func (d Document) Key() string {
	return DocumentKey(d.SchemaPath, d.Identity)
}

// IndexEntry binds a reserved attribute value to its owning identity.
type IndexEntry struct {
	SchemaPath string
	Attr       string
	Value      any
	Identity   string
}

// Key returns the index set key of the entry.
func (e IndexEntry) Key() string {
	return IndexKey(e.SchemaPath, e.Attr, IndexValue(e.Value))
}

// Prefix returns the index key without its value.
func (e IndexEntry) Prefix() string {
	return IndexPrefix(e.SchemaPath, e.Attr)
}

// Driver persists documents and index sets.
//
// Save must check every non-identity index entry for uniqueness before
// writing anything, and the check must be atomic with the following index
// insertion for the same key. Writes across documents need not be atomic.
type Driver interface {
	// Save upserts docs and adds entries to their index sets.
	// It returns the identities of the saved documents in order.
	Save(ctx context.Context, docs []Document, entries []IndexEntry) ([]string, error)

	// FindByRef returns the body stored under "{schema_path}:{identity}".
	// It returns ErrNotFound when no document exists.
	FindByRef(ctx context.Context, ref string) (map[string]any, error)

	// FindIDBy returns the members of the index set "{prefix}:{value}",
	// filtered to version unless version is AllVersions.
	FindIDBy(ctx context.Context, prefix, value, version string) ([]string, error)

	// Delete removes the documents under the given refs. Missing refs are ignored.
	Delete(ctx context.Context, refs []string) error
}
