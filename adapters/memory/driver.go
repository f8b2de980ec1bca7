// Package memory provides an in-memory storage driver.
// It is used for tests and for running without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/artpar/datalayer/ports"
)

// Driver is an in-memory implementation of ports.Driver.
//
// Bodies are stored as JSON, so reads return fresh maps with the number
// types a real backend would return.
type Driver struct {
	mu      sync.RWMutex
	docs    map[string][]byte          // document key -> body
	indexes map[string]map[string]bool // index key -> identities
	owned   map[string]map[string]bool // document key -> index keys
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		docs:    make(map[string][]byte),
		indexes: make(map[string]map[string]bool),
		owned:   make(map[string]map[string]bool),
	}
}

// Save checks uniqueness and writes docs and entries under one lock.
// The index memberships of each saved document are replaced by entries.
func (d *Driver) Save(ctx context.Context, docs []ports.Document, entries []ports.IndexEntry) ([]string, error) {
	bodies := make([][]byte, len(docs))
	for i, doc := range docs {
		b, err := json.Marshal(doc.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", doc.Key(), err)
		}
		bodies[i] = b
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ports.CheckUnique(entries, d.members); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		d.unindex(doc.Key(), doc.Identity)
	}

	for _, e := range entries {
		if !ports.Indexed(e) {
			continue
		}
		key := e.Key()
		if d.indexes[key] == nil {
			d.indexes[key] = make(map[string]bool)
		}
		d.indexes[key][e.Identity] = true

		docKey := ports.DocumentKey(e.SchemaPath, e.Identity)
		if d.owned[docKey] == nil {
			d.owned[docKey] = make(map[string]bool)
		}
		d.owned[docKey][key] = true
	}

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		d.docs[doc.Key()] = bodies[i]
		ids = append(ids, doc.Identity)
	}

	return ids, nil
}

// members returns the identities in an index set. Callers hold the lock.
func (d *Driver) members(key string) ([]string, error) {
	out := make([]string, 0, len(d.indexes[key]))
	for id := range d.indexes[key] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

// FindByRef returns the document stored under ref.
func (d *Driver) FindByRef(ctx context.Context, ref string) (map[string]any, error) {
	d.mu.RLock()
	b, ok := d.docs[strings.TrimPrefix(ref, ports.RefPrefix)]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, ref)
	}

	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return body, nil
}

// FindIDBy returns the sorted members of "{prefix}:{value}" matching version.
func (d *Driver) FindIDBy(ctx context.Context, prefix, value, version string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	all, _ := d.members(prefix + ":" + value)
	ids := make([]string, 0, len(all))
	for _, id := range all {
		if ports.MatchVersion(id, version) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes documents and their index memberships.
func (d *Driver) Delete(ctx context.Context, refs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ref := range refs {
		key := strings.TrimPrefix(ref, ports.RefPrefix)
		_, identity, ok := ports.SplitKey(key)
		if !ok {
			continue
		}

		delete(d.docs, key)
		d.unindex(key, identity)
	}

	return nil
}

// unindex removes identity from every index set the document at key is a
// member of. Callers hold the lock.
func (d *Driver) unindex(key, identity string) {
	for idx := range d.owned[key] {
		delete(d.indexes[idx], identity)
		if len(d.indexes[idx]) == 0 {
			delete(d.indexes, idx)
		}
	}
	delete(d.owned, key)
}

// Len returns the number of stored documents.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

// Clear removes all data.
func (d *Driver) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs = make(map[string][]byte)
	d.indexes = make(map[string]map[string]bool)
	d.owned = make(map[string]map[string]bool)
}

// Ensure interface compliance.
var _ ports.Driver = (*Driver)(nil)
