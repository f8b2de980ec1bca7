package ports

import (
	"fmt"

	"github.com/artpar/datalayer/core/schema"
)

// Indexed reports whether entry is stored in an index set. Blank identity
// attribute values are skipped.
func Indexed(e IndexEntry) bool {
	return IndexValue(e.Value) != "" || !schema.IsIdentity(e.Attr)
}

// CheckUnique verifies that no index set of entries already holds a member
// with a different base id, and that entries of the same batch agree.
// Identity attributes are never checked. members returns the current
// members of an index key.
//
// Drivers call it before writing anything, under the same lock or
// transaction as the writes that follow.
func CheckUnique(entries []IndexEntry, members func(key string) ([]string, error)) error {
	batch := make(map[string]string, len(entries))

	for _, e := range entries {
		if schema.IsIdentity(e.Attr) {
			continue
		}

		value := IndexValue(e.Value)
		if value == "" {
			return fmt.Errorf("%w: %s.%s", ErrIndexValueEmpty, e.SchemaPath, e.Attr)
		}

		key := e.Key()
		base := BaseID(e.Identity)

		if owner, ok := batch[key]; ok && owner != base {
			return &UniqueViolationError{Key: key, Attr: e.Attr, Value: value, Identity: e.Identity, Owner: owner}
		}
		batch[key] = base

		existing, err := members(key)
		if err != nil {
			return fmt.Errorf("read index %s: %w", key, err)
		}
		for _, m := range existing {
			if BaseID(m) != base {
				return &UniqueViolationError{Key: key, Attr: e.Attr, Value: value, Identity: e.Identity, Owner: m}
			}
		}
	}

	return nil
}
