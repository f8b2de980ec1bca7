// Package drivertest checks that a ports.Driver honors the storage contract.
//
// Usage:
//
//	func TestDriver(t *testing.T) {
//		drivertest.Run(t, func(t *testing.T) ports.Driver {
//			return memory.NewDriver()
//		})
//	}
package drivertest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/artpar/datalayer/ports"
	"github.com/google/go-cmp/cmp"
)

// Factory returns an empty driver. It is called once per subtest.
type Factory func(t *testing.T) ports.Driver

// Run executes the contract suite against drivers built by newDriver.
func Run(t *testing.T, newDriver Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, d ports.Driver)
	}{
		{"SaveAndFind", testSaveAndFind},
		{"NotFound", testNotFound},
		{"Upsert", testUpsert},
		{"Reindex", testReindex},
		{"UniqueViolation", testUniqueViolation},
		{"UniqueAcrossVersions", testUniqueAcrossVersions},
		{"UniqueWithinBatch", testUniqueWithinBatch},
		{"IdentityNotUnique", testIdentityNotUnique},
		{"EmptyIndexValue", testEmptyIndexValue},
		{"VersionFilter", testVersionFilter},
		{"Delete", testDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newDriver(t))
		})
	}
}

func doc(path, identity string, body map[string]any) ports.Document {
	return ports.Document{SchemaPath: path, Identity: identity, Body: body}
}

func entry(path, attr string, value any, identity string) ports.IndexEntry {
	return ports.IndexEntry{SchemaPath: path, Attr: attr, Value: value, Identity: identity}
}

func testSaveAndFind(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	body := map[string]any{
		"_id":    "abc-123",
		"name":   "camera",
		"count":  float64(3),
		"ports":  []any{"ref:node/definitions/port:p1", map[string]any{"inline": true}},
		"nested": map[string]any{"k": "v"},
	}

	ids, err := d.Save(ctx,
		[]ports.Document{doc("node/definitions/port", "p1", map[string]any{"name": "out"}), doc("node", "abc-123", body)},
		[]ports.IndexEntry{entry("node", "_id", "abc-123", "abc-123")},
	)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if diff := cmp.Diff([]string{"p1", "abc-123"}, ids); diff != "" {
		t.Errorf("Save ids mismatch (-want +got):\n%s", diff)
	}

	got, err := d.FindByRef(ctx, "node:abc-123")
	if err != nil {
		t.Fatalf("FindByRef failed: %v", err)
	}
	if diff := cmp.Diff(body, got); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	// Reads are not aliased to stored state.
	got["name"] = "changed"
	again, _ := d.FindByRef(ctx, "node:abc-123")
	if again["name"] != "camera" {
		t.Error("mutating a read changed the stored document")
	}

	port, err := d.FindByRef(ctx, "node/definitions/port:p1")
	if err != nil || port["name"] != "out" {
		t.Errorf("FindByRef(port) = %v, %v", port, err)
	}

	members, err := d.FindIDBy(ctx, ports.IndexPrefix("node", "_id"), "abc-123", ports.AllVersions)
	if err != nil {
		t.Fatalf("FindIDBy failed: %v", err)
	}
	if diff := cmp.Diff([]string{"abc-123"}, members); diff != "" {
		t.Errorf("FindIDBy mismatch (-want +got):\n%s", diff)
	}
}

func testNotFound(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	if _, err := d.FindByRef(ctx, "node:missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("FindByRef(missing) error = %v, want ErrNotFound", err)
	}

	ids, err := d.FindIDBy(ctx, ports.IndexPrefix("node", "_name"), "nobody", ports.AllVersions)
	if err != nil {
		t.Fatalf("FindIDBy failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("FindIDBy(empty) = %v", ids)
	}
}

func testUpsert(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	for _, name := range []string{"first", "second"} {
		_, err := d.Save(ctx,
			[]ports.Document{doc("user", "u1", map[string]any{"_email": "a@x", "name": name})},
			[]ports.IndexEntry{entry("user", "_email", "a@x", "u1")},
		)
		if err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
	}

	got, _ := d.FindByRef(ctx, "user:u1")
	if got["name"] != "second" {
		t.Errorf("name = %v, want second", got["name"])
	}

	ids, _ := d.FindIDBy(ctx, ports.IndexPrefix("user", "_email"), "a@x", ports.AllVersions)
	if diff := cmp.Diff([]string{"u1"}, ids); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

func testReindex(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	save := func(id string, entries ...ports.IndexEntry) error {
		_, err := d.Save(ctx, []ports.Document{doc("user", id, map[string]any{})}, entries)
		return err
	}
	members := func(value string) []string {
		ids, err := d.FindIDBy(ctx, ports.IndexPrefix("user", "_email"), value, ports.AllVersions)
		if err != nil {
			t.Fatalf("FindIDBy(%s) failed: %v", value, err)
		}
		return ids
	}

	if err := save("u1", entry("user", "_email", "x@a", "u1")); err != nil {
		t.Fatalf("Save(x) failed: %v", err)
	}
	if err := save("u1", entry("user", "_email", "y@a", "u1")); err != nil {
		t.Fatalf("Save(y) failed: %v", err)
	}

	if got := members("x@a"); len(got) != 0 {
		t.Errorf("old value still indexed: %v", got)
	}
	if diff := cmp.Diff([]string{"u1"}, members("y@a")); diff != "" {
		t.Errorf("new value mismatch (-want +got):\n%s", diff)
	}

	// The old value is free for another identity.
	if err := save("u2", entry("user", "_email", "x@a", "u2")); err != nil {
		t.Errorf("Save(u2, x) failed: %v", err)
	}

	// Saving without the entry drops the membership.
	if err := save("u1"); err != nil {
		t.Fatalf("Save(u1) failed: %v", err)
	}
	if got := members("y@a"); len(got) != 0 {
		t.Errorf("cleared value still indexed: %v", got)
	}
}

func testUniqueViolation(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	_, err := d.Save(ctx,
		[]ports.Document{doc("user", "a", map[string]any{"_tag": "x"})},
		[]ports.IndexEntry{entry("user", "_tag", "x", "a")},
	)
	if err != nil {
		t.Fatalf("Save(a) failed: %v", err)
	}

	_, err = d.Save(ctx,
		[]ports.Document{doc("user", "b", map[string]any{"_tag": "x"})},
		[]ports.IndexEntry{entry("user", "_tag", "y", "b"), entry("user", "_tag", "x", "b")},
	)
	if !errors.Is(err, ports.ErrUniqueConstraint) {
		t.Fatalf("Save(b) error = %v, want ErrUniqueConstraint", err)
	}
	var verr *ports.UniqueViolationError
	if !errors.As(err, &verr) || verr.Owner != "a" {
		t.Errorf("violation = %+v, want owner a", verr)
	}

	// Nothing of b was written.
	if _, err := d.FindByRef(ctx, "user:b"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("FindByRef(b) error = %v, want ErrNotFound", err)
	}
	ids, _ := d.FindIDBy(ctx, ports.IndexPrefix("user", "_tag"), "x", ports.AllVersions)
	if slices.Contains(ids, "b") {
		t.Errorf("index x = %v, must not contain b", ids)
	}
	ids, _ = d.FindIDBy(ctx, ports.IndexPrefix("user", "_tag"), "y", ports.AllVersions)
	if len(ids) != 0 {
		t.Errorf("index y = %v, want empty", ids)
	}
}

func testUniqueAcrossVersions(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	for _, v := range []string{"1.0", "1.1"} {
		identity := "n1:" + v
		_, err := d.Save(ctx,
			[]ports.Document{doc("node", identity, map[string]any{"_name": "cam"})},
			[]ports.IndexEntry{entry("node", "_name", "cam", identity)},
		)
		if err != nil {
			t.Fatalf("Save(%s) failed: %v", identity, err)
		}
	}

	ids, _ := d.FindIDBy(ctx, ports.IndexPrefix("node", "_name"), "cam", ports.AllVersions)
	if diff := cmp.Diff([]string{"n1:1.0", "n1:1.1"}, ids); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
}

func testUniqueWithinBatch(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	_, err := d.Save(ctx,
		[]ports.Document{doc("user", "a", nil), doc("user", "b", nil)},
		[]ports.IndexEntry{entry("user", "_tag", "x", "a"), entry("user", "_tag", "x", "b")},
	)
	if !errors.Is(err, ports.ErrUniqueConstraint) {
		t.Errorf("Save error = %v, want ErrUniqueConstraint", err)
	}
	if _, err := d.FindByRef(ctx, "user:a"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("FindByRef(a) error = %v, want ErrNotFound", err)
	}
}

func testIdentityNotUnique(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		identity := id + ":latest"
		_, err := d.Save(ctx,
			[]ports.Document{doc("node", identity, map[string]any{})},
			[]ports.IndexEntry{
				entry("node", "_id", id, identity),
				entry("node", "_version", "latest", identity),
			},
		)
		if err != nil {
			t.Fatalf("Save(%s) failed: %v", identity, err)
		}
	}

	ids, _ := d.FindIDBy(ctx, ports.IndexPrefix("node", "_version"), "latest", ports.AllVersions)
	if diff := cmp.Diff([]string{"a:latest", "b:latest"}, ids); diff != "" {
		t.Errorf("_version index mismatch (-want +got):\n%s", diff)
	}
}

func testEmptyIndexValue(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	_, err := d.Save(ctx,
		[]ports.Document{doc("user", "a", nil)},
		[]ports.IndexEntry{entry("user", "_tag", "", "a")},
	)
	if !errors.Is(err, ports.ErrIndexValueEmpty) {
		t.Errorf("Save error = %v, want ErrIndexValueEmpty", err)
	}
}

func testVersionFilter(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	var entries []ports.IndexEntry
	var docs []ports.Document
	for _, identity := range []string{"f1:1.0", "f1:1.1", "f1:latest"} {
		docs = append(docs, doc("flow", identity, map[string]any{}))
		entries = append(entries, entry("flow", "_id", "f1", identity))
	}
	if _, err := d.Save(ctx, docs, entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tests := []struct {
		version string
		want    []string
	}{
		{"1.1", []string{"f1:1.1"}},
		{"latest", []string{"f1:latest"}},
		{ports.AllVersions, []string{"f1:1.0", "f1:1.1", "f1:latest"}},
		{"2.0", []string{}},
	}

	for _, tt := range tests {
		ids, err := d.FindIDBy(ctx, ports.IndexPrefix("flow", "_id"), "f1", tt.version)
		if err != nil {
			t.Fatalf("FindIDBy(%s) failed: %v", tt.version, err)
		}
		if len(ids) == 0 && len(tt.want) == 0 {
			continue
		}
		if diff := cmp.Diff(tt.want, ids); diff != "" {
			t.Errorf("FindIDBy(%s) mismatch (-want +got):\n%s", tt.version, diff)
		}
	}
}

func testDelete(t *testing.T, d ports.Driver) {
	ctx := context.Background()

	_, err := d.Save(ctx,
		[]ports.Document{doc("user", "a", map[string]any{"_tag": "x"})},
		[]ports.IndexEntry{entry("user", "_tag", "x", "a")},
	)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := d.Delete(ctx, []string{"user:a", "ref:user:missing"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := d.FindByRef(ctx, "user:a"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("FindByRef after Delete error = %v, want ErrNotFound", err)
	}
	ids, _ := d.FindIDBy(ctx, ports.IndexPrefix("user", "_tag"), "x", ports.AllVersions)
	if len(ids) != 0 {
		t.Errorf("index after Delete = %v", ids)
	}

	// The value is free again.
	_, err = d.Save(ctx,
		[]ports.Document{doc("user", "b", map[string]any{"_tag": "x"})},
		[]ports.IndexEntry{entry("user", "_tag", "x", "b")},
	)
	if err != nil {
		t.Errorf("Save after Delete failed: %v", err)
	}
}
