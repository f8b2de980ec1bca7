package object_test

import (
	"errors"
	"testing"

	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/object/objecttest"
	"github.com/artpar/datalayer/core/schema"
	"github.com/google/go-cmp/cmp"
)

func newRole(t *testing.T, fields map[string]any) *object.Object {
	t.Helper()
	role, err := object.New(objecttest.Registry(), "role", fields)
	if err != nil {
		t.Fatalf("New(role) failed: %v", err)
	}
	return role
}

func TestTupleArray_AppendBackfills(t *testing.T) {
	role := newRole(t, nil)

	if err := role.Append("permissions", "read"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := role.Append("permissions", "write", "all"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	perms, _ := role.Array("permissions")
	if perms.Len() != 2 {
		t.Errorf("Len() = %d, want 2", perms.Len())
	}
	if got := len(perms.Backing()); got != 4 {
		t.Errorf("backing size = %d, want 4", got)
	}

	first, _ := perms.Get(0)
	if diff := cmp.Diff([]any{"read", ""}, first); diff != "" {
		t.Errorf("Get(0) mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]any{"read", "", "write", "all"}, role.Plain()["permissions"]); diff != "" {
		t.Errorf("plain form mismatch (-want +got):\n%s", diff)
	}

	if err := role.Append("permissions", "a", "b", "c"); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Append(3 fields) error = %v, want ErrInvalidValue", err)
	}
	if err := role.Append("permissions", 1); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("Append(1) error = %v, want ErrTypeMismatch", err)
	}
	if perms.Len() != 2 {
		t.Errorf("failed appends changed the array: Len() = %d", perms.Len())
	}
}

func TestTupleArray_FromList(t *testing.T) {
	role := newRole(t, map[string]any{"permissions": []any{"a", "b", "c"}})

	perms, _ := role.Array("permissions")
	if perms.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", perms.Len())
	}
	last, _ := perms.Get(1)
	if diff := cmp.Diff([]any{"c", ""}, last); diff != "" {
		t.Errorf("short group not back-filled (-want +got):\n%s", diff)
	}
}

func TestTupleArray_SetDelete(t *testing.T) {
	role := newRole(t, map[string]any{"permissions": []any{"a", "b", "c", "d", "e", "f"}})
	perms, _ := role.Array("permissions")

	if err := perms.Set(1, []any{"x"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := perms.Set(1, "x"); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Set(non-list) error = %v, want ErrInvalidValue", err)
	}
	if err := perms.Delete(0); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	want := []any{"x", "", "e", "f"}
	if diff := cmp.Diff(want, perms.Backing()); diff != "" {
		t.Errorf("backing mismatch (-want +got):\n%s", diff)
	}

	for _, i := range []int{-1, 2, 10} {
		if _, err := perms.Get(i); !errors.Is(err, schema.ErrIndexOutOfBounds) {
			t.Errorf("Get(%d) error = %v, want ErrIndexOutOfBounds", i, err)
		}
		if err := perms.Delete(i); !errors.Is(err, schema.ErrIndexOutOfBounds) {
			t.Errorf("Delete(%d) error = %v, want ErrIndexOutOfBounds", i, err)
		}
		if err := perms.Set(i, []any{"y"}); !errors.Is(err, schema.ErrIndexOutOfBounds) {
			t.Errorf("Set(%d) error = %v, want ErrIndexOutOfBounds", i, err)
		}
	}
}

func TestArray_References(t *testing.T) {
	reg := objecttest.Registry()
	node, _ := object.New(reg, "node", nil)

	if err := node.Append("ports", map[string]any{"name": "p1", "direction": "in"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := node.Append("ports"); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	n, err := node.Len("ports")
	if err != nil || n != 2 {
		t.Fatalf("Len() = %d, %v; want 2", n, err)
	}

	empty, _ := node.Item("ports", 1)
	if empty.(*object.Object).MustGet("name") != "" {
		t.Error("Append() should add an empty port")
	}

	if err := node.Append("ports", map[string]any{"direction": "sideways"}); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Append(bad enum) error = %v, want ErrInvalidValue", err)
	}
	if err := node.Append("ports", map[string]any{}, map[string]any{}); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Append(two values) error = %v, want ErrInvalidValue", err)
	}

	if err := node.Remove("ports", 0); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if n, _ := node.Len("ports"); n != 1 {
		t.Errorf("Len() after Remove = %d, want 1", n)
	}
	if err := node.Remove("ports", 5); !errors.Is(err, schema.ErrIndexOutOfBounds) {
		t.Errorf("Remove(5) error = %v, want ErrIndexOutOfBounds", err)
	}
}

func TestArray_All(t *testing.T) {
	reg := objecttest.Registry()
	cb, _ := object.New(reg, "callback", map[string]any{"libraries": []any{"numpy", "scipy", "yaml"}})
	libs, _ := cb.Array("libraries")

	collect := func() []any {
		var out []any
		for _, v := range libs.All() {
			out = append(out, v)
		}
		return out
	}

	want := []any{"numpy", "scipy", "yaml"}
	if diff := cmp.Diff(want, collect()); diff != "" {
		t.Errorf("first pass mismatch (-want +got):\n%s", diff)
	}
	// Iteration restarts from the beginning.
	if diff := cmp.Diff(want, collect()); diff != "" {
		t.Errorf("second pass mismatch (-want +got):\n%s", diff)
	}

	var stopped []int
	for i := range libs.All() {
		stopped = append(stopped, i)
		if i == 1 {
			break
		}
	}
	if len(stopped) != 2 {
		t.Errorf("early stop visited %v", stopped)
	}
}

func TestArrayOp(t *testing.T) {
	reg := objecttest.Registry()
	cb, _ := object.New(reg, "callback", nil)

	if _, err := cb.ArrayOp("libraries", schema.OpAppend, "numpy"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if _, err := cb.ArrayOp("libraries", schema.OpSet, 0, "scipy"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, err := cb.ArrayOp("libraries", schema.OpGet, 0)
	if err != nil || v != "scipy" {
		t.Errorf("get = %v, %v", v, err)
	}
	n, _ := cb.ArrayOp("libraries", schema.OpLen)
	if n != 1 {
		t.Errorf("len = %v, want 1", n)
	}

	tests := []struct {
		name string
		attr string
		op   schema.ArrayOp
		args []any
		err  error
	}{
		{"slice", "libraries", schema.OpSlice, nil, schema.ErrUnsupportedOperation},
		{"insert", "libraries", schema.OpInsert, []any{0, "x"}, schema.ErrUnsupportedOperation},
		{"pop", "libraries", schema.OpPop, nil, schema.ErrUnsupportedOperation},
		{"sort", "libraries", schema.OpSort, nil, schema.ErrUnsupportedOperation},
		{"scalar attribute", "code", schema.OpAppend, []any{"x"}, schema.ErrUnsupportedOperation},
		{"unknown attribute", "nothing", schema.OpLen, nil, schema.ErrUnknownAttribute},
		{"bad index", "libraries", schema.OpGet, []any{"0"}, schema.ErrInvalidValue},
		{"missing index", "libraries", schema.OpRemove, nil, schema.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cb.ArrayOp(tt.attr, tt.op, tt.args...)
			if !errors.Is(err, tt.err) {
				t.Errorf("ArrayOp() error = %v, want %v", err, tt.err)
			}
		})
	}

	if _, err := cb.Array("code"); !errors.Is(err, schema.ErrUnsupportedOperation) {
		t.Errorf("Array(code) error = %v, want ErrUnsupportedOperation", err)
	}
}
