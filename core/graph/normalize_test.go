package graph_test

import (
	"errors"
	"testing"

	"github.com/artpar/datalayer/adapters/idgen"
	"github.com/artpar/datalayer/core/graph"
	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/object/objecttest"
	"github.com/artpar/datalayer/ports"
	"github.com/google/go-cmp/cmp"
)

func newNode(t *testing.T) *object.Object {
	t.Helper()

	node, err := object.New(objecttest.Registry(), "node", map[string]any{
		"id":   "n1",
		"name": "camera",
		"ports": []any{
			map[string]any{
				"name":      "image",
				"direction": "out",
				"callback": map[string]any{
					"_id":  "cb1",
					"code": "print()",
					"tags": []any{map[string]any{"name": "label", "value": "cb"}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return node
}

func TestNormalize_Node(t *testing.T) {
	node := newNode(t)

	res, err := graph.NewNormalizer(idgen.NewSequential("t-")).Normalize(node)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if res.Identity != "n1:latest" {
		t.Errorf("Identity = %q, want n1:latest", res.Identity)
	}
	if res.Token() != "ref:node:n1:latest" {
		t.Errorf("Token() = %q", res.Token())
	}

	wantBody := map[string]any{
		"_id":        "n1",
		"_name":      "camera",
		"_version":   "latest",
		"parameters": []any{},
		"tags":       []any{},
		"ports": []any{
			map[string]any{
				"name":       "image",
				"direction":  "out",
				"protocol":   "",
				"tags":       []any{},
				"parameters": []any{},
				"callback":   "ref:callback:cb1:latest",
			},
		},
	}
	if diff := cmp.Diff(wantBody, res.Body); diff != "" {
		t.Errorf("Body mismatch (-want +got):\n%s", diff)
	}

	wantDocs := []ports.Document{
		{
			SchemaPath: "callback/definitions/tag",
			Identity:   "t-1",
			Body:       map[string]any{"_id": "t-1", "name": "label", "value": "cb"},
		},
		{
			SchemaPath: "callback",
			Identity:   "cb1:latest",
			Body: map[string]any{
				"_id":        "cb1",
				"_name":      "",
				"_version":   "latest",
				"code":       "print()",
				"libraries":  []any{},
				"parameters": []any{},
				"tags":       []any{"ref:callback/definitions/tag:t-1"},
			},
		},
		{SchemaPath: "node", Identity: "n1:latest", Body: wantBody},
	}
	if diff := cmp.Diff(wantDocs, res.Documents); diff != "" {
		t.Errorf("Documents mismatch (-want +got):\n%s", diff)
	}

	wantEntries := []ports.IndexEntry{
		{SchemaPath: "node", Attr: "_id", Value: "n1", Identity: "n1:latest"},
		{SchemaPath: "node", Attr: "_name", Value: "camera", Identity: "n1:latest"},
		{SchemaPath: "node", Attr: "_version", Value: "latest", Identity: "n1:latest"},
		{SchemaPath: "callback", Attr: "_id", Value: "cb1", Identity: "cb1:latest"},
		{SchemaPath: "callback", Attr: "_version", Value: "latest", Identity: "cb1:latest"},
		{SchemaPath: "callback/definitions/tag", Attr: "_id", Value: "t-1", Identity: "t-1"},
	}
	if diff := cmp.Diff(wantEntries, res.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_StableIdentity(t *testing.T) {
	node := newNode(t)
	n := graph.NewNormalizer(idgen.NewSequential("t-"))

	first, err := n.Normalize(node)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	second, err := n.Normalize(node)
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}

	if diff := cmp.Diff(first.Documents, second.Documents); diff != "" {
		t.Errorf("identities changed between runs (-first +second):\n%s", diff)
	}
}

func TestNormalize_InlinesObjectsWithoutIdentity(t *testing.T) {
	user, err := object.New(objecttest.Registry(), "user", map[string]any{
		"email": "a@example.com",
		"roles": []any{
			map[string]any{"name": "admin", "permissions": []any{"read", "write"}},
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := graph.NewNormalizer(idgen.NewSequential("u-")).Normalize(user)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if res.Identity != "u-1" {
		t.Errorf("Identity = %q, want u-1", res.Identity)
	}
	if len(res.Documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(res.Documents))
	}

	wantRoles := []any{
		map[string]any{"name": "admin", "permissions": []any{"read", "write"}},
	}
	if diff := cmp.Diff(wantRoles, res.Body["roles"]); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}

	wantEntries := []ports.IndexEntry{
		{SchemaPath: "user", Attr: "_email", Value: "a@example.com", Identity: "u-1"},
		{SchemaPath: "user", Attr: "_id", Value: "u-1", Identity: "u-1"},
	}
	if diff := cmp.Diff(wantEntries, res.Entries); diff != "" {
		t.Errorf("Entries mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_SkipsBlankIndexValues(t *testing.T) {
	user, err := object.New(objecttest.Registry(), "user", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := graph.NewNormalizer(idgen.NewSequential("u-")).Normalize(user)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	for _, e := range res.Entries {
		if e.Attr == "_email" {
			t.Errorf("blank _email was indexed: %+v", e)
		}
	}
}

func TestNormalize_RootWithoutIdentity(t *testing.T) {
	role, err := object.New(objecttest.Registry(), "role", map[string]any{"name": "viewer"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := graph.NewNormalizer(idgen.NewSequential("r-")).Normalize(role)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if res.Identity != "" || res.Token() != "" {
		t.Errorf("Identity = %q, Token() = %q, want empty", res.Identity, res.Token())
	}
	if len(res.Documents) != 0 || len(res.Entries) != 0 {
		t.Errorf("got %d documents and %d entries, want none", len(res.Documents), len(res.Entries))
	}
	if res.Body["name"] != "viewer" {
		t.Errorf("Body = %v", res.Body)
	}
}

func TestNormalize_LinkedBothWays(t *testing.T) {
	reg := objecttest.Registry()

	root, err := object.New(reg, "tree", map[string]any{"_id": "root", "label": "root"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	child, err := object.New(reg, "tree", map[string]any{"_id": "c", "label": "leaf"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := child.Set("parent", root); err != nil {
		t.Fatalf("Set parent failed: %v", err)
	}
	if err := root.Append("children", child); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	res, err := graph.NewNormalizer(idgen.NewSequential("t-")).Normalize(root)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	wantDocs := []ports.Document{
		{SchemaPath: "tree", Identity: "c", Body: map[string]any{
			"_id": "c", "label": "leaf", "parent": "ref:tree:root", "children": []any{},
		}},
		{SchemaPath: "tree", Identity: "root", Body: map[string]any{
			"_id": "root", "label": "root", "parent": nil, "children": []any{"ref:tree:c"},
		}},
	}
	if diff := cmp.Diff(wantDocs, res.Documents); diff != "" {
		t.Errorf("Documents mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_CycleWithoutIdentity(t *testing.T) {
	reg := objecttest.Registry()
	if err := reg.Set("link", []byte(`{"properties": {"label": {"type": "string"}, "next": {"$ref": "link"}}}`)); err != nil {
		t.Fatal(err)
	}

	a, err := object.New(reg, "link", map[string]any{"label": "a"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b, err := object.New(reg, "link", map[string]any{"label": "b"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Set("next", b); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("next", a); err != nil {
		t.Fatal(err)
	}

	if _, err := graph.NewNormalizer(idgen.NewSequential("l-")).Normalize(a); !errors.Is(err, graph.ErrReferenceCycle) {
		t.Errorf("Normalize error = %v, want ErrReferenceCycle", err)
	}
}
