package object_test

import (
	"errors"
	"testing"

	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/object/objecttest"
	"github.com/artpar/datalayer/core/schema"
)

func TestDecode(t *testing.T) {
	reg := objecttest.Registry()

	tests := []struct {
		name string
		data any
	}{
		{"bytes", []byte(`{"login": "ada", "level": 3}`)},
		{"string", `{"login": "ada", "level": 3}`},
		{"map", map[string]any{"login": "ada", "level": float64(3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := object.Decode(reg, nil, "user", tt.data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			user := m.Base()
			if user.MustGet("login") != "ada" || user.MustGet("level") != int64(3) {
				t.Errorf("decoded = %v", user.Plain())
			}
		})
	}

	if _, err := object.Decode(reg, nil, "user", `[1, 2]`); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Decode(list) error = %v, want ErrInvalidValue", err)
	}
	if _, err := object.Decode(reg, nil, "user", 42); !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Decode(42) error = %v, want ErrInvalidValue", err)
	}
}

func TestDecode_BoundModel(t *testing.T) {
	reg := objecttest.Registry()
	models := objecttest.Models()

	m, err := object.Decode(reg, models, "Node", `{"_id": "n1"}`)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	node, ok := m.(*objecttest.NodeModel)
	if !ok {
		t.Fatalf("Decode returned %T, want *objecttest.NodeModel", m)
	}

	if x, y := node.Position(); x != 0 || y != 0 {
		t.Errorf("Position() = %v, %v before Move", x, y)
	}
	if node.Color() != "#000000" {
		t.Errorf("Color() = %q before SetColor", node.Color())
	}

	if err := node.Move(1.5, 2); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if err := node.SetColor("#ff0000"); err != nil {
		t.Fatalf("SetColor failed: %v", err)
	}

	if x, y := node.Position(); x != 1.5 || y != 2 {
		t.Errorf("Position() = %v, %v, want 1.5, 2", x, y)
	}
	if node.Color() != "#ff0000" {
		t.Errorf("Color() = %q", node.Color())
	}

	// Both helpers share one "visual" parameter.
	if n, _ := node.Len("parameters"); n != 1 {
		t.Errorf("parameters = %d, want 1", n)
	}

	// Other schemas decode to plain objects.
	plain, _ := object.Decode(reg, models, "user", nil)
	if _, ok := plain.(*object.Object); !ok {
		t.Errorf("Decode(user) returned %T", plain)
	}
}

func TestModels_Bind(t *testing.T) {
	models := object.NewModels()

	if _, ok := models.Lookup("node"); ok {
		t.Error("empty table should not resolve")
	}

	models.Bind("Node", objecttest.NewNode)
	if _, ok := models.Lookup("NODE"); !ok {
		t.Error("lookup should ignore case")
	}

	var nilModels *object.Models
	if _, ok := nilModels.Lookup("node"); ok {
		t.Error("nil table should not resolve")
	}
}

func TestModels_Wrap(t *testing.T) {
	reg := objecttest.Registry()
	models := objecttest.Models()

	node, err := object.New(reg, "node", map[string]any{"_id": "n1"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m := models.Wrap(node)
	if _, ok := m.(*objecttest.NodeModel); !ok {
		t.Errorf("Wrap(node) = %T, want *objecttest.NodeModel", m)
	}
	if m.Base() != node {
		t.Error("wrapped model should share the object")
	}

	user, _ := object.New(reg, "user", nil)
	if got := models.Wrap(user); got != object.Model(user) {
		t.Errorf("Wrap(user) = %T, want the object itself", got)
	}

	var nilModels *object.Models
	if got := nilModels.Wrap(node); got != object.Model(node) {
		t.Errorf("nil table Wrap = %T", got)
	}
}
