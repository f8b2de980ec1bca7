package memory_test

import (
	"context"
	"testing"

	"github.com/artpar/datalayer/adapters/drivertest"
	"github.com/artpar/datalayer/adapters/memory"
	"github.com/artpar/datalayer/ports"
)

func TestDriver_Contract(t *testing.T) {
	drivertest.Run(t, func(t *testing.T) ports.Driver {
		return memory.NewDriver()
	})
}

func TestDriver_Clear(t *testing.T) {
	d := memory.NewDriver()
	ctx := context.Background()

	_, err := d.Save(ctx,
		[]ports.Document{{SchemaPath: "user", Identity: "a", Body: map[string]any{}}},
		[]ports.IndexEntry{{SchemaPath: "user", Attr: "_tag", Value: "x", Identity: "a"}},
	)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}

	d.Clear()

	if d.Len() != 0 {
		t.Errorf("Len() after Clear = %d", d.Len())
	}
	ids, _ := d.FindIDBy(ctx, ports.IndexPrefix("user", "_tag"), "x", ports.AllVersions)
	if len(ids) != 0 {
		t.Errorf("index after Clear = %v", ids)
	}
}

func TestDriver_Unencodable(t *testing.T) {
	d := memory.NewDriver()

	_, err := d.Save(context.Background(),
		[]ports.Document{{SchemaPath: "user", Identity: "a", Body: map[string]any{"f": func() {}}}},
		nil,
	)
	if err == nil {
		t.Error("Save should reject bodies that cannot be encoded")
	}
}
