package validation

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/datalayer/core/schema"
)

func scalar(name string, kind schema.Kind) schema.Attribute {
	return schema.Attribute{Name: name, Type: schema.AttrScalar, Kind: kind}
}

func TestDefault(t *testing.T) {
	tests := []struct {
		name string
		attr schema.Attribute
		want any
	}{
		{"string", scalar("s", schema.KindString), ""},
		{"integer", scalar("i", schema.KindInteger), int64(0)},
		{"number", scalar("n", schema.KindNumber), float64(0)},
		{"boolean", scalar("b", schema.KindBoolean), false},
		{"null", scalar("z", schema.KindNull), nil},
		{"map", scalar("m", schema.KindMap), map[string]any{}},
		{"array", schema.Attribute{Name: "a", Type: schema.AttrArray}, []any{}},
		{"ref", schema.Attribute{Name: "r", Type: schema.AttrRef, Ref: "node"}, nil},
		{
			"declared integer",
			schema.Attribute{Name: "i", Type: schema.AttrScalar, Kind: schema.KindInteger, Default: float64(3), HasDefault: true},
			int64(3),
		},
		{
			"declared string",
			schema.Attribute{Name: "s", Type: schema.AttrScalar, Kind: schema.KindString, Default: "red", HasDefault: true},
			"red",
		},
		{
			"declared array",
			schema.Attribute{Name: "a", Type: schema.AttrArray, Default: []any{"x"}, HasDefault: true},
			[]any{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default(tt.attr)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Default() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDefault_NotShared(t *testing.T) {
	attr := schema.Attribute{
		Name: "m", Type: schema.AttrScalar, Kind: schema.KindMap,
		Default: map[string]any{"k": "v"}, HasDefault: true,
	}

	first := Default(attr).(map[string]any)
	first["k"] = "changed"

	second := Default(attr).(map[string]any)
	if second["k"] != "v" {
		t.Errorf("declared default was mutated: %v", second)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		kind    schema.Kind
		value   any
		want    any
		wantErr bool
	}{
		{"string", schema.KindString, "x", "x", false},
		{"string rejects int", schema.KindString, 1, nil, true},
		{"int", schema.KindInteger, 5, int64(5), false},
		{"int32", schema.KindInteger, int32(5), int64(5), false},
		{"integral float", schema.KindInteger, float64(7), int64(7), false},
		{"fractional float", schema.KindInteger, 7.5, nil, true},
		{"json number", schema.KindInteger, json.Number("12"), int64(12), false},
		{"integer rejects string", schema.KindInteger, "5", nil, true},
		{"number from int", schema.KindNumber, 2, float64(2), false},
		{"number", schema.KindNumber, 2.5, 2.5, false},
		{"bool", schema.KindBoolean, true, true, false},
		{"bool rejects string", schema.KindBoolean, "true", nil, true},
		{"null", schema.KindNull, nil, nil, false},
		{"null rejects value", schema.KindNull, "", nil, true},
		{"map", schema.KindMap, map[string]any{"a": 1.0}, map[string]any{"a": 1.0}, false},
		{"map rejects list", schema.KindMap, []any{}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.kind, tt.value)
			if tt.wantErr {
				if !errors.Is(err, schema.ErrTypeMismatch) {
					t.Errorf("Coerce() error = %v, want ErrTypeMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Coerce() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	color := schema.Attribute{
		Name: "color", Type: schema.AttrScalar, Kind: schema.KindString,
		Enum: []any{"red", "green"},
	}

	if v, err := Check(color, "red"); err != nil || v != "red" {
		t.Errorf("Check(red) = %v, %v", v, err)
	}

	_, err := Check(color, "blue")
	if !errors.Is(err, schema.ErrInvalidValue) {
		t.Errorf("Check(blue) error = %v, want ErrInvalidValue", err)
	}

	_, err = Check(color, 3)
	var verr *schema.ValueError
	if !errors.As(err, &verr) {
		t.Fatalf("Check(3) error = %v, want *schema.ValueError", err)
	}
	if verr.Attr != "color" || verr.Want != "string" {
		t.Errorf("ValueError = %+v", verr)
	}

	ref := schema.Attribute{Name: "next", Type: schema.AttrRef, Ref: "node"}
	if _, err := Check(ref, "x"); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("Check(ref) error = %v, want ErrTypeMismatch", err)
	}

	level := schema.Attribute{Name: "level", Type: schema.AttrScalar, Kind: schema.KindInteger, Enum: []any{float64(1), float64(2)}}
	if v, err := Check(level, 2); err != nil || v != int64(2) {
		t.Errorf("Check(level, 2) = %v, %v", v, err)
	}
}
