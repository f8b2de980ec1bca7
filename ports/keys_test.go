package ports

import (
	"errors"
	"testing"
)

func TestKeys(t *testing.T) {
	if got := DocumentKey("node", "abc-123"); got != "node:abc-123" {
		t.Errorf("DocumentKey = %q", got)
	}
	if got := IndexKey("user", "email", "a@b.c"); got != "user:indexes:email:a@b.c" {
		t.Errorf("IndexKey = %q", got)
	}
	if got := RefToken("node/definitions/port", "p1:latest"); got != "ref:node/definitions/port:p1:latest" {
		t.Errorf("RefToken = %q", got)
	}

	entry := IndexEntry{SchemaPath: "user", Attr: "_tag", Value: int64(7), Identity: "u1"}
	if got := entry.Key(); got != "user:indexes:_tag:7" {
		t.Errorf("IndexEntry.Key() = %q", got)
	}
	doc := Document{SchemaPath: "user", Identity: "u1:1.0"}
	if got := doc.Key(); got != "user:u1:1.0" {
		t.Errorf("Document.Key() = %q", got)
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		token    string
		path     string
		identity string
		ok       bool
	}{
		{"ref:node:abc-123", "node", "abc-123", true},
		{"ref:flow:f1:1.1", "flow", "f1:1.1", true},
		{"ref:node/definitions/port:p1", "node/definitions/port", "p1", true},
		{"node:abc", "", "", false},
		{"ref:node", "", "", false},
		{"ref::x", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			path, id, ok := ParseRef(tt.token)
			if path != tt.path || id != tt.identity || ok != tt.ok {
				t.Errorf("ParseRef(%q) = %q, %q, %v; want %q, %q, %v",
					tt.token, path, id, ok, tt.path, tt.identity, tt.ok)
			}
		})
	}
}

func TestIsRef(t *testing.T) {
	if !IsRef("ref:node:1") {
		t.Error("IsRef should accept a token")
	}
	if IsRef("node:1") || IsRef(42) || IsRef(nil) {
		t.Error("IsRef should reject non-tokens")
	}
}

func TestVersion(t *testing.T) {
	tests := []struct {
		identity string
		version  string
		want     bool
	}{
		{"a:1.1", "1.1", true},
		{"a:1.0", "1.1", false},
		{"a:1.0", AllVersions, true},
		{"a", "latest", false},
		{"a", AllVersions, true},
	}

	for _, tt := range tests {
		if got := MatchVersion(tt.identity, tt.version); got != tt.want {
			t.Errorf("MatchVersion(%q, %q) = %v, want %v", tt.identity, tt.version, got, tt.want)
		}
	}

	if BaseID("a:1.1") != "a" || BaseID("a") != "a" {
		t.Error("BaseID should strip the version")
	}
}

func TestIndexValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"", ""},
		{"x", "x"},
		{true, "true"},
		{3, "3"},
		{int64(42), "42"},
		{2.5, "2.5"},
		{float64(10), "10"},
	}

	for _, tt := range tests {
		if got := IndexValue(tt.in); got != tt.want {
			t.Errorf("IndexValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUniqueViolationError(t *testing.T) {
	err := error(&UniqueViolationError{Attr: "_tag", Value: "x", Identity: "b", Owner: "a"})
	if !errors.Is(err, ErrUniqueConstraint) {
		t.Error("UniqueViolationError should match ErrUniqueConstraint")
	}
	if err.Error() != "_tag:x not unique, already owned by a" {
		t.Errorf("Error() = %q", err.Error())
	}
}
