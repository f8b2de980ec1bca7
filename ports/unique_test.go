package ports

import (
	"errors"
	"testing"
)

func TestIndexed(t *testing.T) {
	tests := []struct {
		entry IndexEntry
		want  bool
	}{
		{IndexEntry{Attr: "_id", Value: "a"}, true},
		{IndexEntry{Attr: "_id", Value: ""}, false},
		{IndexEntry{Attr: "_version", Value: nil}, false},
		{IndexEntry{Attr: "_email", Value: ""}, true},
		{IndexEntry{Attr: "_level", Value: int64(0)}, true},
	}

	for _, tt := range tests {
		if got := Indexed(tt.entry); got != tt.want {
			t.Errorf("Indexed(%+v) = %v, want %v", tt.entry, got, tt.want)
		}
	}
}

func TestCheckUnique(t *testing.T) {
	state := map[string][]string{
		"user:indexes:_email:a@x": {"u1"},
		"node:indexes:_name:cam":  {"n1:1.0", "n1:1.1"},
	}
	members := func(key string) ([]string, error) { return state[key], nil }

	tests := []struct {
		name    string
		entries []IndexEntry
		want    error
		owner   string
	}{
		{
			name:    "free value",
			entries: []IndexEntry{{SchemaPath: "user", Attr: "_email", Value: "b@x", Identity: "u2"}},
		},
		{
			name:    "own value",
			entries: []IndexEntry{{SchemaPath: "user", Attr: "_email", Value: "a@x", Identity: "u1"}},
		},
		{
			name:    "other version of same id",
			entries: []IndexEntry{{SchemaPath: "node", Attr: "_name", Value: "cam", Identity: "n1:2.0"}},
		},
		{
			name:    "taken value",
			entries: []IndexEntry{{SchemaPath: "user", Attr: "_email", Value: "a@x", Identity: "u2"}},
			want:    ErrUniqueConstraint,
			owner:   "u1",
		},
		{
			name: "conflict within batch",
			entries: []IndexEntry{
				{SchemaPath: "user", Attr: "_login", Value: "bob", Identity: "u3"},
				{SchemaPath: "user", Attr: "_login", Value: "bob", Identity: "u4"},
			},
			want:  ErrUniqueConstraint,
			owner: "u3",
		},
		{
			name:    "identity attributes are not checked",
			entries: []IndexEntry{{SchemaPath: "node", Attr: "_version", Value: "latest", Identity: "n9:latest"}},
		},
		{
			name:    "blank value",
			entries: []IndexEntry{{SchemaPath: "user", Attr: "_email", Value: nil, Identity: "u2"}},
			want:    ErrIndexValueEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUnique(tt.entries, members)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("CheckUnique failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var verr *UniqueViolationError
			if tt.owner != "" && (!errors.As(err, &verr) || verr.Owner != tt.owner) {
				t.Errorf("violation = %v, want owner %s", err, tt.owner)
			}
		})
	}
}

func TestCheckUnique_ReadError(t *testing.T) {
	boom := errors.New("boom")
	err := CheckUnique(
		[]IndexEntry{{SchemaPath: "user", Attr: "_email", Value: "a@x", Identity: "u1"}},
		func(string) ([]string, error) { return nil, boom },
	)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}
