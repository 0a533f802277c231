package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func seedRecords(t *testing.T, store *MemoryRecordStore, recs ...*Record) {
	t.Helper()
	for _, r := range recs {
		if err := store.Create(context.Background(), r); err != nil {
			t.Fatalf("seed %q: %v", r.Name, err)
		}
	}
}

func TestDuplicateResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	seedRecords(t, store,
		&Record{ParentID: 10, SchemaID: "contact", Name: "ada"},
		&Record{ParentID: 10, SchemaID: "contact", Name: "ada-1"},
		&Record{ParentID: 10, SchemaID: "company", Name: "acme"},
		&Record{ParentID: 20, SchemaID: "contact", Name: "grace"},
	)
	d := &DuplicateResolver{Records: store}

	tests := []struct {
		name        string
		recordName  string
		policy      DuplicatePolicy
		wantAction  Action
		wantName    string
		wantRenamed bool
		wantErr     error
	}{
		{"free name", "alan", PolicySkip, ActionCreate, "alan", false, nil},
		{"other parent is free", "grace", PolicyModify, ActionCreate, "grace", false, nil},
		{"case sensitive", "Ada", PolicySkip, ActionCreate, "Ada", false, nil},
		{"skip", "ada", PolicySkip, ActionSkip, "ada", false, nil},
		{"create unique", "ada", PolicyCreateUnique, ActionCreate, "ada-2", true, nil},
		{"modify", "ada", PolicyModify, ActionModify, "ada", false, nil},
		{"modify across schemas", "acme", PolicyModify, 0, "", false, ErrCrossSchemaModify},
		{"skip across schemas", "acme", PolicySkip, ActionSkip, "acme", false, nil},
		{"unknown policy", "ada", DuplicatePolicy("merge"), 0, "", false, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Resolve(ctx, tt.recordName, 10, "contact", tt.policy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Action != tt.wantAction || got.Name != tt.wantName || got.Renamed != tt.wantRenamed {
				t.Errorf("Resolve() = %v %q renamed=%v, want %v %q renamed=%v",
					got.Action, got.Name, got.Renamed, tt.wantAction, tt.wantName, tt.wantRenamed)
			}
			if (got.Action == ActionSkip || got.Action == ActionModify) && got.Existing == nil {
				t.Error("Existing not set")
			}
		})
	}
}

func TestUniqueName(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	seedRecords(t, store,
		&Record{ParentID: 1, SchemaID: "s", Name: "x"},
		&Record{ParentID: 1, SchemaID: "s", Name: "x-2"},
	)

	got, err := UniqueName(ctx, store, 1, "x")
	if err != nil || got != "x-1" {
		t.Errorf("UniqueName(x) = %q, %v; want x-1", got, err)
	}
	seedRecords(t, store, &Record{ParentID: 1, SchemaID: "s", Name: "x-1"})
	got, err = UniqueName(ctx, store, 1, "x")
	if err != nil || got != "x-3" {
		t.Errorf("UniqueName(x) = %q, %v; want x-3", got, err)
	}
	got, err = UniqueName(ctx, store, 1, "y")
	if err != nil || got != "y" {
		t.Errorf("UniqueName(y) = %q, %v; want y", got, err)
	}
}

func TestUniqueName_StaysWithinMaxLength(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRecordStore()
	base := strings.Repeat("a", MaxNameLength)
	seedRecords(t, store, &Record{ParentID: 1, SchemaID: "s", Name: base})

	got, err := UniqueName(ctx, store, 1, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != MaxNameLength || !strings.HasSuffix(got, "-1") {
		t.Errorf("UniqueName() = %q (len %d), want %d chars ending in -1", got, len(got), MaxNameLength)
	}
}

func TestAction_String(t *testing.T) {
	if ActionCreate.String() != "create" || ActionSkip.String() != "skip" || ActionModify.String() != "modify" {
		t.Error("unexpected Action strings")
	}
}
