package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr string
	}{
		{"valid", contactSchema(), ""},
		{"missing id", Schema{Fields: []FieldSpec{{Name: "a", Type: FieldText}}}, "schema id is required"},
		{"unnamed field", Schema{ID: "s", Fields: []FieldSpec{{Type: FieldText}}}, "has no name"},
		{"reserved name", Schema{ID: "s", Fields: []FieldSpec{{Name: NameField, Type: FieldText}}}, "reserved"},
		{"duplicate field", Schema{ID: "s", Fields: []FieldSpec{{Name: "a", Type: FieldText}, {Name: "a", Type: FieldNumber}}}, "duplicate field"},
		{"unknown type", Schema{ID: "s", Fields: []FieldSpec{{Name: "a", Type: "blob"}}}, "unknown type"},
		{"two titles", Schema{ID: "s", Fields: []FieldSpec{{Name: "a", Type: FieldTitle}, {Name: "b", Type: FieldTitle}}}, "at most one title"},
		{"option without options", Schema{ID: "s", Fields: []FieldSpec{{Name: "a", Type: FieldOption}}}, "has no options"},
		{"negative max items", Schema{ID: "s", Fields: []FieldSpec{{Name: "a", Type: FieldAttachment, MaxItems: -1}}}, "negative maxItems"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_Field(t *testing.T) {
	s := contactSchema()
	if f, ok := s.Field(NameField); !ok || f.Kind() != KindName {
		t.Errorf("Field(name) = %+v, %v", f, ok)
	}
	if _, ok := s.Field("phone"); ok {
		t.Error("Field(phone) found")
	}
	if f, ok := s.TitleField(); !ok || f.Name != "title" {
		t.Errorf("TitleField() = %+v, %v", f, ok)
	}
	if _, ok := companySchema().Field("email"); ok {
		t.Error("company has no email field")
	}
}

func TestRegistry(t *testing.T) {
	reg := testRegistry(t)

	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
	if err := reg.Register(companySchema()); err == nil {
		t.Error("duplicate Register() expected error")
	}
	if _, ok := reg.Get("contact"); !ok {
		t.Error("Get(contact) not found")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) found")
	}

	all := reg.All()
	if len(all) != 2 || all[0].ID != "company" || all[1].ID != "contact" {
		t.Errorf("All() not sorted by id: %v", all)
	}
}

func TestRegistry_LoadSchemas(t *testing.T) {
	doc := `
schemas:
  - id: company
    fields:
      - name: title
        type: title
  - id: contact
    label: Contacts
    fields:
      - name: title
        type: title
      - name: status
        type: option
        options: [Lead, Customer]
      - name: company
        type: reference
        refSchema: company
        createParent: 1
        createSchema: company
        maxItems: 1
`
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	if err := reg.LoadSchemas(path); err != nil {
		t.Fatalf("LoadSchemas() error = %v", err)
	}

	contact, ok := reg.Get("contact")
	if !ok {
		t.Fatal("contact not registered")
	}
	ref, _ := contact.Field("company")
	if ref.RefSchemaID != "company" || !ref.CanCreateReferences() || !ref.Single() {
		t.Errorf("company field = %+v", ref)
	}
	if status, _ := contact.Field("status"); len(status.Options) != 2 {
		t.Errorf("status options = %v", status.Options)
	}

	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "schemas: [unclosed"},
		{"no schemas", "schemas: []"},
		{"invalid schema", "schemas:\n  - id: x\n    fields:\n      - name: a\n        type: blob\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().LoadSchemaYAML([]byte(tt.doc)); err == nil {
				t.Error("LoadSchemaYAML() expected error")
			}
		})
	}

	if err := NewRegistry().LoadSchemas(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSchemas(missing) expected error")
	}
}
