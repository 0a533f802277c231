package core

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldNumber     FieldType = "number"
	FieldDate       FieldType = "date"
	FieldBool       FieldType = "bool"
	FieldPassword   FieldType = "password"
	FieldOption     FieldType = "option"
	FieldTitle      FieldType = "title"
	FieldAttachment FieldType = "attachment"
	FieldReference  FieldType = "reference"
)

// FieldKind is the closed set of mapping strategies. Every FieldType maps to
// exactly one kind.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindTitle
	KindName
	KindAttachment
	KindReference
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTitle:
		return "title"
	case KindName:
		return "name"
	case KindAttachment:
		return "attachment"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// FieldSpec describes one field of a schema.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Label    string    `yaml:"label,omitempty" json:"label,omitempty"`
	Required bool      `yaml:"required,omitempty" json:"required,omitempty"`

	// MaxItems limits attachment and reference fields; 0 means unlimited.
	MaxItems int `yaml:"maxItems,omitempty" json:"maxItems,omitempty"`

	// Options lists the allowed values of an option field.
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`

	// Reference lookup scope. Zero values leave that dimension unconstrained.
	RefParentID int64  `yaml:"refParent,omitempty" json:"refParent,omitempty"`
	RefSchemaID string `yaml:"refSchema,omitempty" json:"refSchema,omitempty"`

	// Where missing references are created. Both must be set for creation.
	CreateParentID int64  `yaml:"createParent,omitempty" json:"createParent,omitempty"`
	CreateSchemaID string `yaml:"createSchema,omitempty" json:"createSchema,omitempty"`
}

// Kind returns the mapping strategy for the field type.
func (f FieldSpec) Kind() FieldKind {
	if f.Name == NameField {
		return KindName
	}
	switch f.Type {
	case FieldTitle:
		return KindTitle
	case FieldAttachment:
		return KindAttachment
	case FieldReference:
		return KindReference
	default:
		return KindScalar
	}
}

// Single reports whether the field holds at most one item.
func (f FieldSpec) Single() bool {
	return f.MaxItems == 1
}

// CanCreateReferences reports whether missing references may be created.
func (f FieldSpec) CanCreateReferences() bool {
	return f.CreateParentID > 0 && f.CreateSchemaID != ""
}

// Schema is a record type: the set of fields a record may carry.
type Schema struct {
	ID     string      `yaml:"id" json:"id"`
	Label  string      `yaml:"label,omitempty" json:"label,omitempty"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// Field looks up a field by name. The name pseudo-field is always present.
func (s Schema) Field(name string) (FieldSpec, bool) {
	if name == NameField {
		return FieldSpec{Name: NameField, Type: FieldText, Label: "Name"}, true
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// TitleField returns the schema's title-like field, if any.
func (s Schema) TitleField() (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Type == FieldTitle {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the mappable field names, name first.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields)+1)
	names = append(names, NameField)
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

var knownFieldTypes = map[FieldType]bool{
	FieldText: true, FieldNumber: true, FieldDate: true, FieldBool: true,
	FieldPassword: true, FieldOption: true, FieldTitle: true,
	FieldAttachment: true, FieldReference: true,
}

// Validate checks the schema definition.
func (s Schema) Validate() error {
	var errs []string

	if s.ID == "" {
		errs = append(errs, "schema id is required")
	}

	seen := make(map[string]bool, len(s.Fields))
	titles := 0
	for i, f := range s.Fields {
		switch {
		case f.Name == "":
			errs = append(errs, fmt.Sprintf("field %d has no name", i))
			continue
		case f.Name == NameField:
			errs = append(errs, fmt.Sprintf("field %q is reserved", f.Name))
		case seen[f.Name]:
			errs = append(errs, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[f.Name] = true

		if !knownFieldTypes[f.Type] {
			errs = append(errs, fmt.Sprintf("field %q has unknown type %q", f.Name, f.Type))
		}
		if f.Type == FieldTitle {
			titles++
		}
		if f.Type == FieldOption && len(f.Options) == 0 {
			errs = append(errs, fmt.Sprintf("option field %q has no options", f.Name))
		}
		if f.MaxItems < 0 {
			errs = append(errs, fmt.Sprintf("field %q has negative maxItems", f.Name))
		}
	}
	if titles > 1 {
		errs = append(errs, "at most one title field is allowed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("schema %q: %s", s.ID, strings.Join(errs, "; "))
	}
	return nil
}
