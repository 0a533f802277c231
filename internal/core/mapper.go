package core

// mapper.go turns one raw cell into a value applicable to one schema field.
//
// The mapping strategy is chosen from a closed set of kinds once per column
// when a batch starts (ColumnPlan); rows are then mapped without any further
// type dispatch on the schema.

import (
	"fmt"
	"regexp"
	"strings"
)

// MappedValue is the result of mapping one cell. The set of implementations
// is closed: ScalarValue, TitleValue, NameValue, DeferredAttachment and
// ReferenceRequest.
type MappedValue interface {
	mappedValue()
}

// ScalarValue is a coerced value applied directly to a field.
type ScalarValue struct {
	Field string
	Value any

	// Password marks Value as a clear-text secret that is hashed on write.
	Password bool
}

// TitleValue sets the record title and proposes a name derived from it.
type TitleValue struct {
	Title string
	Name  string // "" when the title yields no usable name
}

// NameValue sets the record name explicitly.
type NameValue struct {
	Name string
}

// DeferredAttachment holds attachment locators that can only be stored once
// the owning record has an id.
type DeferredAttachment struct {
	Field    string
	Single   bool
	Locators []string
}

// ReferenceRequest holds locators of records the field should link to.
type ReferenceRequest struct {
	Spec     FieldSpec
	Locators []string
}

func (ScalarValue) mappedValue()        {}
func (TitleValue) mappedValue()         {}
func (NameValue) mappedValue()          {}
func (DeferredAttachment) mappedValue() {}
func (ReferenceRequest) mappedValue()   {}

// locatorSeparators matches runs of newline, tab or pipe characters.
var locatorSeparators = regexp.MustCompile(`[\n\t|]+`)

// SplitLocators trims raw and splits it into attachment or reference
// locators. Empty pieces are dropped.
func SplitLocators(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := locatorSeparators.Split(raw, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MapValue maps a raw cell onto spec. An empty cell maps to nil with no
// error: the field keeps its current value. Invalid scalar input returns an
// error wrapping ErrInvalidValue.
func MapValue(spec FieldSpec, raw string) (MappedValue, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	switch spec.Kind() {
	case KindName:
		name := truncateRunes(strings.TrimSpace(raw), MaxNameLength)
		return NameValue{Name: name}, nil

	case KindTitle:
		title := strings.TrimSpace(raw)
		return TitleValue{Title: title, Name: Slugify(title)}, nil

	case KindAttachment:
		locators := SplitLocators(raw)
		if len(locators) == 0 {
			return nil, nil
		}
		return DeferredAttachment{
			Field:    spec.Name,
			Single:   spec.Single(),
			Locators: limitItems(locators, spec.MaxItems),
		}, nil

	case KindReference:
		locators := SplitLocators(raw)
		if len(locators) == 0 {
			return nil, nil
		}
		return ReferenceRequest{Spec: spec, Locators: limitItems(locators, spec.MaxItems)}, nil

	default:
		v, err := coerceScalar(spec, raw)
		if err != nil {
			return nil, err
		}
		return ScalarValue{Field: spec.Name, Value: v, Password: spec.Type == FieldPassword}, nil
	}
}

// coerceScalar converts raw into the stored representation of a scalar
// field: string, float64 or bool.
func coerceScalar(spec FieldSpec, raw string) (any, error) {
	invalid := func() error {
		return fmt.Errorf("%w: field %q: %q is not a valid %s", ErrInvalidValue, spec.Name, raw, spec.Type)
	}

	v := CleanCell(raw)
	switch spec.Type {
	case FieldNumber:
		if n, ok := ParseNumber(v); ok {
			return n, nil
		}
		return nil, invalid()

	case FieldDate:
		if d, ok := ParseDate(v); ok {
			return d.Format(DateLayout), nil
		}
		return nil, invalid()

	case FieldBool:
		if b, ok := ParseBool(v); ok {
			return b, nil
		}
		return nil, invalid()

	case FieldOption:
		for _, opt := range spec.Options {
			if strings.EqualFold(opt, v) {
				return opt, nil
			}
		}
		return nil, invalid()

	case FieldPassword:
		return raw, nil

	default:
		return strings.TrimSpace(raw), nil
	}
}

func limitItems(items []string, max int) []string {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// columnBinding is one mapped column with its resolved field.
type columnBinding struct {
	column int
	spec   FieldSpec
}

// ColumnPlan is the column→field mapping resolved against a schema.
type ColumnPlan struct {
	schema   Schema
	bindings []columnBinding
}

// NewColumnPlan resolves the mapping once. Every mapped field must exist in
// the schema and may be mapped at most once.
func NewColumnPlan(schema Schema, columnFields []string) (*ColumnPlan, error) {
	plan := &ColumnPlan{schema: schema}
	seen := make(map[string]int)

	for col, field := range columnFields {
		if field == "" {
			continue
		}
		spec, ok := schema.Field(field)
		if !ok {
			return nil, fmt.Errorf("%w: column %d maps to unknown field %q of schema %q", ErrInvalidConfig, col+1, field, schema.ID)
		}
		if prev, dup := seen[field]; dup {
			return nil, fmt.Errorf("%w: field %q mapped by columns %d and %d", ErrInvalidConfig, field, prev+1, col+1)
		}
		seen[field] = col
		plan.bindings = append(plan.bindings, columnBinding{column: col, spec: spec})
	}

	if len(plan.bindings) == 0 {
		return nil, fmt.Errorf("%w: no column is mapped", ErrInvalidConfig)
	}
	return plan, nil
}

// Candidate is a record built from one row, before duplicate resolution.
type Candidate struct {
	Line  int
	Name  string
	Title string

	// nameFromColumn is set when a name column supplied the name.
	nameFromColumn bool

	Scalars     []ScalarValue
	Attachments []DeferredAttachment
	References  []ReferenceRequest
}

// HasTitle reports whether a title value was mapped.
func (c *Candidate) HasTitle() bool {
	return c.Title != ""
}

// Build maps one row. Cells beyond the end of a short row are treated as
// empty. The first invalid value fails the whole row.
func (p *ColumnPlan) Build(line int, row []string) (*Candidate, error) {
	c := &Candidate{Line: line}

	for _, b := range p.bindings {
		if b.column >= len(row) {
			continue
		}
		v, err := MapValue(b.spec, row[b.column])
		if err != nil {
			return c, err
		}

		switch mv := v.(type) {
		case nil:
		case NameValue:
			c.Name = mv.Name
			c.nameFromColumn = true
		case TitleValue:
			c.Title = mv.Title
			if !c.nameFromColumn {
				c.Name = mv.Name
			}
		case ScalarValue:
			c.Scalars = append(c.Scalars, mv)
		case DeferredAttachment:
			c.Attachments = append(c.Attachments, mv)
		case ReferenceRequest:
			c.References = append(c.References, mv)
		}
	}

	return c, nil
}
