package core

import (
	"context"
	"fmt"
	"strconv"
)

// ReferenceResolver turns reference locators into record ids.
type ReferenceResolver struct {
	Records RecordStore

	// CreateMissing allows creating minimal records for unresolved locators
	// on fields that configure a creation parent and schema.
	CreateMissing bool
}

// Resolve returns the ids for req's locators in order, without duplicates.
// Each locator is tried as a numeric id, then an exact name, then an exact
// title, within the field's allowed parent and schema. Unresolved locators
// are dropped unless they can be created. A required field that resolves to
// nothing returns ErrReferenceRequired.
func (r *ReferenceResolver) Resolve(ctx context.Context, req ReferenceRequest) ([]int64, error) {
	spec := req.Spec
	ids := make([]int64, 0, len(req.Locators))
	seen := make(map[int64]bool, len(req.Locators))

	for _, loc := range req.Locators {
		rec, err := r.lookup(ctx, spec, loc)
		if err != nil {
			return nil, err
		}
		if rec == nil && r.CreateMissing && spec.CanCreateReferences() {
			rec, err = r.create(ctx, spec, loc)
			if err != nil {
				return nil, err
			}
		}
		if rec == nil || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		ids = append(ids, rec.ID)
	}

	if spec.Required && len(ids) == 0 {
		return nil, fmt.Errorf("%w: field %q", ErrReferenceRequired, spec.Name)
	}
	return ids, nil
}

func (r *ReferenceResolver) lookup(ctx context.Context, spec FieldSpec, loc string) (*Record, error) {
	scope := RecordQuery{ParentID: spec.RefParentID, SchemaID: spec.RefSchemaID}

	queries := make([]RecordQuery, 0, 3)
	if id, err := strconv.ParseInt(loc, 10, 64); err == nil && id > 0 {
		q := scope
		q.ID = id
		queries = append(queries, q)
	}
	byName, byTitle := scope, scope
	byName.Name = loc
	byTitle.Title = loc
	queries = append(queries, byName, byTitle)

	for _, q := range queries {
		rec, err := r.Records.FindOne(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("resolve reference %q: %w", loc, err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// create inserts a record carrying only a name and a title.
func (r *ReferenceResolver) create(ctx context.Context, spec FieldSpec, loc string) (*Record, error) {
	base := Slugify(loc)
	if base == "" {
		return nil, nil
	}
	name, err := UniqueName(ctx, r.Records, spec.CreateParentID, base)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ParentID: spec.CreateParentID,
		SchemaID: spec.CreateSchemaID,
		Name:     name,
		Title:    loc,
		Fields:   map[string]any{},
	}
	if err := r.Records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create referenced record %q: %w", loc, err)
	}
	return rec, nil
}
