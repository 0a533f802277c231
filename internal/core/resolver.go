package core

import (
	"context"
	"fmt"
	"strconv"
)

// maxUniqueSuffix bounds the search for a free name suffix.
const maxUniqueSuffix = 100000

// Action is what the importer does with a candidate after duplicate checks.
type Action int

const (
	ActionCreate Action = iota
	ActionSkip
	ActionModify
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionModify:
		return "modify"
	default:
		return "create"
	}
}

// Resolution is the decision for one candidate.
type Resolution struct {
	Action   Action
	Name     string  // name to create under; differs from the candidate when Renamed
	Renamed  bool    // CreateUnique picked a suffixed name
	Existing *Record // set for ActionSkip and ActionModify
}

// DuplicateResolver decides how to handle a candidate whose name may already
// be taken under the target parent.
type DuplicateResolver struct {
	Records RecordStore
}

// Resolve looks up name among the direct children of parentID (exact,
// case-sensitive) and applies policy. A Modify across schemas returns
// ErrCrossSchemaModify.
func (d *DuplicateResolver) Resolve(ctx context.Context, name string, parentID int64, schemaID string, policy DuplicatePolicy) (Resolution, error) {
	existing, err := d.Records.FindOne(ctx, RecordQuery{ParentID: parentID, Name: name})
	if err != nil {
		return Resolution{}, fmt.Errorf("look up %q: %w", name, err)
	}
	if existing == nil {
		return Resolution{Action: ActionCreate, Name: name}, nil
	}

	switch policy {
	case PolicySkip:
		return Resolution{Action: ActionSkip, Name: name, Existing: existing}, nil

	case PolicyCreateUnique:
		unique, err := UniqueName(ctx, d.Records, parentID, name)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Action: ActionCreate, Name: unique, Renamed: true}, nil

	case PolicyModify:
		if existing.SchemaID != schemaID {
			return Resolution{}, fmt.Errorf("%w: %q is %q, import targets %q",
				ErrCrossSchemaModify, name, existing.SchemaID, schemaID)
		}
		return Resolution{Action: ActionModify, Name: name, Existing: existing}, nil

	default:
		return Resolution{}, fmt.Errorf("%w: unknown duplicate policy %q", ErrInvalidConfig, policy)
	}
}

// UniqueName returns base if it is free under parentID, otherwise base with
// the smallest positive "-N" suffix not in use. The result never exceeds
// MaxNameLength.
func UniqueName(ctx context.Context, records RecordStore, parentID int64, base string) (string, error) {
	taken := func(name string) (bool, error) {
		rec, err := records.FindOne(ctx, RecordQuery{ParentID: parentID, Name: name})
		if err != nil {
			return false, fmt.Errorf("look up %q: %w", name, err)
		}
		return rec != nil, nil
	}

	if used, err := taken(base); err != nil || !used {
		return base, err
	}

	for n := 1; n <= maxUniqueSuffix; n++ {
		suffix := "-" + strconv.Itoa(n)
		name := truncateRunes(base, MaxNameLength-len(suffix)) + suffix
		used, err := taken(name)
		if err != nil {
			return "", err
		}
		if !used {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free name for %q under parent %d", base, parentID)
}
