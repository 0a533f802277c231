package core

import (
	"strings"
)

// SuggestMapping proposes a column→field mapping for header. A column maps
// to the first unused field whose name or label matches the header cell,
// case-insensitively and ignoring punctuation. Unmatched columns map to "".
func SuggestMapping(schema Schema, header []string) []string {
	type candidate struct {
		field string
		keys  []string
	}

	fields := make([]candidate, 0, len(schema.Fields)+1)
	fields = append(fields, candidate{field: NameField, keys: []string{NameField}})
	for _, f := range schema.Fields {
		keys := []string{headerKey(f.Name)}
		if f.Label != "" {
			keys = append(keys, headerKey(f.Label))
		}
		fields = append(fields, candidate{field: f.Name, keys: keys})
	}

	used := make(map[string]bool, len(fields))
	mapping := make([]string, len(header))
	for col, h := range header {
		key := headerKey(h)
		if key == "" {
			continue
		}
	match:
		for _, c := range fields {
			if used[c.field] {
				continue
			}
			for _, k := range c.keys {
				if k == key {
					mapping[col] = c.field
					used[c.field] = true
					break match
				}
			}
		}
	}
	return mapping
}

// MappingCoverage returns the fraction of the schema's fields that the
// mapping assigns to some column.
func MappingCoverage(schema Schema, mapping []string) float64 {
	if len(schema.Fields) == 0 {
		return 0
	}

	mapped := make(map[string]bool, len(mapping))
	for _, f := range mapping {
		if f != "" {
			mapped[f] = true
		}
	}

	matched := 0
	for _, f := range schema.Fields {
		if mapped[f.Name] {
			matched++
		}
	}
	return float64(matched) / float64(len(schema.Fields))
}

func headerKey(s string) string {
	return strings.ReplaceAll(Slugify(CleanCell(s)), "-", "")
}
