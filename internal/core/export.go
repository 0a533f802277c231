package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExportHeader returns the columns ExportCSV writes for schema: the name,
// then every field in schema order.
func ExportHeader(schema Schema) []string {
	return schema.FieldNames()
}

// ExportCSV writes the records of schema under parentID as comma-separated
// CSV that imports back unchanged with the suggested mapping. Password
// fields are left empty; empty cells leave a field untouched on import.
func ExportCSV(ctx context.Context, w io.Writer, records RecordStore, schema Schema, parentID int64) error {
	recs, err := records.ListByParent(ctx, parentID, schema.ID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader(schema)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(schema.Fields)+1)
	for _, rec := range recs {
		row[0] = rec.Name
		for i, f := range schema.Fields {
			row[i+1] = exportCell(f, rec)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", rec.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func exportCell(f FieldSpec, rec Record) string {
	switch f.Type {
	case FieldTitle:
		return rec.Title
	case FieldPassword:
		return ""
	}

	v, ok := rec.Fields[f.Name]
	if !ok || v == nil {
		return ""
	}
	return formatValue(v)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case []string:
		return strings.Join(t, "|")
	case []int64:
		parts := make([]string, len(t))
		for i, n := range t {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, "|")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, "|")
	default:
		return fmt.Sprint(t)
	}
}
