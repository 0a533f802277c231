package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/csvimport/internal/logging"
)

// PasswordCost is the bcrypt cost used for password fields.
var PasswordCost = bcrypt.DefaultCost

// BatchImporter runs exactly one batch of an import per call. It keeps no
// state between calls; everything is derived from the ImportConfig.
type BatchImporter struct {
	Registry    *Registry
	Records     RecordStore
	Attachments AttachmentSink // nil stores locators unchanged
}

// RunBatch imports the rows of batch batchIndex.
//
// Request-level failures (unknown schema, invalid mapping, start out of
// range, unreadable source, malformed CSV) are returned as errors and no
// counters are reported. Row-level failures are counted in the result.
func (b *BatchImporter) RunBatch(ctx context.Context, cfg *ImportConfig, batchIndex int) (*BatchResult, error) {
	started := time.Now()

	if err := cfg.CheckBatchIndex(batchIndex); err != nil {
		return nil, err
	}
	schema, ok := b.Registry.Get(cfg.SchemaID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, cfg.SchemaID)
	}
	plan, err := NewColumnPlan(schema, cfg.ColumnFields)
	if err != nil {
		return nil, err
	}

	window := cfg.Window(batchIndex)
	result := &BatchResult{BatchIndex: batchIndex, Window: window}
	if window.Empty() {
		result.Duration = time.Since(started)
		return result, nil
	}

	// Seek straight to the window when the analyzer indexed it
	offset, skipped := int64(0), 0
	if off := cfg.batchOffset(batchIndex); off > 0 {
		offset, skipped = off, window.RowStart-1
	}
	src, err := openSource(cfg.FilePath, cfg.Delimiter, cfg.Enclosure, offset, skipped)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	logger := logging.WithFields(logging.ContextWithImport(ctx, cfg.ID),
		"batch", batchIndex,
		"row_start", window.RowStart,
		"row_stop", window.RowStop,
	)

	run := &rowImporter{
		cfg:        cfg,
		records:    b.Records,
		sink:       b.Attachments,
		duplicates: &DuplicateResolver{Records: b.Records},
		references: &ReferenceResolver{Records: b.Records, CreateMissing: cfg.CreateMissingReferences},
	}

	for {
		row, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line := src.Line()
		if line < window.RowStart {
			continue
		}
		if line > window.RowStop {
			break
		}
		if cfg.MaxRows > 0 && line > cfg.MaxRows+1 {
			result.Truncated = true
			break
		}

		if !isBlankRecord(row) {
			res := run.importRow(ctx, plan, line, row)
			result.Counters.Add(res)
			if res.Err != nil {
				logger.Warn("row failed", "line", res.Line, "name", res.Name, "error", res.Err)
				if len(result.Errors) < MaxReportedRowErrors {
					msg := MapError(res.Err)
					result.Errors = append(result.Errors, RowError{
						Line:    res.Line,
						Name:    res.Name,
						Code:    msg.Code,
						Message: res.Err.Error(),
					})
				}
			}
		}

		if cfg.MaxRows > 0 && line > cfg.MaxRows {
			result.Truncated = true
			break
		}
		if line >= window.RowStop {
			break
		}
	}

	result.Duration = time.Since(started)
	logger.Info("batch imported",
		"imported", result.Counters.Imported,
		"created", result.Counters.Created,
		"modified", result.Counters.Modified,
		"skipped", result.Counters.Skipped,
		"failed", result.Counters.Failed,
		"truncated", result.Truncated,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// rowImporter carries the per-batch collaborators used for every row.
type rowImporter struct {
	cfg        *ImportConfig
	records    RecordStore
	sink       AttachmentSink
	duplicates *DuplicateResolver
	references *ReferenceResolver
}

// importRow runs one row through mapping, duplicate resolution, the record
// write and the attachment flush. It never panics on bad input; every
// failure is reported in the returned RowResult.
func (ri *rowImporter) importRow(ctx context.Context, plan *ColumnPlan, line int, row []string) RowResult {
	fail := func(name string, id int64, err error) RowResult {
		return RowResult{Line: line, Name: name, RecordID: id, Outcome: OutcomeFailed, Err: err}
	}

	cand, err := plan.Build(line, row)
	if err != nil {
		return fail(cand.Name, 0, err)
	}
	if cand.Name == "" {
		return fail("", 0, ErrNameMissing)
	}

	res, err := ri.duplicates.Resolve(ctx, cand.Name, ri.cfg.ParentID, ri.cfg.SchemaID, ri.cfg.Policy)
	if err != nil {
		return fail(cand.Name, 0, err)
	}

	var (
		rec     *Record
		outcome Outcome
	)
	switch res.Action {
	case ActionSkip:
		return RowResult{Line: line, Name: cand.Name, RecordID: res.Existing.ID, Outcome: OutcomeSkipped}

	case ActionCreate:
		refs, err := ri.resolveReferences(ctx, cand)
		if err != nil {
			return fail(res.Name, 0, err)
		}
		rec = &Record{
			ParentID: ri.cfg.ParentID,
			SchemaID: ri.cfg.SchemaID,
			Name:     res.Name,
			Title:    cand.Title,
			Fields:   make(map[string]any),
		}
		if _, err := applyValues(rec, cand, refs); err != nil {
			return fail(res.Name, 0, err)
		}
		if err := ri.records.Create(ctx, rec); err != nil {
			return fail(res.Name, 0, fmt.Errorf("create record: %w", err))
		}
		outcome = OutcomeCreated
		if res.Renamed {
			outcome = OutcomeCreatedUnique
		}

	case ActionModify:
		refs, err := ri.resolveReferences(ctx, cand)
		if err != nil {
			return fail(res.Name, res.Existing.ID, err)
		}
		rec = res.Existing
		changed, err := applyValues(rec, cand, refs)
		if err != nil {
			return fail(res.Name, rec.ID, err)
		}
		if changed {
			if err := ri.records.Update(ctx, rec); err != nil {
				return fail(res.Name, rec.ID, fmt.Errorf("update record: %w", err))
			}
		}
		outcome = OutcomeModified
	}

	if err := ri.flushAttachments(ctx, rec, cand.Attachments); err != nil {
		return fail(rec.Name, rec.ID, err)
	}
	return RowResult{Line: line, Name: rec.Name, RecordID: rec.ID, Outcome: outcome}
}

func (ri *rowImporter) resolveReferences(ctx context.Context, cand *Candidate) (map[string][]int64, error) {
	if len(cand.References) == 0 {
		return nil, nil
	}
	refs := make(map[string][]int64, len(cand.References))
	for _, req := range cand.References {
		ids, err := ri.references.Resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			refs[req.Spec.Name] = ids
		}
	}
	return refs, nil
}

// applyValues copies the candidate's values onto rec and reports whether
// anything changed.
func applyValues(rec *Record, cand *Candidate, refs map[string][]int64) (bool, error) {
	changed := false
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}

	if cand.HasTitle() && rec.Title != cand.Title {
		rec.Title = cand.Title
		changed = true
	}

	for _, sv := range cand.Scalars {
		current, exists := rec.Fields[sv.Field]

		if sv.Password {
			raw, _ := sv.Value.(string)
			if hash, ok := current.(string); ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil {
				continue
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(raw), PasswordCost)
			if err != nil {
				return false, fmt.Errorf("%w: field %q: %v", ErrInvalidValue, sv.Field, err)
			}
			rec.Fields[sv.Field] = string(hash)
			changed = true
			continue
		}

		if exists && sameValue(current, sv.Value) {
			continue
		}
		rec.Fields[sv.Field] = sv.Value
		changed = true
	}

	for field, ids := range refs {
		if current, ok := rec.Fields[field]; ok && sameValue(current, ids) {
			continue
		}
		rec.Fields[field] = ids
		changed = true
	}

	return changed, nil
}

// flushAttachments stores deferred attachments on a record that now has an
// id, with a single minimal write when any stored key changed.
func (ri *rowImporter) flushAttachments(ctx context.Context, rec *Record, pending []DeferredAttachment) error {
	if len(pending) == 0 {
		return nil
	}

	updates := make(map[string]any)
	for _, att := range pending {
		keys := make([]string, 0, len(att.Locators))
		seen := make(map[string]bool, len(att.Locators))
		for _, loc := range att.Locators {
			key := loc
			if ri.sink != nil {
				var err error
				key, err = ri.sink.Attach(ctx, rec.ID, att.Field, loc)
				if err != nil {
					return fmt.Errorf("attach %q to field %q: %w", loc, att.Field, err)
				}
			}
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}

		var value any = keys
		if att.Single {
			value = keys[0]
		}
		if current, ok := rec.Fields[att.Field]; ok && sameValue(current, value) {
			continue
		}
		updates[att.Field] = value
	}

	if len(updates) == 0 {
		return nil
	}
	if err := ri.records.UpdateFields(ctx, rec.ID, updates); err != nil {
		return fmt.Errorf("store attachments: %w", err)
	}
	for k, v := range updates {
		rec.Fields[k] = v
	}
	return nil
}

// sameValue compares a stored field value with a freshly mapped one. Stored
// values may have been through JSON, so numbers and lists are normalized
// first.
func sameValue(stored, mapped any) bool {
	return reflect.DeepEqual(normalizeValue(stored), normalizeValue(mapped))
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = float64(n)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
