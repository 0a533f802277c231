package core

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryRecordStore is an in-process RecordStore. Returned records are
// copies; callers may mutate them freely.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*Record
}

// NewMemoryRecordStore creates an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[int64]*Record)}
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		switch t := v.(type) {
		case []string:
			c.Fields[k] = slices.Clone(t)
		case []int64:
			c.Fields[k] = slices.Clone(t)
		default:
			c.Fields[k] = v
		}
	}
	return &c
}

func (q RecordQuery) matches(r *Record) bool {
	return (q.ID == 0 || r.ID == q.ID) &&
		(q.ParentID == 0 || r.ParentID == q.ParentID) &&
		(q.SchemaID == "" || r.SchemaID == q.SchemaID) &&
		(q.Name == "" || r.Name == q.Name) &&
		(q.Title == "" || r.Title == q.Title)
}

// FindOne returns the lowest-id record matching q, or nil.
func (s *MemoryRecordStore) FindOne(_ context.Context, q RecordQuery) (*Record, error) {
	if q.ID == 0 && q.Name == "" && q.Title == "" {
		return nil, fmt.Errorf("record query needs an id, name or title")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if q.ID != 0 {
		r, ok := s.records[q.ID]
		if !ok || !q.matches(r) {
			return nil, nil
		}
		return cloneRecord(r), nil
	}

	var found *Record
	for _, r := range s.records {
		if q.matches(r) && (found == nil || r.ID < found.ID) {
			found = r
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneRecord(found), nil
}

// Create stores rec and assigns its id. Names are unique per parent.
func (s *MemoryRecordStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ParentID == rec.ParentID && r.Name == rec.Name {
			return fmt.Errorf("duplicate key: record %q already exists under parent %d", rec.Name, rec.ParentID)
		}
	}

	s.nextID++
	now := time.Now().UTC()
	rec.ID = s.nextID
	rec.CreatedAt, rec.ModifiedAt = now, now
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Update replaces the stored title and fields of rec.
func (s *MemoryRecordStore) Update(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.ID]
	if !ok {
		return fmt.Errorf("record %d not found", rec.ID)
	}
	next := cloneRecord(rec)
	next.CreatedAt = cur.CreatedAt
	next.ModifiedAt = time.Now().UTC()
	rec.ModifiedAt = next.ModifiedAt
	s.records[rec.ID] = next
	return nil
}

// UpdateFields merges fields into a stored record.
func (s *MemoryRecordStore) UpdateFields(_ context.Context, id int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %d not found", id)
	}
	next := cloneRecord(cur)
	maps.Copy(next.Fields, fields)
	next.ModifiedAt = time.Now().UTC()
	s.records[id] = next
	return nil
}

// ListByParent returns the parent's records ordered by id. An empty
// schemaID lists every schema.
func (s *MemoryRecordStore) ListByParent(_ context.Context, parentID int64, schemaID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if r.ParentID == parentID && (schemaID == "" || r.SchemaID == schemaID) {
			out = append(out, *cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MemoryConfigStore keeps import sessions in process memory.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]ImportConfig
}

// NewMemoryConfigStore creates an empty session store.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[string]ImportConfig)}
}

func (s *MemoryConfigStore) Save(_ context.Context, cfg *ImportConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = *cfg
	return nil
}

func (s *MemoryConfigStore) Load(_ context.Context, id string) (*ImportConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return &cfg, nil
}

func (s *MemoryConfigStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.configs, id)
	return nil
}
