package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/JonMunkholm/csvimport/internal/database"
)

// PostgresRecordStore keeps records in the import_records table with their
// fields as JSONB.
type PostgresRecordStore struct {
	q *db.Queries
}

// NewPostgresRecordStore wraps a pool or transaction.
func NewPostgresRecordStore(conn DBTX) *PostgresRecordStore {
	return &PostgresRecordStore{q: db.New(conn)}
}

func recordFromRow(row db.ImportRecord) (*Record, error) {
	rec := &Record{
		ID:         row.ID,
		ParentID:   row.ParentID,
		SchemaID:   row.SchemaID,
		Name:       row.Name,
		Title:      row.Title,
		Fields:     make(map[string]any),
		CreatedAt:  row.CreatedAt.Time,
		ModifiedAt: row.ModifiedAt.Time,
	}
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of record %d: %w", row.ID, err)
		}
	}
	return rec, nil
}

func encodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}

func (s *PostgresRecordStore) FindOne(ctx context.Context, q RecordQuery) (*Record, error) {
	if q.ID == 0 && q.Name == "" && q.Title == "" {
		return nil, fmt.Errorf("record query needs an id, name or title")
	}

	row, err := s.q.FindRecord(ctx, db.FindRecordParams{
		ID:       q.ID,
		ParentID: q.ParentID,
		SchemaID: q.SchemaID,
		Name:     q.Name,
		Title:    q.Title,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return recordFromRow(row)
}

func (s *PostgresRecordStore) Create(ctx context.Context, rec *Record) error {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}

	row, err := s.q.InsertRecord(ctx, db.InsertRecordParams{
		ParentID: rec.ParentID,
		SchemaID: rec.SchemaID,
		Name:     rec.Name,
		Title:    rec.Title,
		Fields:   fields,
	})
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt.Time
	rec.ModifiedAt = row.ModifiedAt.Time
	return nil
}

func (s *PostgresRecordStore) Update(ctx context.Context, rec *Record) error {
	fields, err := encodeFields(rec.Fields)
	if err != nil {
		return err
	}

	n, err := s.q.UpdateRecord(ctx, db.UpdateRecordParams{ID: rec.ID, Title: rec.Title, Fields: fields})
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("record %d not found", rec.ID)
	}
	rec.ModifiedAt = time.Now().UTC()
	return nil
}

func (s *PostgresRecordStore) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	n, err := s.q.MergeRecordFields(ctx, db.MergeRecordFieldsParams{ID: id, Fields: data})
	if err != nil {
		return fmt.Errorf("merge fields of record %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("record %d not found", id)
	}
	return nil
}

func (s *PostgresRecordStore) ListByParent(ctx context.Context, parentID int64, schemaID string) ([]Record, error) {
	rows, err := s.q.ListRecordsByParent(ctx, db.ListRecordsByParentParams{ParentID: parentID, SchemaID: schemaID})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// PostgresConfigStore keeps import sessions in the import_sessions table.
type PostgresConfigStore struct {
	q   *db.Queries
	ttl time.Duration
}

// NewPostgresConfigStore wraps a pool. A positive ttl expires sessions.
func NewPostgresConfigStore(conn DBTX, ttl time.Duration) *PostgresConfigStore {
	return &PostgresConfigStore{q: db.New(conn), ttl: ttl}
}

func (s *PostgresConfigStore) Save(ctx context.Context, cfg *ImportConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode import config: %w", err)
	}

	var expires pgtype.Timestamptz
	if s.ttl > 0 {
		expires = pgtype.Timestamptz{Time: time.Now().Add(s.ttl), Valid: true}
	}
	if err := s.q.UpsertSession(ctx, db.UpsertSessionParams{ID: cfg.ID, Config: data, ExpiresAt: expires}); err != nil {
		return fmt.Errorf("save import session: %w", err)
	}
	return nil
}

func (s *PostgresConfigStore) Load(ctx context.Context, id string) (*ImportConfig, error) {
	data, err := s.q.GetSession(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load import session: %w", err)
	}

	var cfg ImportConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode import session %s: %w", id, err)
	}
	return &cfg, nil
}

func (s *PostgresConfigStore) Delete(ctx context.Context, id string) error {
	n, err := s.q.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("delete import session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
