package database

import (
	"context"
)

const findRecord = `-- name: FindRecord :one
SELECT id, parent_id, schema_id, name, title, fields, created_at, modified_at
FROM import_records
WHERE ($1::bigint = 0 OR id = $1)
  AND ($2::bigint = 0 OR parent_id = $2)
  AND ($3::text = '' OR schema_id = $3)
  AND ($4::text = '' OR name = $4)
  AND ($5::text = '' OR title = $5)
ORDER BY id
LIMIT 1
`

type FindRecordParams struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parent_id"`
	SchemaID string `json:"schema_id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
}

func (q *Queries) FindRecord(ctx context.Context, arg FindRecordParams) (ImportRecord, error) {
	row := q.db.QueryRow(ctx, findRecord,
		arg.ID,
		arg.ParentID,
		arg.SchemaID,
		arg.Name,
		arg.Title,
	)
	var i ImportRecord
	err := row.Scan(
		&i.ID,
		&i.ParentID,
		&i.SchemaID,
		&i.Name,
		&i.Title,
		&i.Fields,
		&i.CreatedAt,
		&i.ModifiedAt,
	)
	return i, err
}

const insertRecord = `-- name: InsertRecord :one
INSERT INTO import_records (parent_id, schema_id, name, title, fields)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, modified_at
`

type InsertRecordParams struct {
	ParentID int64  `json:"parent_id"`
	SchemaID string `json:"schema_id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	Fields   []byte `json:"fields"`
}

func (q *Queries) InsertRecord(ctx context.Context, arg InsertRecordParams) (ImportRecord, error) {
	row := q.db.QueryRow(ctx, insertRecord,
		arg.ParentID,
		arg.SchemaID,
		arg.Name,
		arg.Title,
		arg.Fields,
	)
	i := ImportRecord{
		ParentID: arg.ParentID,
		SchemaID: arg.SchemaID,
		Name:     arg.Name,
		Title:    arg.Title,
		Fields:   arg.Fields,
	}
	err := row.Scan(&i.ID, &i.CreatedAt, &i.ModifiedAt)
	return i, err
}

const updateRecord = `-- name: UpdateRecord :execrows
UPDATE import_records
SET title = $2, fields = $3, modified_at = now()
WHERE id = $1
`

type UpdateRecordParams struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Fields []byte `json:"fields"`
}

func (q *Queries) UpdateRecord(ctx context.Context, arg UpdateRecordParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateRecord, arg.ID, arg.Title, arg.Fields)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const mergeRecordFields = `-- name: MergeRecordFields :execrows
UPDATE import_records
SET fields = fields || $2::jsonb, modified_at = now()
WHERE id = $1
`

type MergeRecordFieldsParams struct {
	ID     int64  `json:"id"`
	Fields []byte `json:"fields"`
}

func (q *Queries) MergeRecordFields(ctx context.Context, arg MergeRecordFieldsParams) (int64, error) {
	result, err := q.db.Exec(ctx, mergeRecordFields, arg.ID, arg.Fields)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listRecordsByParent = `-- name: ListRecordsByParent :many
SELECT id, parent_id, schema_id, name, title, fields, created_at, modified_at
FROM import_records
WHERE parent_id = $1
  AND ($2::text = '' OR schema_id = $2)
ORDER BY id
`

type ListRecordsByParentParams struct {
	ParentID int64  `json:"parent_id"`
	SchemaID string `json:"schema_id"`
}

func (q *Queries) ListRecordsByParent(ctx context.Context, arg ListRecordsByParentParams) ([]ImportRecord, error) {
	rows, err := q.db.Query(ctx, listRecordsByParent, arg.ParentID, arg.SchemaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportRecord
	for rows.Next() {
		var i ImportRecord
		if err := rows.Scan(
			&i.ID,
			&i.ParentID,
			&i.SchemaID,
			&i.Name,
			&i.Title,
			&i.Fields,
			&i.CreatedAt,
			&i.ModifiedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
