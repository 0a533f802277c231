package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type ImportRecord struct {
	ID         int64              `json:"id"`
	ParentID   int64              `json:"parent_id"`
	SchemaID   string             `json:"schema_id"`
	Name       string             `json:"name"`
	Title      string             `json:"title"`
	Fields     []byte             `json:"fields"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	ModifiedAt pgtype.Timestamptz `json:"modified_at"`
}

type ImportSession struct {
	ID        string             `json:"id"`
	Config    []byte             `json:"config"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	ExpiresAt pgtype.Timestamptz `json:"expires_at"`
}
