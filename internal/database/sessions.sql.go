package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertSession = `-- name: UpsertSession :exec
INSERT INTO import_sessions (id, config, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, expires_at = EXCLUDED.expires_at
`

type UpsertSessionParams struct {
	ID        string             `json:"id"`
	Config    []byte             `json:"config"`
	ExpiresAt pgtype.Timestamptz `json:"expires_at"`
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.Exec(ctx, upsertSession, arg.ID, arg.Config, arg.ExpiresAt)
	return err
}

const getSession = `-- name: GetSession :one
SELECT config
FROM import_sessions
WHERE id = $1
  AND (expires_at IS NULL OR expires_at > now())
`

func (q *Queries) GetSession(ctx context.Context, id string) ([]byte, error) {
	row := q.db.QueryRow(ctx, getSession, id)
	var config []byte
	err := row.Scan(&config)
	return config, err
}

const deleteSession = `-- name: DeleteSession :execrows
DELETE FROM import_sessions WHERE id = $1
`

func (q *Queries) DeleteSession(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSession, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
