package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/indexlegal/honoris/internal/db"
	"github.com/indexlegal/honoris/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS legal_analysis_logs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	category   TEXT NOT NULL,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_legal_analysis_logs_created_at ON legal_analysis_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_legal_analysis_logs_category ON legal_analysis_logs(category);
`

// Migrate creates the log table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var logColumns = []string{"id", "source", "category", "document", "created_at"}

// Append inserts a single entry directly and larger batches with COPY.
func (s *PostgresStore) Append(ctx context.Context, entries ...model.Entry) error {
	rows := make([][]any, 0, len(entries))
	for i := range entries {
		r, err := toRow(&entries[i])
		if err != nil {
			return err
		}
		rows = append(rows, []any{r.id, r.source, r.category, r.document, r.createdAt})
	}

	switch len(rows) {
	case 0:
		return nil
	case 1:
		_, err := s.pool.Exec(ctx,
			`INSERT INTO legal_analysis_logs (id, source, category, document, created_at) VALUES ($1, $2, $3, $4, $5)`,
			rows[0]...)
		return eris.Wrap(err, "postgres: append entry")
	default:
		_, err := db.CopyFrom(ctx, s.pool, Table, logColumns, rows)
		return eris.Wrapf(err, "postgres: append %d entries", len(rows))
	}
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]model.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, document, created_at FROM legal_analysis_logs ORDER BY created_at DESC, id DESC LIMIT $1`,
		clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent entries")
	}
	defer rows.Close()

	var out []model.Entry
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.source, &r.document, &r.createdAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		e, err := fromRow(r.id, r.source, r.document, r.createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate entries")
}
