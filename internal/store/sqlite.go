package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/indexlegal/honoris/internal/model"
)

// sqliteTime keeps stored timestamps fixed-width so text ordering matches time ordering.
const sqliteTime = "2006-01-02 15:04:05.000000000"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: empty database path")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS legal_analysis_logs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	category   TEXT NOT NULL,
	document   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_legal_analysis_logs_created_at ON legal_analysis_logs(created_at);
CREATE INDEX IF NOT EXISTS idx_legal_analysis_logs_category ON legal_analysis_logs(category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append writes all entries in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, entries ...model.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO legal_analysis_logs (id, source, category, document, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare append")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range entries {
		r, err := toRow(&entries[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.id, r.source, r.category, string(r.document), r.createdAt.Format(sqliteTime)); err != nil {
			return eris.Wrapf(err, "sqlite: append entry %s", r.id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append")
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, document, created_at FROM legal_analysis_logs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent entries")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Entry
	for rows.Next() {
		var (
			r   row
			doc string
		)
		if err := rows.Scan(&r.id, &r.source, &doc, &r.createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		e, err := fromRow(r.id, r.source, []byte(doc), r.createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate entries")
}
