// Package store persists analysis log entries to Postgres or SQLite.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/indexlegal/honoris/internal/config"
	"github.com/indexlegal/honoris/internal/db"
	"github.com/indexlegal/honoris/internal/model"
)

// Table is the append-only collection every entry lands in.
const Table = "legal_analysis_logs"

// DefaultRecentLimit applies when Recent is called with a non-positive limit.
const DefaultRecentLimit = 20

// Store is an append-only log of analyses. Entries are never updated or deleted.
type Store interface {
	// Append writes entries in one round trip. Missing IDs and timestamps are assigned.
	Append(ctx context.Context, entries ...model.Entry) error
	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]model.Entry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by creds.Driver.
func Open(ctx context.Context, creds config.StoreCredentials, cfg config.StoreConfig) (Store, error) {
	switch creds.Driver {
	case "", "postgres", "postgresql":
		return NewPostgres(ctx, creds.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		})
	case "sqlite", "sqlite3":
		return NewSQLite(creds.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", creds.Driver)
	}
}

// row is the flattened form shared by both backends.
type row struct {
	id        string
	source    string
	category  string
	document  []byte
	createdAt time.Time
}

func toRow(e *model.Entry) (row, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(e.Analysis)
	if err != nil {
		return row{}, eris.Wrapf(err, "store: marshal entry %s", e.ID)
	}
	return row{
		id:        e.ID,
		source:    e.Source,
		category:  e.Analysis.Category,
		document:  doc,
		createdAt: e.CreatedAt.UTC(),
	}, nil
}

func fromRow(id, source string, document []byte, createdAt time.Time) (model.Entry, error) {
	e := model.Entry{ID: id, Source: source, CreatedAt: createdAt}
	if err := json.Unmarshal(document, &e.Analysis); err != nil {
		return model.Entry{}, eris.Wrapf(err, "store: decode entry %s", id)
	}
	return e, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
