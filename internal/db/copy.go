package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Table splits a possibly schema-qualified name ("audit.logs") into a pgx identifier.
func Table(name string) pgx.Identifier {
	return pgx.Identifier(strings.Split(name, "."))
}

// CopyFrom bulk-inserts rows with the COPY protocol. Empty input is a no-op.
// A short count is reported as an error so callers never silently lose rows.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, Table(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	if n != int64(len(rows)) {
		return n, eris.Errorf("db: COPY INTO %s: copied %d of %d rows", table, n, len(rows))
	}
	return n, nil
}
