package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/deskpilot-io/deskpilot/internal/database"
)

// insertID runs an INSERT and returns the generated id, papering over the
// RETURNING/LastInsertId split between drivers. The query is written without
// a RETURNING clause.
func insertID(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int, error) {
	query = database.ConvertPlaceholders(query)
	if database.IsPostgres() {
		var id int
		if err := sqlx.GetContext(ctx, ext, &id, query+" RETURNING id", args...); err != nil {
			return 0, err
		}
		return id, nil
	}
	result, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}
