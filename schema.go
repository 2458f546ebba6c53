package identity

import (
	"context"

	"github.com/uptrace/bun"
)

// CreateSchema provisions the identity tables. It is idempotent so callers
// can run it on every boot.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Account)(nil),
		(*ApplicantProfile)(nil),
		(*HRProfile)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
