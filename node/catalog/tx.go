package catalog

import (
	"context"
	"database/sql"

	"github.com/zeebo/errs"
)

// withTx runs fn inside a transaction that is committed when fn returns nil
// and rolled back otherwise. The connection is released on every path.
func withTx(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
		} else {
			err = errs.Combine(err, tx.Rollback())
		}
	}()

	return fn(ctx, tx)
}
