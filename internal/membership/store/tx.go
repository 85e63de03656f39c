package store

import (
	"context"
	"database/sql"

	txcontext "orgapi/pkg/platform/tx"
)

// PostgresTx runs a block of store calls in one database transaction. Stores
// pick the transaction up from the context handed to fn.
type PostgresTx struct {
	db *sql.DB
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var fnErr error
	err := txcontext.Run(ctx, t.db, func(ctx context.Context, _ *sql.Tx) error {
		fnErr = fn(ctx)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return mapWriteErr("commit tx", err)
	}
	return nil
}
