package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the opaque transaction handle passed through repository calls.
// Repositories MUST gracefully accept nil (non-transactional path); the
// concrete type is infra-defined (pgx.Tx for Postgres).
type Tx interface{}

// NoTX marks an explicitly non-transactional call.
var NoTX Tx

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via tx. Keeping the handle opaque lets
// use-case code compose repository calls without leaking storage types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
