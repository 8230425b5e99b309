package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Repositories accept a `tx Tx` argument and must gracefully accept nil
// (non-transactional path). The concrete type of `tx` is infra-defined
// (pgx.Tx for Postgres). Every cross-cutting counter in this system (token
// balances, key quotas, job status) is mutated only inside such a transaction
// or through a single guarded UPDATE, never read-then-separately-write.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
