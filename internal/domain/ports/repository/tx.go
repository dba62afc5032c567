package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one storage transaction and passes the
// handle through tx. Repositories accept that handle (or NoTX for the
// non-transactional path) on every method.
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres). A
// serialization failure or deadlock must surface as domain.ErrContention so
// callers can retry the whole body.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// InstitutionLocker serializes writers of one institution's pool, allocations
// and override for the lifetime of tx.
type InstitutionLocker interface {
	LockInstitution(ctx context.Context, tx Tx, institutionID string) error
}
