package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/ports/repository"
)

var (
	_ repository.TransactionManager = (*TxManager)(nil)
	_ repository.InstitutionLocker  = (*TxManager)(nil)
)

// TxManager implements repository.TransactionManager for Postgres (pgx).
// The tx handle reaches repositories as pgx.Tx through repository.Tx.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx opens a transaction, runs fn and commits. Any error from fn rolls
// back. Serialization failures surface as domain.ErrContention, including
// those raised by COMMIT itself.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ctx, hooks := withCommitHooks(ctx)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	hooks.run(ctx)
	return nil
}

type commitHooksKey struct{}

// commitHooks collects work that must only happen once a transaction's
// writes are visible to other sessions.
type commitHooks struct {
	fns []func(ctx context.Context)
}

func withCommitHooks(ctx context.Context) (context.Context, *commitHooks) {
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// afterCommit queues fn on the transaction carried by ctx. It reports false
// when ctx carries none, in which case the caller should run fn itself.
func afterCommit(ctx context.Context, fn func(ctx context.Context)) bool {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		return false
	}
	h.fns = append(h.fns, fn)
	return true
}

func (h *commitHooks) run(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, fn := range h.fns {
		fn(ctx)
	}
	h.fns = nil
}

// LockInstitution takes a transaction-scoped advisory lock keyed on the
// institution. Postgres releases it at COMMIT or ROLLBACK, and a second call
// in the same tx is a no-op.
func (m *TxManager) LockInstitution(ctx context.Context, tx repository.Tx, institutionID string) error {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	if _, err := pgTx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64("institution:"+institutionID)); err != nil {
		return mapPgError(err)
	}
	return nil
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}
