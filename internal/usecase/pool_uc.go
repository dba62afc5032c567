package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
)

// PoolTxLedger is the transaction-scoped half of the pool ledger. Callers that
// already hold a tx use it so reservation and their own writes commit together.
type PoolTxLedger interface {
	ReserveTx(ctx context.Context, tx repository.Tx, institutionID string, count int64) (*model.SessionPool, error)
	ReleaseTx(ctx context.Context, tx repository.Tx, institutionID string, count int64) (*model.SessionPool, error)
}

// PoolUseCase tracks each institution's purchased and reserved sessions.
type PoolUseCase interface {
	PoolTxLedger

	// IncreasePurchasedCapacity records a confirmed purchase; the pool is
	// created on first purchase.
	IncreasePurchasedCapacity(ctx context.Context, institutionID string, count int64) (*model.SessionPool, error)
	// RecordPurchase credits a confirmed payment once. A payment reference
	// seen before returns domain.ErrAlreadyExists and leaves the pool as is.
	RecordPurchase(ctx context.Context, in PurchaseInput) (*model.SessionPool, error)
	ListPurchases(ctx context.Context, institutionID string) ([]*model.SessionPurchase, error)
	// Reserve fails with *domain.InsufficientCapacityError when the pool has
	// fewer than count sessions left.
	Reserve(ctx context.Context, institutionID string, count int64) (*model.SessionPool, error)
	Release(ctx context.Context, institutionID string, count int64) (*model.SessionPool, error)

	Get(ctx context.Context, institutionID string) (*model.SessionPool, error)
	Summary(ctx context.Context, institutionID string) (*model.PoolSummary, error)
}

// PurchaseInput is a payment confirmation from billing.
type PurchaseInput struct {
	InstitutionID string
	PaymentRef    string
	SessionCount  int64
	Amount        decimal.Decimal
	Currency      string
}

var _ PoolUseCase = (*poolUC)(nil)

type poolUC struct {
	pools     repository.SessionPoolRepository
	allocs    repository.AllocationRepository
	purchases repository.SessionPurchaseRepository
	locker    repository.InstitutionLocker
	runner    txRunner
	log       *zerolog.Logger
}

func NewPoolUseCase(
	pools repository.SessionPoolRepository,
	allocs repository.AllocationRepository,
	purchases repository.SessionPurchaseRepository,
	locker repository.InstitutionLocker,
	tx repository.TransactionManager,
	opts Options,
	logger *zerolog.Logger,
) PoolUseCase {
	l := orNop(logger).With().Str("component", "PoolUseCase").Logger()
	return &poolUC{
		pools:     pools,
		allocs:    allocs,
		purchases: purchases,
		locker:    locker,
		runner:    newTxRunner(tx, opts, &l),
		log:       &l,
	}
}

func (uc *poolUC) IncreasePurchasedCapacity(ctx context.Context, institutionID string, count int64) (*model.SessionPool, error) {
	if count <= 0 {
		return nil, domain.Invalid("purchased count must be positive, got %d", count)
	}
	var out *model.SessionPool
	err := uc.runner.run(ctx, "pool.purchase", func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.addPurchasedTx(ctx, tx, institutionID, count)
		out = p
		return err
	})
	if err != nil {
		metrics.IncPoolOp("purchase", "error")
		return nil, err
	}
	metrics.IncPoolOp("purchase", "ok")
	metrics.AddSessionsPurchased(count)
	uc.log.Info().Str("institution_id", institutionID).Int64("count", count).Int64("total", out.TotalSessions).Msg("purchased capacity added")
	return out, nil
}

func (uc *poolUC) RecordPurchase(ctx context.Context, in PurchaseInput) (*model.SessionPool, error) {
	pu, err := model.NewSessionPurchase(in.InstitutionID, in.PaymentRef, in.SessionCount, in.Amount, in.Currency)
	if err != nil {
		return nil, err
	}
	var out *model.SessionPool
	err = uc.runner.run(ctx, "pool.record_purchase", func(ctx context.Context, tx repository.Tx) error {
		if err := uc.locker.LockInstitution(ctx, tx, pu.InstitutionID); err != nil {
			return err
		}
		if _, err := uc.purchases.FindByPaymentRef(ctx, tx, pu.PaymentRef); err == nil {
			return fmt.Errorf("payment %s: %w", pu.PaymentRef, domain.ErrAlreadyExists)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		p, err := uc.addPurchasedTx(ctx, tx, pu.InstitutionID, pu.SessionCount)
		if err != nil {
			return err
		}
		if err := uc.purchases.Create(ctx, tx, pu); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			uc.log.Info().Str("payment_ref", pu.PaymentRef).Msg("purchase already credited")
			metrics.IncPoolOp("purchase", "duplicate")
			return nil, err
		}
		metrics.IncPoolOp("purchase", "error")
		return nil, err
	}
	metrics.IncPoolOp("purchase", "ok")
	metrics.AddSessionsPurchased(pu.SessionCount)
	uc.log.Info().
		Str("institution_id", pu.InstitutionID).
		Str("payment_ref", pu.PaymentRef).
		Int64("count", pu.SessionCount).
		Str("amount", pu.Amount.StringFixed(2)).
		Int64("total", out.TotalSessions).
		Msg("purchase credited")
	return out, nil
}

func (uc *poolUC) ListPurchases(ctx context.Context, institutionID string) ([]*model.SessionPurchase, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	return uc.purchases.ListByInstitution(ctx, repository.NoTX, institutionID)
}

func (uc *poolUC) addPurchasedTx(ctx context.Context, tx repository.Tx, institutionID string, count int64) (*model.SessionPool, error) {
	if err := uc.locker.LockInstitution(ctx, tx, institutionID); err != nil {
		return nil, err
	}
	p, err := uc.pools.FindByInstitution(ctx, tx, institutionID)
	if errors.Is(err, domain.ErrNotFound) {
		p, err = model.NewSessionPool(institutionID)
	}
	if err != nil {
		return nil, err
	}
	if err := p.AddPurchased(count); err != nil {
		return nil, err
	}
	if err := uc.pools.Save(ctx, tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (uc *poolUC) Reserve(ctx context.Context, institutionID string, count int64) (*model.SessionPool, error) {
	var out *model.SessionPool
	err := uc.runner.run(ctx, "pool.reserve", func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.ReserveTx(ctx, tx, institutionID, count)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *poolUC) Release(ctx context.Context, institutionID string, count int64) (*model.SessionPool, error) {
	var out *model.SessionPool
	err := uc.runner.run(ctx, "pool.release", func(ctx context.Context, tx repository.Tx) error {
		p, err := uc.ReleaseTx(ctx, tx, institutionID, count)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *poolUC) ReserveTx(ctx context.Context, tx repository.Tx, institutionID string, count int64) (*model.SessionPool, error) {
	p, err := uc.lockedPool(ctx, tx, institutionID)
	if err != nil {
		return nil, err
	}
	if err := p.Reserve(count); err != nil {
		if errors.Is(err, domain.ErrInsufficientCapacity) {
			metrics.IncCapacityRejected("reserve")
		}
		metrics.IncPoolOp("reserve", "rejected")
		return nil, err
	}
	if err := uc.pools.Save(ctx, tx, p); err != nil {
		return nil, err
	}
	metrics.IncPoolOp("reserve", "ok")
	return p, nil
}

func (uc *poolUC) ReleaseTx(ctx context.Context, tx repository.Tx, institutionID string, count int64) (*model.SessionPool, error) {
	p, err := uc.lockedPool(ctx, tx, institutionID)
	if err != nil {
		return nil, err
	}
	if err := p.Release(count); err != nil {
		metrics.IncPoolOp("release", "rejected")
		return nil, err
	}
	if err := uc.pools.Save(ctx, tx, p); err != nil {
		return nil, err
	}
	metrics.IncPoolOp("release", "ok")
	return p, nil
}

func (uc *poolUC) lockedPool(ctx context.Context, tx repository.Tx, institutionID string) (*model.SessionPool, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	if err := uc.locker.LockInstitution(ctx, tx, institutionID); err != nil {
		return nil, err
	}
	p, err := uc.pools.FindByInstitution(ctx, tx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("session pool for institution %s: %w", institutionID, err)
	}
	return p, nil
}

func (uc *poolUC) Get(ctx context.Context, institutionID string) (*model.SessionPool, error) {
	return uc.pools.FindByInstitution(ctx, repository.NoTX, institutionID)
}

// Summary reports the pool next to what its active allocations hold and have consumed.
func (uc *poolUC) Summary(ctx context.Context, institutionID string) (*model.PoolSummary, error) {
	p, err := uc.pools.FindByInstitution(ctx, repository.NoTX, institutionID)
	if err != nil {
		return nil, err
	}
	list, err := uc.allocs.ListByInstitution(ctx, repository.NoTX, institutionID, model.AllocationFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	s := &model.PoolSummary{
		InstitutionID:     p.InstitutionID,
		TotalSessions:     p.TotalSessions,
		UsedSessions:      p.UsedSessions,
		AvailableSessions: p.Available(),
		ActiveAllocations: len(list),
	}
	for _, a := range list {
		s.AllocatedSessions += a.AllocatedCount
		s.ConsumedSessions += a.UsedCount
	}
	return s, nil
}
