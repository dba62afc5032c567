package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
)

// AllocationTxLedger lets another use case grant sessions inside its own tx.
type AllocationTxLedger interface {
	CreateOrAugmentTx(ctx context.Context, tx repository.Tx, institutionID string, target model.AllocationTarget, count int64, allocationType string) (*model.Allocation, error)
}

// AllocationUseCase distributes pool capacity to departments, teachers and students.
type AllocationUseCase interface {
	AllocationTxLedger

	// CreateOrAugment reserves count sessions from the pool and adds them to the
	// active allocation for target, creating it when absent.
	CreateOrAugment(ctx context.Context, institutionID string, target model.AllocationTarget, count int64, allocationType string) (*model.Allocation, error)
	// Resize sets AllocatedCount, reserving or releasing the difference.
	Resize(ctx context.Context, allocationID string, newAllocatedCount int64) (*model.Allocation, error)
	// Delete releases the whole allocated count and deactivates the allocation.
	Delete(ctx context.Context, allocationID string) error
	// Consume records finished interviews. The pool is not touched.
	Consume(ctx context.Context, allocationID string, count int64) (*model.Allocation, error)

	Get(ctx context.Context, allocationID string) (*model.Allocation, error)
	// FindByStudent returns the student's active allocation in any institution.
	FindByStudent(ctx context.Context, studentID string) (*model.Allocation, error)
	ListByInstitution(ctx context.Context, institutionID string, f model.AllocationFilter) ([]*model.Allocation, error)
}

var _ AllocationUseCase = (*allocationUC)(nil)

type allocationUC struct {
	allocs repository.AllocationRepository
	pool   PoolTxLedger
	locker repository.InstitutionLocker
	runner txRunner
	log    *zerolog.Logger
}

func NewAllocationUseCase(
	allocs repository.AllocationRepository,
	pool PoolTxLedger,
	locker repository.InstitutionLocker,
	tx repository.TransactionManager,
	opts Options,
	logger *zerolog.Logger,
) AllocationUseCase {
	l := orNop(logger).With().Str("component", "AllocationUseCase").Logger()
	return &allocationUC{
		allocs: allocs,
		pool:   pool,
		locker: locker,
		runner: newTxRunner(tx, opts, &l),
		log:    &l,
	}
}

func (uc *allocationUC) CreateOrAugment(ctx context.Context, institutionID string, target model.AllocationTarget, count int64, allocationType string) (*model.Allocation, error) {
	var out *model.Allocation
	err := uc.runner.run(ctx, "allocation.create", func(ctx context.Context, tx repository.Tx) error {
		a, err := uc.CreateOrAugmentTx(ctx, tx, institutionID, target, count, allocationType)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *allocationUC) CreateOrAugmentTx(ctx context.Context, tx repository.Tx, institutionID string, target model.AllocationTarget, count int64, allocationType string) (*model.Allocation, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, domain.Invalid("allocation count must be positive, got %d", count)
	}

	// Reserve first: nothing below runs unless the pool had room.
	if _, err := uc.pool.ReserveTx(ctx, tx, institutionID, count); err != nil {
		return nil, err
	}

	existing, err := uc.allocs.FindActiveByTarget(ctx, tx, institutionID, target)
	switch {
	case err == nil:
		if existing.InstitutionID != institutionID {
			return nil, domain.Invalid("student %s already holds an allocation in institution %s", target.ID, existing.InstitutionID)
		}
		if err := existing.Augment(count); err != nil {
			return nil, err
		}
		if err := uc.allocs.Update(ctx, tx, existing); err != nil {
			return nil, err
		}
		metrics.IncAllocationOp("augment")
		uc.log.Info().Str("allocation_id", existing.ID).Str("institution_id", institutionID).
			Int64("count", count).Int64("allocated", existing.AllocatedCount).Msg("allocation augmented")
		return existing, nil
	case errors.Is(err, domain.ErrNotFound):
		a, err := model.NewAllocation(institutionID, target, count, allocationType)
		if err != nil {
			return nil, err
		}
		if err := uc.allocs.Create(ctx, tx, a); err != nil {
			return nil, err
		}
		metrics.IncAllocationOp("create")
		uc.log.Info().Str("allocation_id", a.ID).Str("institution_id", institutionID).
			Str("kind", string(a.Kind)).Int64("count", count).Msg("allocation created")
		return a, nil
	default:
		return nil, err
	}
}

func (uc *allocationUC) Resize(ctx context.Context, allocationID string, newAllocatedCount int64) (*model.Allocation, error) {
	var out *model.Allocation
	err := uc.runner.run(ctx, "allocation.resize", func(ctx context.Context, tx repository.Tx) error {
		a, err := uc.lockedAllocation(ctx, tx, allocationID)
		if err != nil {
			return err
		}
		if !a.IsActive() {
			return domain.Invalid("allocation %s is not active", a.ID)
		}
		delta, err := a.ResizeDelta(newAllocatedCount)
		if err != nil {
			return err
		}
		switch {
		case delta > 0:
			if _, err := uc.pool.ReserveTx(ctx, tx, a.InstitutionID, delta); err != nil {
				return err
			}
		case delta < 0:
			if _, err := uc.pool.ReleaseTx(ctx, tx, a.InstitutionID, -delta); err != nil {
				return err
			}
		default:
			out = a
			return nil
		}
		a.AllocatedCount = newAllocatedCount
		a.UpdatedAt = uc.runner.opts.Now()
		if err := uc.allocs.Update(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncAllocationOp("resize")
	return out, nil
}

func (uc *allocationUC) Delete(ctx context.Context, allocationID string) error {
	err := uc.runner.run(ctx, "allocation.delete", func(ctx context.Context, tx repository.Tx) error {
		a, err := uc.lockedAllocation(ctx, tx, allocationID)
		if err != nil {
			return err
		}
		if !a.IsActive() {
			return fmt.Errorf("allocation %s: %w", allocationID, domain.ErrNotFound)
		}
		if _, err := uc.pool.ReleaseTx(ctx, tx, a.InstitutionID, a.AllocatedCount); err != nil {
			return err
		}
		a.Status = model.AllocationStatusInactive
		a.UpdatedAt = uc.runner.opts.Now()
		return uc.allocs.Update(ctx, tx, a)
	})
	if err != nil {
		return err
	}
	metrics.IncAllocationOp("delete")
	uc.log.Info().Str("allocation_id", allocationID).Msg("allocation deleted")
	return nil
}

func (uc *allocationUC) Consume(ctx context.Context, allocationID string, count int64) (*model.Allocation, error) {
	var out *model.Allocation
	err := uc.runner.run(ctx, "allocation.consume", func(ctx context.Context, tx repository.Tx) error {
		a, err := uc.lockedAllocation(ctx, tx, allocationID)
		if err != nil {
			return err
		}
		if err := a.Consume(count); err != nil {
			if errors.Is(err, domain.ErrInsufficientCapacity) {
				metrics.IncCapacityRejected("consume")
			}
			return err
		}
		if err := uc.allocs.Update(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncAllocationOp("consume")
	return out, nil
}

// lockedAllocation resolves the owning institution, takes its lock and
// re-reads the allocation under it.
func (uc *allocationUC) lockedAllocation(ctx context.Context, tx repository.Tx, id string) (*model.Allocation, error) {
	if id == "" {
		return nil, domain.Invalid("allocation id is required")
	}
	a, err := uc.allocs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if err := uc.locker.LockInstitution(ctx, tx, a.InstitutionID); err != nil {
		return nil, err
	}
	return uc.allocs.FindByID(ctx, tx, id)
}

func (uc *allocationUC) Get(ctx context.Context, allocationID string) (*model.Allocation, error) {
	return uc.allocs.FindByID(ctx, repository.NoTX, allocationID)
}

func (uc *allocationUC) FindByStudent(ctx context.Context, studentID string) (*model.Allocation, error) {
	if studentID == "" {
		return nil, domain.Invalid("student id is required")
	}
	return uc.allocs.FindActiveByTarget(ctx, repository.NoTX, "", model.AllocationTarget{Kind: model.TargetStudent, ID: studentID})
}

func (uc *allocationUC) ListByInstitution(ctx context.Context, institutionID string, f model.AllocationFilter) ([]*model.Allocation, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	return uc.allocs.ListByInstitution(ctx, repository.NoTX, institutionID, f)
}
