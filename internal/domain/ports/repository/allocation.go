package repository

import (
	"context"

	"interview-sessions/internal/domain/model"
)

type AllocationRepository interface {
	Create(ctx context.Context, tx Tx, a *model.Allocation) error
	Update(ctx context.Context, tx Tx, a *model.Allocation) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Allocation, error)
	// FindActiveByTarget looks up the upsert target. Student allocations are
	// keyed on the student id alone; department and teacher allocations on
	// (institution, kind, id).
	FindActiveByTarget(ctx context.Context, tx Tx, institutionID string, target model.AllocationTarget) (*model.Allocation, error)
	ListByInstitution(ctx context.Context, tx Tx, institutionID string, f model.AllocationFilter) ([]*model.Allocation, error)
}
