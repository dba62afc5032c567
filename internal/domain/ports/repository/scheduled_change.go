package repository

import (
	"context"

	"interview-sessions/internal/domain/model"
)

type ScheduledChangeRepository interface {
	Create(ctx context.Context, tx Tx, c *model.ScheduledPriceChange) error
	Update(ctx context.Context, tx Tx, c *model.ScheduledPriceChange) error
	Delete(ctx context.Context, tx Tx, id string) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ScheduledPriceChange, error)
	// List orders by change date ascending.
	List(ctx context.Context, tx Tx, f model.ChangeFilter) ([]*model.ScheduledPriceChange, error)
}
