package repository

import (
	"context"

	"interview-sessions/internal/domain/model"
)

type SessionRequestRepository interface {
	Create(ctx context.Context, tx Tx, r *model.SessionRequest) error
	Update(ctx context.Context, tx Tx, r *model.SessionRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SessionRequest, error)
	List(ctx context.Context, tx Tx, f model.RequestFilter) ([]*model.SessionRequest, error)
}
