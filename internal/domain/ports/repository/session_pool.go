package repository

import (
	"context"

	"interview-sessions/internal/domain/model"
)

type SessionPoolRepository interface {
	// FindByInstitution returns domain.ErrNotFound when no purchase was recorded yet.
	// Inside a tx the row is locked for update.
	FindByInstitution(ctx context.Context, tx Tx, institutionID string) (*model.SessionPool, error)
	// Save upserts the pool keyed by institution.
	Save(ctx context.Context, tx Tx, p *model.SessionPool) error
}
