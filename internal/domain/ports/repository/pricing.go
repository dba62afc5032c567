package repository

import (
	"context"

	"interview-sessions/internal/domain/model"
)

// PricingRepository persists the global settings singleton and the
// per-institution overrides.
type PricingRepository interface {
	GetSettings(ctx context.Context, tx Tx) (*model.PricingSettings, error)
	// SaveSettings writes s only if the stored version still equals
	// expectedVersion, then bumps s.Version. A stale version returns
	// domain.ErrContention.
	SaveSettings(ctx context.Context, tx Tx, s *model.PricingSettings, expectedVersion int64) error

	GetOverride(ctx context.Context, tx Tx, institutionID string) (*model.PricingOverride, error)
	SaveOverride(ctx context.Context, tx Tx, o *model.PricingOverride) error
	DeleteOverride(ctx context.Context, tx Tx, institutionID string) error
}
