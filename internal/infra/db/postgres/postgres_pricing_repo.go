package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
)

var _ repository.PricingRepository = (*pricingRepo)(nil)

type pricingRepo struct {
	pool *pgxpool.Pool
}

func NewPricingRepo(pool *pgxpool.Pool) *pricingRepo {
	return &pricingRepo{pool: pool}
}

func (r *pricingRepo) GetSettings(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error) {
	q := `
SELECT vapi_cost_per_minute, markup_percentage, annual_license_cost, version, updated_by, updated_at
  FROM pricing_settings
 WHERE id = 1`
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	var s model.PricingSettings
	if err := row.Scan(&s.VapiCostPerMinute, &s.MarkupPercentage, &s.AnnualLicenseCost, &s.Version, &s.UpdatedBy, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &s, nil
}

func (r *pricingRepo) SaveSettings(ctx context.Context, tx repository.Tx, s *model.PricingSettings, expectedVersion int64) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	const q = `
UPDATE pricing_settings SET
  vapi_cost_per_minute = $1,
  markup_percentage    = $2,
  annual_license_cost  = $3,
  updated_by           = $4,
  updated_at           = $5,
  version              = version + 1
WHERE id = 1 AND version = $6`
	tag, err := execSQL(ctx, r.pool, tx, q, s.VapiCostPerMinute, s.MarkupPercentage, s.AnnualLicenseCost, s.UpdatedBy, s.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pricing settings changed since version %d", domain.ErrContention, expectedVersion)
	}
	s.Version = expectedVersion + 1
	return nil
}

func (r *pricingRepo) GetOverride(ctx context.Context, tx repository.Tx, institutionID string) (*model.PricingOverride, error) {
	q := `
SELECT institution_id, custom_vapi_cost, custom_markup_percentage, custom_license_cost, is_enabled, created_at, updated_at
  FROM pricing_overrides
 WHERE institution_id = $1`
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, institutionID)
	if err != nil {
		return nil, err
	}
	var o model.PricingOverride
	if err := row.Scan(&o.InstitutionID, &o.CustomVapiCost, &o.CustomMarkupPercentage, &o.CustomLicenseCost, &o.IsEnabled, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &o, nil
}

func (r *pricingRepo) SaveOverride(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error {
	o.UpdatedAt = time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = o.UpdatedAt
	}
	const q = `
INSERT INTO pricing_overrides (institution_id, custom_vapi_cost, custom_markup_percentage, custom_license_cost, is_enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (institution_id) DO UPDATE SET
  custom_vapi_cost         = EXCLUDED.custom_vapi_cost,
  custom_markup_percentage = EXCLUDED.custom_markup_percentage,
  custom_license_cost      = EXCLUDED.custom_license_cost,
  is_enabled               = EXCLUDED.is_enabled,
  updated_at               = EXCLUDED.updated_at`
	_, err := execSQL(ctx, r.pool, tx, q, o.InstitutionID, o.CustomVapiCost, o.CustomMarkupPercentage, o.CustomLicenseCost, o.IsEnabled, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *pricingRepo) DeleteOverride(ctx context.Context, tx repository.Tx, institutionID string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM pricing_overrides WHERE institution_id = $1`, institutionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pricing override for %s: %w", institutionID, domain.ErrNotFound)
	}
	return nil
}
