package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
)

// PricingUseCase owns global pricing, institution overrides and price resolution.
type PricingUseCase interface {
	GetSettings(ctx context.Context) (*model.PricingSettings, error)
	// UpdateSettings applies patch only if the stored settings are still at
	// expectedVersion. A stale version returns domain.ErrContention.
	UpdateSettings(ctx context.Context, patch model.SettingsPatch, expectedVersion int64, actorID string) (*model.PricingSettings, error)

	GetOverride(ctx context.Context, institutionID string) (*model.PricingOverride, error)
	// UpsertOverride patches the institution override. A missing override is
	// seeded from the current global values and enabled.
	UpsertOverride(ctx context.Context, institutionID string, patch model.OverridePatch) (*model.PricingOverride, error)
	SetOverrideEnabled(ctx context.Context, institutionID string, enabled bool) (*model.PricingOverride, error)
	DeleteOverride(ctx context.Context, institutionID string) error

	// ResolveEffectivePrice never looks at scheduled changes. A zero asOf means now.
	ResolveEffectivePrice(ctx context.Context, institutionID string, asOf time.Time) (*model.EffectivePrice, error)
	QuotePurchase(ctx context.Context, institutionID string, sessions, minutesPerSession int64, asOf time.Time) (*model.PurchaseQuote, error)
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	pricing repository.PricingRepository
	locker  repository.InstitutionLocker
	runner  txRunner
	log     *zerolog.Logger
}

func NewPricingUseCase(
	pricing repository.PricingRepository,
	locker repository.InstitutionLocker,
	tx repository.TransactionManager,
	opts Options,
	logger *zerolog.Logger,
) PricingUseCase {
	l := orNop(logger).With().Str("component", "PricingUseCase").Logger()
	return &pricingUC{
		pricing: pricing,
		locker:  locker,
		runner:  newTxRunner(tx, opts, &l),
		log:     &l,
	}
}

func (uc *pricingUC) GetSettings(ctx context.Context) (*model.PricingSettings, error) {
	return uc.pricing.GetSettings(ctx, repository.NoTX)
}

func (uc *pricingUC) UpdateSettings(ctx context.Context, patch model.SettingsPatch, expectedVersion int64, actorID string) (*model.PricingSettings, error) {
	if patch.Empty() {
		return nil, domain.Invalid("no pricing fields to update")
	}
	var out *model.PricingSettings
	// A version mismatch is the caller's conflict to resolve, so no retry here.
	err := uc.runner.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := uc.pricing.GetSettings(ctx, tx)
		if err != nil {
			return err
		}
		if s.Version != expectedVersion {
			return fmt.Errorf("%w: pricing settings are at version %d, not %d", domain.ErrContention, s.Version, expectedVersion)
		}
		if err := patch.ApplyTo(s); err != nil {
			return err
		}
		s.UpdatedBy = actorID
		s.UpdatedAt = uc.runner.opts.Now()
		if err := uc.pricing.SaveSettings(ctx, tx, s, expectedVersion); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Int64("version", out.Version).Str("actor_id", actorID).Msg("pricing settings updated")
	return out, nil
}

func (uc *pricingUC) GetOverride(ctx context.Context, institutionID string) (*model.PricingOverride, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	return uc.pricing.GetOverride(ctx, repository.NoTX, institutionID)
}

func (uc *pricingUC) UpsertOverride(ctx context.Context, institutionID string, patch model.OverridePatch) (*model.PricingOverride, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	var out *model.PricingOverride
	err := uc.runner.run(ctx, "pricing.override", func(ctx context.Context, tx repository.Tx) error {
		if err := uc.locker.LockInstitution(ctx, tx, institutionID); err != nil {
			return err
		}
		o, err := uc.pricing.GetOverride(ctx, tx, institutionID)
		if errors.Is(err, domain.ErrNotFound) {
			s, serr := uc.pricing.GetSettings(ctx, tx)
			if serr != nil {
				return serr
			}
			o, err = model.NewOverrideFrom(institutionID, s), nil
		}
		if err != nil {
			return err
		}
		if err := patch.ApplyTo(o); err != nil {
			return err
		}
		if err := uc.pricing.SaveOverride(ctx, tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("institution_id", institutionID).Bool("enabled", out.IsEnabled).Msg("pricing override saved")
	return out, nil
}

func (uc *pricingUC) SetOverrideEnabled(ctx context.Context, institutionID string, enabled bool) (*model.PricingOverride, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	var out *model.PricingOverride
	err := uc.runner.run(ctx, "pricing.override_toggle", func(ctx context.Context, tx repository.Tx) error {
		if err := uc.locker.LockInstitution(ctx, tx, institutionID); err != nil {
			return err
		}
		o, err := uc.pricing.GetOverride(ctx, tx, institutionID)
		if err != nil {
			return err
		}
		if err := (model.OverridePatch{IsEnabled: &enabled}).ApplyTo(o); err != nil {
			return err
		}
		if err := uc.pricing.SaveOverride(ctx, tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("institution_id", institutionID).Bool("enabled", enabled).Msg("pricing override toggled")
	return out, nil
}

func (uc *pricingUC) DeleteOverride(ctx context.Context, institutionID string) error {
	if institutionID == "" {
		return domain.Invalid("institution id is required")
	}
	err := uc.runner.run(ctx, "pricing.override_delete", func(ctx context.Context, tx repository.Tx) error {
		if err := uc.locker.LockInstitution(ctx, tx, institutionID); err != nil {
			return err
		}
		return uc.pricing.DeleteOverride(ctx, tx, institutionID)
	})
	if err != nil {
		return err
	}
	uc.log.Info().Str("institution_id", institutionID).Msg("pricing override deleted")
	return nil
}

func (uc *pricingUC) ResolveEffectivePrice(ctx context.Context, institutionID string, asOf time.Time) (*model.EffectivePrice, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	if asOf.IsZero() {
		asOf = uc.runner.opts.Now()
	}
	s, err := uc.pricing.GetSettings(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	o, err := uc.pricing.GetOverride(ctx, repository.NoTX, institutionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	ep := model.ResolvePrice(institutionID, s, o, asOf)
	metrics.IncPriceResolution(string(ep.Source))
	return &ep, nil
}

func (uc *pricingUC) QuotePurchase(ctx context.Context, institutionID string, sessions, minutesPerSession int64, asOf time.Time) (*model.PurchaseQuote, error) {
	ep, err := uc.ResolveEffectivePrice(ctx, institutionID, asOf)
	if err != nil {
		return nil, err
	}
	return model.NewPurchaseQuote(*ep, sessions, minutesPerSession)
}
