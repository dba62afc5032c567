package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
)

// ScheduleInput describes a future pricing change. A nil CurrentValue is
// filled with the value in effect for Affected at scheduling time.
type ScheduleInput struct {
	ChangeDate   time.Time
	ChangeType   model.ChangeType
	Affected     string
	CurrentValue *decimal.Decimal
	NewValue     decimal.Decimal
	Notes        string
	CreatedBy    string
}

// ScheduledChangeUseCase records future-dated pricing mutations and applies them.
type ScheduledChangeUseCase interface {
	Schedule(ctx context.Context, in ScheduleInput) (*model.ScheduledPriceChange, error)
	// Apply writes the change into settings or the institution override and
	// marks it applied. It succeeds at most once per change.
	Apply(ctx context.Context, changeID string) (*model.ScheduledPriceChange, error)
	Cancel(ctx context.Context, changeID string) (*model.ScheduledPriceChange, error)
	// Update and Delete edit the record directly whatever its status.
	Update(ctx context.Context, changeID string, patch model.ScheduledChangePatch) (*model.ScheduledPriceChange, error)
	Delete(ctx context.Context, changeID string) error

	Get(ctx context.Context, changeID string) (*model.ScheduledPriceChange, error)
	List(ctx context.Context, f model.ChangeFilter) ([]*model.ScheduledPriceChange, error)

	// ApplyDue applies every scheduled change dated at or before now and
	// returns how many were applied. Failures of single changes are logged.
	ApplyDue(ctx context.Context, now time.Time) (int, error)
}

var _ ScheduledChangeUseCase = (*scheduledChangeUC)(nil)

type scheduledChangeUC struct {
	changes repository.ScheduledChangeRepository
	pricing repository.PricingRepository
	locker  repository.InstitutionLocker
	runner  txRunner
	log     *zerolog.Logger
}

func NewScheduledChangeUseCase(
	changes repository.ScheduledChangeRepository,
	pricing repository.PricingRepository,
	locker repository.InstitutionLocker,
	tx repository.TransactionManager,
	opts Options,
	logger *zerolog.Logger,
) ScheduledChangeUseCase {
	l := orNop(logger).With().Str("component", "ScheduledChangeUseCase").Logger()
	return &scheduledChangeUC{
		changes: changes,
		pricing: pricing,
		locker:  locker,
		runner:  newTxRunner(tx, opts, &l),
		log:     &l,
	}
}

func (uc *scheduledChangeUC) Schedule(ctx context.Context, in ScheduleInput) (*model.ScheduledPriceChange, error) {
	current := decimal.Zero
	if in.CurrentValue != nil {
		current = *in.CurrentValue
	} else if in.ChangeType.Valid() && in.Affected != "" {
		v, err := uc.currentValue(ctx, in.ChangeType, in.Affected)
		if err != nil {
			return nil, err
		}
		current = v
	}
	c, err := model.NewScheduledPriceChange(in.ChangeDate, in.ChangeType, in.Affected, current, in.NewValue, uc.runner.opts.Now())
	if err != nil {
		return nil, err
	}
	c.Notes = in.Notes
	c.CreatedBy = in.CreatedBy
	if err := uc.changes.Create(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	uc.log.Info().Str("change_id", c.ID).Str("type", string(c.ChangeType)).Str("affected", c.Affected).
		Time("change_date", c.ChangeDate).Msg("price change scheduled")
	return c, nil
}

// currentValue reads the field a change would overwrite, falling back to the
// global value when the institution has no override.
func (uc *scheduledChangeUC) currentValue(ctx context.Context, ct model.ChangeType, affected string) (decimal.Decimal, error) {
	s, err := uc.pricing.GetSettings(ctx, repository.NoTX)
	if err != nil {
		return decimal.Zero, err
	}
	o := model.NewOverrideFrom(affected, s)
	if affected != model.AffectedAll {
		stored, err := uc.pricing.GetOverride(ctx, repository.NoTX, affected)
		switch {
		case err == nil:
			o = stored
		case !errors.Is(err, domain.ErrNotFound):
			return decimal.Zero, err
		}
	}
	switch ct {
	case model.ChangeVapiCost:
		return o.CustomVapiCost, nil
	case model.ChangeMarkupPercentage:
		return o.CustomMarkupPercentage, nil
	default:
		return o.CustomLicenseCost, nil
	}
}

func (uc *scheduledChangeUC) Apply(ctx context.Context, changeID string) (*model.ScheduledPriceChange, error) {
	if changeID == "" {
		return nil, domain.Invalid("change id is required")
	}
	var out *model.ScheduledPriceChange
	err := uc.runner.run(ctx, "scheduled_change.apply", func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.changes.FindByID(ctx, tx, changeID)
		if err != nil {
			return err
		}
		if err := c.MarkApplied(uc.runner.opts.Now()); err != nil {
			return err
		}
		if c.IsGlobal() {
			err = uc.applyGlobal(ctx, tx, c)
		} else {
			err = uc.applyInstitution(ctx, tx, c)
		}
		if err != nil {
			return err
		}
		if err := uc.changes.Update(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncScheduledChange("applied")
	uc.log.Info().Str("change_id", out.ID).Str("type", string(out.ChangeType)).Str("affected", out.Affected).
		Str("new_value", out.NewValue.String()).Msg("price change applied")
	return out, nil
}

func (uc *scheduledChangeUC) applyGlobal(ctx context.Context, tx repository.Tx, c *model.ScheduledPriceChange) error {
	s, err := uc.pricing.GetSettings(ctx, tx)
	if err != nil {
		return err
	}
	expected := s.Version
	c.ApplyToSettings(s)
	s.UpdatedBy = "scheduled_change:" + c.ID
	s.UpdatedAt = uc.runner.opts.Now()
	return uc.pricing.SaveSettings(ctx, tx, s, expected)
}

func (uc *scheduledChangeUC) applyInstitution(ctx context.Context, tx repository.Tx, c *model.ScheduledPriceChange) error {
	if err := uc.locker.LockInstitution(ctx, tx, c.Affected); err != nil {
		return err
	}
	o, err := uc.pricing.GetOverride(ctx, tx, c.Affected)
	if errors.Is(err, domain.ErrNotFound) {
		s, serr := uc.pricing.GetSettings(ctx, tx)
		if serr != nil {
			return serr
		}
		o, err = model.NewOverrideFrom(c.Affected, s), nil
	}
	if err != nil {
		return err
	}
	c.ApplyToOverride(o)
	return uc.pricing.SaveOverride(ctx, tx, o)
}

func (uc *scheduledChangeUC) Cancel(ctx context.Context, changeID string) (*model.ScheduledPriceChange, error) {
	if changeID == "" {
		return nil, domain.Invalid("change id is required")
	}
	var out *model.ScheduledPriceChange
	err := uc.runner.run(ctx, "scheduled_change.cancel", func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.changes.FindByID(ctx, tx, changeID)
		if err != nil {
			return err
		}
		if err := c.Cancel(uc.runner.opts.Now()); err != nil {
			return err
		}
		if err := uc.changes.Update(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncScheduledChange("cancelled")
	uc.log.Info().Str("change_id", changeID).Msg("price change cancelled")
	return out, nil
}

func (uc *scheduledChangeUC) Update(ctx context.Context, changeID string, patch model.ScheduledChangePatch) (*model.ScheduledPriceChange, error) {
	if changeID == "" {
		return nil, domain.Invalid("change id is required")
	}
	var out *model.ScheduledPriceChange
	err := uc.runner.run(ctx, "scheduled_change.update", func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.changes.FindByID(ctx, tx, changeID)
		if err != nil {
			return err
		}
		if err := patch.ApplyTo(c); err != nil {
			return err
		}
		if err := uc.changes.Update(ctx, tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Status != model.ChangeStatusScheduled {
		uc.log.Warn().Str("change_id", changeID).Str("status", string(out.Status)).Msg("edited a price change that is no longer scheduled")
	}
	return out, nil
}

func (uc *scheduledChangeUC) Delete(ctx context.Context, changeID string) error {
	if changeID == "" {
		return domain.Invalid("change id is required")
	}
	if err := uc.changes.Delete(ctx, repository.NoTX, changeID); err != nil {
		return err
	}
	uc.log.Info().Str("change_id", changeID).Msg("price change deleted")
	return nil
}

func (uc *scheduledChangeUC) Get(ctx context.Context, changeID string) (*model.ScheduledPriceChange, error) {
	return uc.changes.FindByID(ctx, repository.NoTX, changeID)
}

func (uc *scheduledChangeUC) List(ctx context.Context, f model.ChangeFilter) ([]*model.ScheduledPriceChange, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, domain.Invalid("unknown change status %q", *f.Status)
	}
	return uc.changes.List(ctx, repository.NoTX, f)
}

func (uc *scheduledChangeUC) ApplyDue(ctx context.Context, now time.Time) (int, error) {
	status := model.ChangeStatusScheduled
	due, err := uc.changes.List(ctx, repository.NoTX, model.ChangeFilter{Status: &status, DueBy: &now})
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, c := range due {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}
		if _, err := uc.Apply(ctx, c.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrNotFound) {
				// cancelled, deleted or applied elsewhere since the listing
				metrics.IncScheduledChange("skipped")
				continue
			}
			metrics.IncScheduledChange("failed")
			uc.log.Error().Err(err).Str("change_id", c.ID).Msg("apply due price change")
			continue
		}
		applied++
	}
	return applied, nil
}
