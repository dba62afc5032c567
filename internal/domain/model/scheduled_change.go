package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
)

type ChangeType string

const (
	ChangeVapiCost         ChangeType = "vapiCost"
	ChangeMarkupPercentage ChangeType = "markupPercentage"
	ChangeLicenseCost      ChangeType = "licenseCost"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeVapiCost, ChangeMarkupPercentage, ChangeLicenseCost:
		return true
	}
	return false
}

func (c ChangeType) limit() scaleLimit {
	switch c {
	case ChangeMarkupPercentage:
		return markupLimit
	case ChangeLicenseCost:
		return licenseLimit
	}
	return vapiCostLimit
}

type ChangeStatus string

const (
	ChangeStatusScheduled ChangeStatus = "scheduled"
	ChangeStatusApplied   ChangeStatus = "applied"
	ChangeStatusCancelled ChangeStatus = "cancelled"
)

func (s ChangeStatus) Valid() bool {
	switch s {
	case ChangeStatusScheduled, ChangeStatusApplied, ChangeStatusCancelled:
		return true
	}
	return false
}

// AffectedAll targets the global settings instead of one institution.
const AffectedAll = "all"

// ScheduledPriceChange is a future-dated pricing mutation. CurrentValue is a
// snapshot taken at creation and is not re-checked when the change is applied.
type ScheduledPriceChange struct {
	ID           string
	ChangeDate   time.Time
	ChangeType   ChangeType
	Affected     string
	CurrentValue decimal.Decimal
	NewValue     decimal.Decimal
	Status       ChangeStatus
	Notes        string
	CreatedBy    string
	AppliedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewScheduledPriceChange(changeDate time.Time, ct ChangeType, affected string, current, next decimal.Decimal, now time.Time) (*ScheduledPriceChange, error) {
	if !changeDate.After(now) {
		return nil, domain.Invalid("change date %s must be in the future", changeDate.Format(time.RFC3339))
	}
	if !ct.Valid() {
		return nil, domain.Invalid("unknown change type %q", ct)
	}
	if affected == "" {
		return nil, domain.Invalid("affected is required")
	}
	if err := ct.limit().check("new value", next); err != nil {
		return nil, err
	}
	if err := ct.limit().check("current value", current); err != nil {
		return nil, err
	}
	return &ScheduledPriceChange{
		ID:           uuid.NewString(),
		ChangeDate:   changeDate,
		ChangeType:   ct,
		Affected:     affected,
		CurrentValue: current,
		NewValue:     next,
		Status:       ChangeStatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (c *ScheduledPriceChange) IsGlobal() bool { return c.Affected == AffectedAll }

func (c *ScheduledPriceChange) IsDue(now time.Time) bool {
	return c.Status == ChangeStatusScheduled && !c.ChangeDate.After(now)
}

func (c *ScheduledPriceChange) transition(to ChangeStatus, at time.Time) error {
	if c.Status != ChangeStatusScheduled {
		return fmt.Errorf("%w: scheduled change %s is already %s", domain.ErrInvalidTransition, c.ID, c.Status)
	}
	c.Status = to
	c.UpdatedAt = at
	return nil
}

func (c *ScheduledPriceChange) MarkApplied(at time.Time) error {
	if err := c.transition(ChangeStatusApplied, at); err != nil {
		return err
	}
	c.AppliedAt = &at
	return nil
}

func (c *ScheduledPriceChange) Cancel(at time.Time) error {
	return c.transition(ChangeStatusCancelled, at)
}

// ApplyToSettings writes NewValue into the matching global field.
func (c *ScheduledPriceChange) ApplyToSettings(s *PricingSettings) {
	switch c.ChangeType {
	case ChangeVapiCost:
		s.VapiCostPerMinute = c.NewValue
	case ChangeMarkupPercentage:
		s.MarkupPercentage = c.NewValue
	case ChangeLicenseCost:
		s.AnnualLicenseCost = c.NewValue
	}
}

// ApplyToOverride writes NewValue into the matching override field.
func (c *ScheduledPriceChange) ApplyToOverride(o *PricingOverride) {
	switch c.ChangeType {
	case ChangeVapiCost:
		o.CustomVapiCost = c.NewValue
	case ChangeMarkupPercentage:
		o.CustomMarkupPercentage = c.NewValue
	case ChangeLicenseCost:
		o.CustomLicenseCost = c.NewValue
	}
	o.UpdatedAt = time.Now()
}

// ScheduledChangePatch is a direct edit of a change record. Edits are allowed
// regardless of status.
type ScheduledChangePatch struct {
	ChangeDate   *time.Time
	ChangeType   *ChangeType
	Affected     *string
	CurrentValue *decimal.Decimal
	NewValue     *decimal.Decimal
	Notes        *string
}

func (p ScheduledChangePatch) ApplyTo(c *ScheduledPriceChange) error {
	if p.ChangeType != nil {
		if !p.ChangeType.Valid() {
			return domain.Invalid("unknown change type %q", *p.ChangeType)
		}
		c.ChangeType = *p.ChangeType
	}
	if p.Affected != nil {
		if *p.Affected == "" {
			return domain.Invalid("affected must not be empty")
		}
		c.Affected = *p.Affected
	}
	if p.NewValue != nil || p.ChangeType != nil {
		next := c.NewValue
		if p.NewValue != nil {
			next = *p.NewValue
		}
		if err := c.ChangeType.limit().check("new value", next); err != nil {
			return err
		}
		c.NewValue = next
	}
	if p.ChangeDate != nil {
		c.ChangeDate = *p.ChangeDate
	}
	if p.CurrentValue != nil {
		if err := c.ChangeType.limit().check("current value", *p.CurrentValue); err != nil {
			return err
		}
		c.CurrentValue = *p.CurrentValue
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	c.UpdatedAt = time.Now()
	return nil
}

// ChangeFilter narrows scheduled change listings. Nil fields match all.
type ChangeFilter struct {
	Status   *ChangeStatus
	Affected *string
	DueBy    *time.Time
}
