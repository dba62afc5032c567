package model

import (
	"time"

	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
)

const pricePlaces = 2

var hundred = decimal.NewFromInt(100)

// scaleLimit bounds a stored pricing field: digits in total, places after the point.
type scaleLimit struct {
	digits, places int32
}

var (
	vapiCostLimit = scaleLimit{digits: 12, places: 4}
	markupLimit   = scaleLimit{digits: 8, places: 2}
	licenseLimit  = scaleLimit{digits: 14, places: 2}
)

// check rejects values the store would round or refuse.
func (l scaleLimit) check(name string, v decimal.Decimal) error {
	if v.IsNegative() {
		return domain.Invalid("%s must not be negative", name)
	}
	if !v.Equal(v.Truncate(l.places)) {
		return domain.Invalid("%s allows at most %d decimal places, got %s", name, l.places, v)
	}
	if ceil := decimal.New(1, l.digits-l.places); v.GreaterThanOrEqual(ceil) {
		return domain.Invalid("%s must be below %s, got %s", name, ceil, v)
	}
	return nil
}

// PricingSettings is the platform-wide default price. Version increases on
// every write and guards concurrent updates.
type PricingSettings struct {
	VapiCostPerMinute decimal.Decimal
	MarkupPercentage  decimal.Decimal
	AnnualLicenseCost decimal.Decimal
	Version           int64
	UpdatedAt         time.Time
	UpdatedBy         string
}

// PricingOverride shadows the global settings for one institution while enabled.
type PricingOverride struct {
	InstitutionID          string
	CustomVapiCost         decimal.Decimal
	CustomMarkupPercentage decimal.Decimal
	CustomLicenseCost      decimal.Decimal
	IsEnabled              bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewOverrideFrom seeds an override with the values currently in effect globally.
func NewOverrideFrom(institutionID string, s *PricingSettings) *PricingOverride {
	now := time.Now()
	o := &PricingOverride{InstitutionID: institutionID, IsEnabled: true, CreatedAt: now, UpdatedAt: now}
	if s != nil {
		o.CustomVapiCost = s.VapiCostPerMinute
		o.CustomMarkupPercentage = s.MarkupPercentage
		o.CustomLicenseCost = s.AnnualLicenseCost
	}
	return o
}

type PriceSource string

const (
	PriceSourceGlobal   PriceSource = "global"
	PriceSourceOverride PriceSource = "override"
)

// EffectivePrice is what an institution pays at a point in time.
type EffectivePrice struct {
	InstitutionID      string          `json:"institution_id"`
	VapiCost           decimal.Decimal `json:"vapi_cost"`
	MarkupPercentage   decimal.Decimal `json:"markup_percentage"`
	LicenseCost        decimal.Decimal `json:"license_cost"`
	SessionMinutePrice decimal.Decimal `json:"session_minute_price"`
	Source             PriceSource     `json:"source"`
	SettingsVersion    int64           `json:"settings_version"`
	AsOf               time.Time       `json:"as_of"`
}

// SessionMinutePrice applies the markup to the provider cost and rounds
// half-up to cents.
func SessionMinutePrice(vapiCost, markupPercentage decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(markupPercentage.Div(hundred))
	return vapiCost.Mul(factor).Round(pricePlaces)
}

// ResolvePrice is the override hierarchy: an enabled override replaces all
// three values, otherwise the global settings apply. Scheduled changes are
// never consulted here.
func ResolvePrice(institutionID string, s *PricingSettings, o *PricingOverride, asOf time.Time) EffectivePrice {
	ep := EffectivePrice{
		InstitutionID:    institutionID,
		VapiCost:         s.VapiCostPerMinute,
		MarkupPercentage: s.MarkupPercentage,
		LicenseCost:      s.AnnualLicenseCost,
		Source:           PriceSourceGlobal,
		SettingsVersion:  s.Version,
		AsOf:             asOf,
	}
	if o != nil && o.IsEnabled {
		ep.VapiCost = o.CustomVapiCost
		ep.MarkupPercentage = o.CustomMarkupPercentage
		ep.LicenseCost = o.CustomLicenseCost
		ep.Source = PriceSourceOverride
	}
	ep.SessionMinutePrice = SessionMinutePrice(ep.VapiCost, ep.MarkupPercentage)
	return ep
}

// PurchaseQuote prices a block of sessions at the effective per-minute rate.
type PurchaseQuote struct {
	Price             EffectivePrice  `json:"price"`
	Sessions          int64           `json:"sessions"`
	MinutesPerSession int64           `json:"minutes_per_session"`
	TotalMinutes      int64           `json:"total_minutes"`
	Total             decimal.Decimal `json:"total"`
}

func NewPurchaseQuote(price EffectivePrice, sessions, minutesPerSession int64) (*PurchaseQuote, error) {
	if sessions <= 0 {
		return nil, domain.Invalid("sessions must be positive, got %d", sessions)
	}
	if minutesPerSession <= 0 {
		return nil, domain.Invalid("minutes per session must be positive, got %d", minutesPerSession)
	}
	minutes := sessions * minutesPerSession
	return &PurchaseQuote{
		Price:             price,
		Sessions:          sessions,
		MinutesPerSession: minutesPerSession,
		TotalMinutes:      minutes,
		Total:             price.SessionMinutePrice.Mul(decimal.NewFromInt(minutes)).Round(pricePlaces),
	}, nil
}

// SettingsPatch carries optional replacements for the global settings.
type SettingsPatch struct {
	VapiCostPerMinute *decimal.Decimal
	MarkupPercentage  *decimal.Decimal
	AnnualLicenseCost *decimal.Decimal
}

func (p SettingsPatch) Empty() bool {
	return p.VapiCostPerMinute == nil && p.MarkupPercentage == nil && p.AnnualLicenseCost == nil
}

func (p SettingsPatch) ApplyTo(s *PricingSettings) error {
	fields := []struct {
		name  string
		limit scaleLimit
		src   *decimal.Decimal
		dst   *decimal.Decimal
	}{
		{"vapi_cost_per_minute", vapiCostLimit, p.VapiCostPerMinute, &s.VapiCostPerMinute},
		{"markup_percentage", markupLimit, p.MarkupPercentage, &s.MarkupPercentage},
		{"annual_license_cost", licenseLimit, p.AnnualLicenseCost, &s.AnnualLicenseCost},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		if err := f.limit.check(f.name, *f.src); err != nil {
			return err
		}
		*f.dst = *f.src
	}
	return nil
}

// OverridePatch carries optional replacements for an institution override.
type OverridePatch struct {
	CustomVapiCost         *decimal.Decimal
	CustomMarkupPercentage *decimal.Decimal
	CustomLicenseCost      *decimal.Decimal
	IsEnabled              *bool
}

func (p OverridePatch) ApplyTo(o *PricingOverride) error {
	fields := []struct {
		name  string
		limit scaleLimit
		src   *decimal.Decimal
		dst   *decimal.Decimal
	}{
		{"custom_vapi_cost", vapiCostLimit, p.CustomVapiCost, &o.CustomVapiCost},
		{"custom_markup_percentage", markupLimit, p.CustomMarkupPercentage, &o.CustomMarkupPercentage},
		{"custom_license_cost", licenseLimit, p.CustomLicenseCost, &o.CustomLicenseCost},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		if err := f.limit.check(f.name, *f.src); err != nil {
			return err
		}
		*f.dst = *f.src
	}
	if p.IsEnabled != nil {
		o.IsEnabled = *p.IsEnabled
	}
	o.UpdatedAt = time.Now()
	return nil
}
