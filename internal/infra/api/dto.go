package api

import (
	"time"

	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain/model"
)

// ----- requests -----

type purchaseRequest struct {
	Sessions   int64           `json:"sessions" validate:"required,gt=0"`
	PaymentRef string          `json:"payment_ref" validate:"omitempty,max=128"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"omitempty,len=3"`
}

type createAllocationRequest struct {
	InstitutionID  string `json:"institution_id" validate:"required"`
	TargetType     string `json:"target_type" validate:"required,oneof=department teacher student"`
	TargetID       string `json:"target_id" validate:"required"`
	DepartmentID   string `json:"department_id"`
	AllocatedCount int64  `json:"allocated_count" validate:"required,gt=0"`
	AllocationType string `json:"allocation_type" validate:"omitempty,oneof=manual request_approval"`
}

type resizeAllocationRequest struct {
	AllocatedCount int64 `json:"allocated_count" validate:"required,gt=0"`
}

type consumeRequest struct {
	Count int64 `json:"count" validate:"required,gt=0"`
}

type submitRequestBody struct {
	SessionCount int64  `json:"session_count" validate:"required,gt=0,lte=1000"`
	DepartmentID string `json:"department_id" validate:"max=128"`
	Reason       string `json:"reason" validate:"max=1000"`
}

type requestStatusBody struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Note   string `json:"note" validate:"max=1000"`
}

type updateSettingsRequest struct {
	VapiCostPerMinute *decimal.Decimal `json:"vapi_cost_per_minute"`
	MarkupPercentage  *decimal.Decimal `json:"markup_percentage"`
	AnnualLicenseCost *decimal.Decimal `json:"annual_license_cost"`
	Version           int64            `json:"version" validate:"required,gt=0"`
}

type overrideRequest struct {
	CustomVapiCost         *decimal.Decimal `json:"custom_vapi_cost"`
	CustomMarkupPercentage *decimal.Decimal `json:"custom_markup_percentage"`
	CustomLicenseCost      *decimal.Decimal `json:"custom_license_cost"`
	IsEnabled              *bool            `json:"is_enabled"`
}

type overrideEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type quoteRequest struct {
	InstitutionID     string     `json:"institution_id" validate:"required"`
	Sessions          int64      `json:"sessions" validate:"required,gt=0"`
	MinutesPerSession int64      `json:"minutes_per_session" validate:"required,gt=0,lte=240"`
	AsOf              *time.Time `json:"as_of"`
}

type scheduleChangeRequest struct {
	ChangeDate   time.Time        `json:"change_date" validate:"required"`
	ChangeType   string           `json:"change_type" validate:"required,oneof=vapiCost markupPercentage licenseCost"`
	Affected     string           `json:"affected" validate:"required,max=128"`
	CurrentValue *decimal.Decimal `json:"current_value"`
	NewValue     *decimal.Decimal `json:"new_value" validate:"required"`
	Notes        string           `json:"notes" validate:"max=1000"`
}

type updateChangeRequest struct {
	ChangeDate   *time.Time       `json:"change_date"`
	ChangeType   *string          `json:"change_type" validate:"omitempty,oneof=vapiCost markupPercentage licenseCost"`
	Affected     *string          `json:"affected" validate:"omitempty,max=128"`
	CurrentValue *decimal.Decimal `json:"current_value"`
	NewValue     *decimal.Decimal `json:"new_value"`
	Notes        *string          `json:"notes" validate:"omitempty,max=1000"`
}

// ----- responses -----

type poolResponse struct {
	InstitutionID     string    `json:"institution_id"`
	TotalSessions     int64     `json:"total_sessions"`
	UsedSessions      int64     `json:"used_sessions"`
	AvailableSessions int64     `json:"available_sessions"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toPool(p *model.SessionPool) poolResponse {
	return poolResponse{
		InstitutionID:     p.InstitutionID,
		TotalSessions:     p.TotalSessions,
		UsedSessions:      p.UsedSessions,
		AvailableSessions: p.Available(),
		UpdatedAt:         p.UpdatedAt,
	}
}

type purchaseResponse struct {
	ID           string          `json:"id"`
	PaymentRef   string          `json:"payment_ref"`
	SessionCount int64           `json:"session_count"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
}

type allocationResponse struct {
	ID             string    `json:"id"`
	InstitutionID  string    `json:"institution_id"`
	TargetType     string    `json:"target_type"`
	TargetID       string    `json:"target_id"`
	DepartmentID   *string   `json:"department_id,omitempty"`
	TeacherID      *string   `json:"teacher_id,omitempty"`
	StudentID      *string   `json:"student_id,omitempty"`
	AllocatedCount int64     `json:"allocated_count"`
	UsedCount      int64     `json:"used_count"`
	Remaining      int64     `json:"remaining"`
	AllocationType string    `json:"allocation_type"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAllocation(a *model.Allocation) allocationResponse {
	return allocationResponse{
		ID:             a.ID,
		InstitutionID:  a.InstitutionID,
		TargetType:     string(a.Kind),
		TargetID:       a.TargetID(),
		DepartmentID:   a.DepartmentID,
		TeacherID:      a.TeacherID,
		StudentID:      a.StudentID,
		AllocatedCount: a.AllocatedCount,
		UsedCount:      a.UsedCount,
		Remaining:      a.Remaining(),
		AllocationType: a.AllocationType,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type sessionRequestResponse struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	InstitutionID string     `json:"institution_id"`
	DepartmentID  string     `json:"department_id"`
	SessionCount  int64      `json:"session_count"`
	Reason        string     `json:"reason,omitempty"`
	Status        string     `json:"status"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote    string     `json:"review_note,omitempty"`
	AllocationID  *string    `json:"allocation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toSessionRequest(r *model.SessionRequest) sessionRequestResponse {
	return sessionRequestResponse{
		ID:            r.ID,
		StudentID:     r.StudentID,
		InstitutionID: r.InstitutionID,
		DepartmentID:  r.DepartmentID,
		SessionCount:  r.SessionCount,
		Reason:        r.Reason,
		Status:        string(r.Status),
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    r.ReviewedAt,
		ReviewNote:    r.ReviewNote,
		AllocationID:  r.AllocationID,
		CreatedAt:     r.CreatedAt,
	}
}

type settingsResponse struct {
	VapiCostPerMinute decimal.Decimal `json:"vapi_cost_per_minute"`
	MarkupPercentage  decimal.Decimal `json:"markup_percentage"`
	AnnualLicenseCost decimal.Decimal `json:"annual_license_cost"`
	SessionMinute     decimal.Decimal `json:"session_minute_price"`
	Version           int64           `json:"version"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toSettings(s *model.PricingSettings) settingsResponse {
	return settingsResponse{
		VapiCostPerMinute: s.VapiCostPerMinute,
		MarkupPercentage:  s.MarkupPercentage,
		AnnualLicenseCost: s.AnnualLicenseCost,
		SessionMinute:     model.SessionMinutePrice(s.VapiCostPerMinute, s.MarkupPercentage),
		Version:           s.Version,
		UpdatedBy:         s.UpdatedBy,
		UpdatedAt:         s.UpdatedAt,
	}
}

type overrideResponse struct {
	InstitutionID          string          `json:"institution_id"`
	CustomVapiCost         decimal.Decimal `json:"custom_vapi_cost"`
	CustomMarkupPercentage decimal.Decimal `json:"custom_markup_percentage"`
	CustomLicenseCost      decimal.Decimal `json:"custom_license_cost"`
	IsEnabled              bool            `json:"is_enabled"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func toOverride(o *model.PricingOverride) overrideResponse {
	return overrideResponse{
		InstitutionID:          o.InstitutionID,
		CustomVapiCost:         o.CustomVapiCost,
		CustomMarkupPercentage: o.CustomMarkupPercentage,
		CustomLicenseCost:      o.CustomLicenseCost,
		IsEnabled:              o.IsEnabled,
		UpdatedAt:              o.UpdatedAt,
	}
}

type changeResponse struct {
	ID           string          `json:"id"`
	ChangeDate   time.Time       `json:"change_date"`
	ChangeType   string          `json:"change_type"`
	Affected     string          `json:"affected"`
	CurrentValue decimal.Decimal `json:"current_value"`
	NewValue     decimal.Decimal `json:"new_value"`
	Status       string          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
	AppliedAt    *time.Time      `json:"applied_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func toChange(c *model.ScheduledPriceChange) changeResponse {
	return changeResponse{
		ID:           c.ID,
		ChangeDate:   c.ChangeDate,
		ChangeType:   string(c.ChangeType),
		Affected:     c.Affected,
		CurrentValue: c.CurrentValue,
		NewValue:     c.NewValue,
		Status:       string(c.Status),
		Notes:        c.Notes,
		CreatedBy:    c.CreatedBy,
		AppliedAt:    c.AppliedAt,
		CreatedAt:    c.CreatedAt,
	}
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
