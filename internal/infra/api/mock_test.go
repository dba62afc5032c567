//go:build !integration

package api

import (
	"context"
	"time"

	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/usecase"
)

// Stubs embed the use case interface so only the methods a test sets need a
// body; anything else panics and surfaces as a 500 through Recover.

type stubPools struct {
	usecase.PoolUseCase
	GetFunc           func(ctx context.Context, inst string) (*model.SessionPool, error)
	SummaryFunc       func(ctx context.Context, inst string) (*model.PoolSummary, error)
	IncreaseFunc      func(ctx context.Context, inst string, n int64) (*model.SessionPool, error)
	RecordFunc        func(ctx context.Context, in usecase.PurchaseInput) (*model.SessionPool, error)
	ListPurchasesFunc func(ctx context.Context, inst string) ([]*model.SessionPurchase, error)
}

func (s *stubPools) Get(ctx context.Context, inst string) (*model.SessionPool, error) {
	return s.GetFunc(ctx, inst)
}
func (s *stubPools) Summary(ctx context.Context, inst string) (*model.PoolSummary, error) {
	return s.SummaryFunc(ctx, inst)
}
func (s *stubPools) IncreasePurchasedCapacity(ctx context.Context, inst string, n int64) (*model.SessionPool, error) {
	return s.IncreaseFunc(ctx, inst, n)
}
func (s *stubPools) RecordPurchase(ctx context.Context, in usecase.PurchaseInput) (*model.SessionPool, error) {
	return s.RecordFunc(ctx, in)
}
func (s *stubPools) ListPurchases(ctx context.Context, inst string) ([]*model.SessionPurchase, error) {
	return s.ListPurchasesFunc(ctx, inst)
}

type stubAllocs struct {
	usecase.AllocationUseCase
	CreateFunc        func(ctx context.Context, inst string, t model.AllocationTarget, n int64, typ string) (*model.Allocation, error)
	GetFunc           func(ctx context.Context, id string) (*model.Allocation, error)
	ResizeFunc        func(ctx context.Context, id string, n int64) (*model.Allocation, error)
	DeleteFunc        func(ctx context.Context, id string) error
	ConsumeFunc       func(ctx context.Context, id string, n int64) (*model.Allocation, error)
	FindByStudentFunc func(ctx context.Context, studentID string) (*model.Allocation, error)
	ListFunc          func(ctx context.Context, inst string, f model.AllocationFilter) ([]*model.Allocation, error)
}

func (s *stubAllocs) CreateOrAugment(ctx context.Context, inst string, t model.AllocationTarget, n int64, typ string) (*model.Allocation, error) {
	return s.CreateFunc(ctx, inst, t, n, typ)
}
func (s *stubAllocs) Get(ctx context.Context, id string) (*model.Allocation, error) {
	return s.GetFunc(ctx, id)
}
func (s *stubAllocs) Resize(ctx context.Context, id string, n int64) (*model.Allocation, error) {
	return s.ResizeFunc(ctx, id, n)
}
func (s *stubAllocs) Delete(ctx context.Context, id string) error { return s.DeleteFunc(ctx, id) }
func (s *stubAllocs) Consume(ctx context.Context, id string, n int64) (*model.Allocation, error) {
	return s.ConsumeFunc(ctx, id, n)
}
func (s *stubAllocs) FindByStudent(ctx context.Context, studentID string) (*model.Allocation, error) {
	return s.FindByStudentFunc(ctx, studentID)
}
func (s *stubAllocs) ListByInstitution(ctx context.Context, inst string, f model.AllocationFilter) ([]*model.Allocation, error) {
	return s.ListFunc(ctx, inst, f)
}

type stubRequests struct {
	usecase.SessionRequestUseCase
	SubmitFunc       func(ctx context.Context, student, inst, dept string, n int64, reason string) (*model.SessionRequest, error)
	GetFunc          func(ctx context.Context, id string) (*model.SessionRequest, error)
	ListFunc         func(ctx context.Context, f model.RequestFilter) ([]*model.SessionRequest, error)
	UpdateStatusFunc func(ctx context.Context, id string, st model.RequestStatus, reviewer, note string) (*model.SessionRequest, error)
}

func (s *stubRequests) Submit(ctx context.Context, student, inst, dept string, n int64, reason string) (*model.SessionRequest, error) {
	return s.SubmitFunc(ctx, student, inst, dept, n, reason)
}
func (s *stubRequests) Get(ctx context.Context, id string) (*model.SessionRequest, error) {
	return s.GetFunc(ctx, id)
}
func (s *stubRequests) List(ctx context.Context, f model.RequestFilter) ([]*model.SessionRequest, error) {
	return s.ListFunc(ctx, f)
}
func (s *stubRequests) UpdateStatus(ctx context.Context, id string, st model.RequestStatus, reviewer, note string) (*model.SessionRequest, error) {
	return s.UpdateStatusFunc(ctx, id, st, reviewer, note)
}

type stubPricing struct {
	usecase.PricingUseCase
	GetSettingsFunc    func(ctx context.Context) (*model.PricingSettings, error)
	UpdateSettingsFunc func(ctx context.Context, p model.SettingsPatch, version int64, actor string) (*model.PricingSettings, error)
	ResolveFunc        func(ctx context.Context, inst string, asOf time.Time) (*model.EffectivePrice, error)
	QuoteFunc          func(ctx context.Context, inst string, sessions, minutes int64, asOf time.Time) (*model.PurchaseQuote, error)
	UpsertOverrideFunc func(ctx context.Context, inst string, p model.OverridePatch) (*model.PricingOverride, error)
}

func (s *stubPricing) GetSettings(ctx context.Context) (*model.PricingSettings, error) {
	return s.GetSettingsFunc(ctx)
}
func (s *stubPricing) UpdateSettings(ctx context.Context, p model.SettingsPatch, version int64, actor string) (*model.PricingSettings, error) {
	return s.UpdateSettingsFunc(ctx, p, version, actor)
}
func (s *stubPricing) ResolveEffectivePrice(ctx context.Context, inst string, asOf time.Time) (*model.EffectivePrice, error) {
	return s.ResolveFunc(ctx, inst, asOf)
}
func (s *stubPricing) QuotePurchase(ctx context.Context, inst string, sessions, minutes int64, asOf time.Time) (*model.PurchaseQuote, error) {
	return s.QuoteFunc(ctx, inst, sessions, minutes, asOf)
}
func (s *stubPricing) UpsertOverride(ctx context.Context, inst string, p model.OverridePatch) (*model.PricingOverride, error) {
	return s.UpsertOverrideFunc(ctx, inst, p)
}

type stubChanges struct {
	usecase.ScheduledChangeUseCase
	ScheduleFunc func(ctx context.Context, in usecase.ScheduleInput) (*model.ScheduledPriceChange, error)
	ApplyFunc    func(ctx context.Context, id string) (*model.ScheduledPriceChange, error)
}

func (s *stubChanges) Schedule(ctx context.Context, in usecase.ScheduleInput) (*model.ScheduledPriceChange, error) {
	return s.ScheduleFunc(ctx, in)
}
func (s *stubChanges) Apply(ctx context.Context, id string) (*model.ScheduledPriceChange, error) {
	return s.ApplyFunc(ctx, id)
}
