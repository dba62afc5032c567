//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/usecase"
)

func schedule(t *testing.T, e *testEngine, ct model.ChangeType, affected, value string, in time.Duration) *model.ScheduledPriceChange {
	t.Helper()
	c, err := e.changes.Schedule(context.Background(), usecase.ScheduleInput{
		ChangeDate: e.clock.Now().Add(in),
		ChangeType: ct,
		Affected:   affected,
		NewValue:   dec(value),
		CreatedBy:  "admin-1",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return c
}

func TestScheduledChange_ScheduleValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	_, err := e.changes.Schedule(ctx, usecase.ScheduleInput{
		ChangeDate: e.clock.Now().Add(-time.Minute),
		ChangeType: model.ChangeVapiCost,
		Affected:   model.AffectedAll,
		NewValue:   dec("0.2"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("past date: want ErrValidation, got %v", err)
	}
	_, err = e.changes.Schedule(ctx, usecase.ScheduleInput{
		ChangeDate: e.clock.Now().Add(time.Hour),
		ChangeType: "discount",
		Affected:   model.AffectedAll,
		NewValue:   dec("1"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown type: want ErrValidation, got %v", err)
	}

	c := schedule(t, e, model.ChangeMarkupPercentage, model.AffectedAll, "40", time.Hour)
	if c.Status != model.ChangeStatusScheduled || !c.CurrentValue.Equal(dec("36.36")) {
		t.Fatalf("snapshot of current value: got %+v", c)
	}
}

func TestScheduledChange_ScheduleDoesNotChangeResolution(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	schedule(t, e, model.ChangeVapiCost, model.AffectedAll, "1.00", time.Hour)
	e.clock.Advance(2 * time.Hour)

	ep, err := e.pricing.ResolveEffectivePrice(ctx, "inst-1", time.Time{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ep.VapiCost.Equal(dec("0.11")) {
		t.Fatalf("unapplied change leaked into resolution: vapi=%s", ep.VapiCost)
	}
}

func TestScheduledChange_ApplyGlobalIsSingleShot(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	c := schedule(t, e, model.ChangeVapiCost, model.AffectedAll, "0.20", time.Hour)

	applied, err := e.changes.Apply(ctx, c.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != model.ChangeStatusApplied || applied.AppliedAt == nil {
		t.Fatalf("apply: got %+v", applied)
	}
	s, _ := e.pricing.GetSettings(ctx)
	if !s.VapiCostPerMinute.Equal(dec("0.20")) || s.Version != 2 {
		t.Fatalf("settings after apply: %+v", s)
	}

	if _, err := e.changes.Apply(ctx, c.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second apply: want ErrInvalidTransition, got %v", err)
	}
	s, _ = e.pricing.GetSettings(ctx)
	if s.Version != 2 {
		t.Fatalf("second apply wrote settings again, version=%d", s.Version)
	}
	if _, err := e.changes.Cancel(ctx, c.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel applied: want ErrInvalidTransition, got %v", err)
	}
}

func TestScheduledChange_ApplyInstitution(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	c := schedule(t, e, model.ChangeMarkupPercentage, "inst-1", "62.9", time.Hour)
	if _, err := e.changes.Apply(ctx, c.ID); err != nil {
		t.Fatalf("apply: %v", err)
	}
	o, err := e.pricing.GetOverride(ctx, "inst-1")
	if err != nil {
		t.Fatalf("override should be created: %v", err)
	}
	if !o.IsEnabled || !o.CustomMarkupPercentage.Equal(dec("62.9")) || !o.CustomVapiCost.Equal(dec("0.11")) {
		t.Fatalf("created override: %+v", o)
	}
	ep, _ := e.pricing.ResolveEffectivePrice(ctx, "inst-1", time.Time{})
	if !ep.SessionMinutePrice.Equal(dec("0.18")) {
		t.Fatalf("price after apply: %s", ep.SessionMinutePrice)
	}

	// An existing disabled override only gets the field, not re-enabled.
	if _, err := e.pricing.SetOverrideEnabled(ctx, "inst-1", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	c2 := schedule(t, e, model.ChangeVapiCost, "inst-1", "0.50", time.Hour)
	if _, err := e.changes.Apply(ctx, c2.ID); err != nil {
		t.Fatalf("apply c2: %v", err)
	}
	o, _ = e.pricing.GetOverride(ctx, "inst-1")
	if o.IsEnabled || !o.CustomVapiCost.Equal(dec("0.50")) {
		t.Fatalf("existing override after apply: %+v", o)
	}
	s, _ := e.pricing.GetSettings(ctx)
	if s.Version != 1 {
		t.Fatalf("institution change touched global settings, version=%d", s.Version)
	}
}

func TestScheduledChange_CancelUpdateDelete(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	c := schedule(t, e, model.ChangeLicenseCost, model.AffectedAll, "1500", time.Hour)

	cancelled, err := e.changes.Cancel(ctx, c.ID)
	if err != nil || cancelled.Status != model.ChangeStatusCancelled {
		t.Fatalf("cancel: got %+v, %v", cancelled, err)
	}
	if _, err := e.changes.Apply(ctx, c.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("apply cancelled: want ErrInvalidTransition, got %v", err)
	}

	// direct edits are allowed whatever the status
	updated, err := e.changes.Update(ctx, c.ID, model.ScheduledChangePatch{NewValue: ptr(dec("1600")), Notes: ptr("typo")})
	if err != nil {
		t.Fatalf("update cancelled change: %v", err)
	}
	if !updated.NewValue.Equal(dec("1600")) || updated.Notes != "typo" || updated.Status != model.ChangeStatusCancelled {
		t.Fatalf("update: got %+v", updated)
	}
	bad := model.ChangeType("nope")
	if _, err := e.changes.Update(ctx, c.ID, model.ScheduledChangePatch{ChangeType: &bad}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("update bad type: want ErrValidation, got %v", err)
	}

	if err := e.changes.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.changes.Get(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get deleted: want ErrNotFound, got %v", err)
	}
	if err := e.changes.Delete(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete twice: want ErrNotFound, got %v", err)
	}
}

func TestScheduledChange_ApplyDue(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	early := schedule(t, e, model.ChangeVapiCost, model.AffectedAll, "0.12", time.Hour)
	later := schedule(t, e, model.ChangeVapiCost, model.AffectedAll, "0.13", 3*time.Hour)
	cancelled := schedule(t, e, model.ChangeMarkupPercentage, model.AffectedAll, "1", time.Hour)
	if _, err := e.changes.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	e.clock.Advance(2 * time.Hour)
	n, err := e.changes.ApplyDue(ctx, e.clock.Now())
	if err != nil || n != 1 {
		t.Fatalf("first sweep: want 1 applied, got %d, %v", n, err)
	}
	if got, _ := e.changes.Get(ctx, early.ID); got.Status != model.ChangeStatusApplied {
		t.Fatalf("early change status: %s", got.Status)
	}
	if got, _ := e.changes.Get(ctx, later.ID); got.Status != model.ChangeStatusScheduled {
		t.Fatalf("later change status: %s", got.Status)
	}

	e.clock.Advance(2 * time.Hour)
	n, err = e.changes.ApplyDue(ctx, e.clock.Now())
	if err != nil || n != 1 {
		t.Fatalf("second sweep: want 1 applied, got %d, %v", n, err)
	}
	s, _ := e.pricing.GetSettings(ctx)
	if !s.VapiCostPerMinute.Equal(dec("0.13")) || !s.MarkupPercentage.Equal(dec("36.36")) {
		t.Fatalf("settings after sweeps: %+v", s)
	}

	n, err = e.changes.ApplyDue(ctx, e.clock.Now())
	if err != nil || n != 0 {
		t.Fatalf("idle sweep: want 0, got %d, %v", n, err)
	}

	status := model.ChangeStatusApplied
	list, err := e.changes.List(ctx, model.ChangeFilter{Status: &status})
	if err != nil || len(list) != 2 || list[0].ID != early.ID {
		t.Fatalf("list applied: got %v, %v", list, err)
	}
}
