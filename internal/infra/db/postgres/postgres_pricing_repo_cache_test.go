//go:build !integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
)

func TestPricingRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	settings := &model.PricingSettings{
		VapiCostPerMinute: decimal.RequireFromString("0.11"),
		MarkupPercentage:  decimal.RequireFromString("36.36"),
		AnnualLicenseCost: decimal.RequireFromString("1200"),
		Version:           4,
	}

	t.Run("GetSettings fills the cache on miss and serves hits", func(t *testing.T) {
		cache := newMockRedis()
		calls := 0
		inner := &mockInnerPricingRepo{
			GetSettingsFunc: func(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error) {
				calls++
				cp := *settings
				return &cp, nil
			},
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)

		for i := 0; i < 3; i++ {
			got, err := d.GetSettings(ctx, repository.NoTX)
			if err != nil {
				t.Fatalf("GetSettings: %v", err)
			}
			if got.Version != 4 || !got.MarkupPercentage.Equal(settings.MarkupPercentage) {
				t.Fatalf("GetSettings: got %+v", got)
			}
		}
		if calls != 1 {
			t.Fatalf("inner repo should be called once, got %d", calls)
		}
	})

	t.Run("reads inside a tx bypass the cache", func(t *testing.T) {
		cache := newMockRedis()
		cache.data[settingsCacheKey] = `{"version":1}`
		calls := 0
		inner := &mockInnerPricingRepo{
			GetSettingsFunc: func(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error) {
				calls++
				cp := *settings
				return &cp, nil
			},
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)

		got, err := d.GetSettings(ctx, struct{}{})
		if err != nil {
			t.Fatalf("GetSettings in tx: %v", err)
		}
		if calls != 1 || got.Version != 4 {
			t.Fatalf("tx read must hit the inner repo, calls=%d version=%d", calls, got.Version)
		}
	})

	t.Run("missing override is cached as a negative entry", func(t *testing.T) {
		cache := newMockRedis()
		calls := 0
		inner := &mockInnerPricingRepo{
			GetOverrideFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PricingOverride, error) {
				calls++
				return nil, domain.ErrNotFound
			},
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)

		for i := 0; i < 2; i++ {
			if _, err := d.GetOverride(ctx, repository.NoTX, "inst-1"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("GetOverride: want ErrNotFound, got %v", err)
			}
		}
		if calls != 1 {
			t.Fatalf("negative entry should stop the second lookup, got %d calls", calls)
		}
	})

	t.Run("writes invalidate their keys", func(t *testing.T) {
		cache := newMockRedis()
		inner := &mockInnerPricingRepo{
			SaveSettingsFunc: func(ctx context.Context, tx repository.Tx, s *model.PricingSettings, v int64) error { return nil },
			SaveOverrideFunc: func(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error { return nil },
			DeleteOverrideFunc: func(ctx context.Context, tx repository.Tx, id string) error {
				return nil
			},
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)

		if err := d.SaveSettings(ctx, repository.NoTX, settings, 4); err != nil {
			t.Fatalf("SaveSettings: %v", err)
		}
		if err := d.SaveOverride(ctx, repository.NoTX, &model.PricingOverride{InstitutionID: "inst-1"}); err != nil {
			t.Fatalf("SaveOverride: %v", err)
		}
		if err := d.DeleteOverride(ctx, repository.NoTX, "inst-2"); err != nil {
			t.Fatalf("DeleteOverride: %v", err)
		}
		want := []string{settingsCacheKey, overrideCachePrefix + "inst-1", overrideCachePrefix + "inst-2"}
		if len(cache.deleted) != len(want) {
			t.Fatalf("deleted keys: got %v, want %v", cache.deleted, want)
		}
		for i := range want {
			if cache.deleted[i] != want[i] {
				t.Fatalf("deleted keys: got %v, want %v", cache.deleted, want)
			}
		}
	})

	t.Run("override write inside a tx invalidates only after commit", func(t *testing.T) {
		cache := newMockRedis()
		committed := &model.PricingOverride{InstitutionID: "inst-1", CustomMarkupPercentage: decimal.RequireFromString("62.9"), IsEnabled: true}
		inner := &mockInnerPricingRepo{
			GetOverrideFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.PricingOverride, error) {
				cp := *committed
				return &cp, nil
			},
			SaveOverrideFunc: func(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error { return nil },
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)

		txCtx, hooks := withCommitHooks(ctx)
		disabled := *committed
		disabled.IsEnabled = false
		if err := d.SaveOverride(txCtx, struct{}{}, &disabled); err != nil {
			t.Fatalf("SaveOverride: %v", err)
		}
		if len(cache.deleted) != 0 {
			t.Fatalf("invalidation must wait for commit, deleted %v", cache.deleted)
		}

		// A non-tx reader between the write and COMMIT still sees the old row.
		got, err := d.GetOverride(ctx, repository.NoTX, "inst-1")
		if err != nil || !got.IsEnabled {
			t.Fatalf("pre-commit read: got %+v, %v", got, err)
		}

		committed = &disabled
		hooks.run(ctx)

		got, err = d.GetOverride(ctx, repository.NoTX, "inst-1")
		if err != nil {
			t.Fatalf("GetOverride after commit: %v", err)
		}
		if got.IsEnabled {
			t.Fatalf("disabled override still served from cache after commit")
		}
	})

	t.Run("rolled back tx leaves the cache alone", func(t *testing.T) {
		cache := newMockRedis()
		cache.data[settingsCacheKey] = `{"version":4}`
		inner := &mockInnerPricingRepo{
			SaveSettingsFunc: func(ctx context.Context, tx repository.Tx, s *model.PricingSettings, v int64) error { return nil },
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)

		txCtx, _ := withCommitHooks(ctx)
		if err := d.SaveSettings(txCtx, struct{}{}, settings, 4); err != nil {
			t.Fatalf("SaveSettings: %v", err)
		}
		if _, ok := cache.data[settingsCacheKey]; !ok || len(cache.deleted) != 0 {
			t.Fatalf("cache touched without commit: deleted %v", cache.deleted)
		}
	})

	t.Run("failed writes keep the cache", func(t *testing.T) {
		cache := newMockRedis()
		inner := &mockInnerPricingRepo{
			SaveSettingsFunc: func(ctx context.Context, tx repository.Tx, s *model.PricingSettings, v int64) error {
				return domain.ErrContention
			},
		}
		d := NewPricingRepoCacheDecorator(inner, cache, time.Minute, nil)
		if err := d.SaveSettings(ctx, repository.NoTX, settings, 3); !errors.Is(err, domain.ErrContention) {
			t.Fatalf("want ErrContention, got %v", err)
		}
		if len(cache.deleted) != 0 {
			t.Fatalf("nothing should be invalidated, got %v", cache.deleted)
		}
	})
}

func TestMapPgError(t *testing.T) {
	if err := mapPgError(nil); err != nil {
		t.Fatalf("nil: got %v", err)
	}
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.ErrContention},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrContention},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, domain.ErrContention},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "ux_allocations_active_student"}, domain.ErrAlreadyExists},
		{"check violation", &pgconn.PgError{Code: "23514"}, domain.ErrValidation},
		{"wrapped", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), domain.ErrContention},
		{"unknown", errors.New("boom"), domain.ErrOperationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapPgError(tc.in); !errors.Is(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
