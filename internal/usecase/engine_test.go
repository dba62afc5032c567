//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/usecase"
)

func TestTxRetry_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tx := NewMockTxManager(store)
	tx.WithTxFunc = func(ctx context.Context, _ pgx.TxOptions, fn func(context.Context, repository.Tx) error) error {
		return fmt.Errorf("could not serialize access: %w", domain.ErrContention)
	}
	opts := usecase.Options{MaxRetries: 3, RetryBackoff: time.Millisecond}
	pools := usecase.NewPoolUseCase(&memPoolRepo{s: store}, &memAllocationRepo{s: store}, &memPurchaseRepo{s: store}, &MockLocker{}, tx, opts, newTestLogger())

	_, err := pools.IncreasePurchasedCapacity(ctx, "inst-1", 5)
	if !errors.Is(err, domain.ErrContention) {
		t.Fatalf("want ErrContention, got %v", err)
	}
	if got := tx.Calls(); got != 4 {
		t.Fatalf("want 1 attempt + 3 retries, got %d calls", got)
	}
}

func TestTxRetry_SucceedsAfterTransientConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tx := NewMockTxManager(store)
	failures := 2
	tx.WithTxFunc = func(ctx context.Context, _ pgx.TxOptions, fn func(context.Context, repository.Tx) error) error {
		if failures > 0 {
			failures--
			return domain.ErrContention
		}
		return fn(ctx, repository.NoTX)
	}
	opts := usecase.Options{MaxRetries: 3, RetryBackoff: time.Millisecond}
	pools := usecase.NewPoolUseCase(&memPoolRepo{s: store}, &memAllocationRepo{s: store}, &memPurchaseRepo{s: store}, &MockLocker{}, tx, opts, newTestLogger())

	p, err := pools.IncreasePurchasedCapacity(ctx, "inst-1", 5)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if p.TotalSessions != 5 || tx.Calls() != 3 {
		t.Fatalf("want total=5 after 3 calls, got total=%d calls=%d", p.TotalSessions, tx.Calls())
	}
}

func TestTxRetry_OtherErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	tx := NewMockTxManager(store)
	locker := &MockLocker{}
	pools := usecase.NewPoolUseCase(&memPoolRepo{s: store}, &memAllocationRepo{s: store}, &memPurchaseRepo{s: store}, locker, tx, usecase.Options{}, newTestLogger())

	if _, err := pools.Reserve(ctx, "inst-1", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if tx.Calls() != 1 {
		t.Fatalf("want a single attempt, got %d", tx.Calls())
	}
	if len(locker.Locked) != 1 || locker.Locked[0] != "inst-1" {
		t.Fatalf("reserve must lock the institution, got %v", locker.Locked)
	}
}
