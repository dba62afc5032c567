//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	red "interview-sessions/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerPricingRepo struct {
	GetSettingsFunc    func(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error)
	SaveSettingsFunc   func(ctx context.Context, tx repository.Tx, s *model.PricingSettings, expectedVersion int64) error
	GetOverrideFunc    func(ctx context.Context, tx repository.Tx, institutionID string) (*model.PricingOverride, error)
	SaveOverrideFunc   func(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error
	DeleteOverrideFunc func(ctx context.Context, tx repository.Tx, institutionID string) error
}

var _ repository.PricingRepository = (*mockInnerPricingRepo)(nil)

func (m *mockInnerPricingRepo) GetSettings(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error) {
	return m.GetSettingsFunc(ctx, tx)
}
func (m *mockInnerPricingRepo) SaveSettings(ctx context.Context, tx repository.Tx, s *model.PricingSettings, expectedVersion int64) error {
	return m.SaveSettingsFunc(ctx, tx, s, expectedVersion)
}
func (m *mockInnerPricingRepo) GetOverride(ctx context.Context, tx repository.Tx, institutionID string) (*model.PricingOverride, error) {
	return m.GetOverrideFunc(ctx, tx, institutionID)
}
func (m *mockInnerPricingRepo) SaveOverride(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error {
	return m.SaveOverrideFunc(ctx, tx, o)
}
func (m *mockInnerPricingRepo) DeleteOverride(ctx context.Context, tx repository.Tx, institutionID string) error {
	return m.DeleteOverrideFunc(ctx, tx, institutionID)
}

// mockRedisClient is a map-backed stand-in for the Redis wrapper.
type mockRedisClient struct {
	data    map[string]string
	deleted []string
	GetErr  error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func newMockRedis() *mockRedisClient { return &mockRedisClient{data: map[string]string{}} }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	m.deleted = append(m.deleted, keys...)
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error                      { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
