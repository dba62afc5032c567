package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
	red "interview-sessions/internal/infra/redis"
)

var _ repository.PricingRepository = (*pricingRepoCacheDecorator)(nil)

const (
	settingsCacheKey    = "pricing:settings"
	overrideCachePrefix = "pricing:override:"
	// noOverride marks an institution known to have no override row.
	noOverride = "none"
)

// pricingRepoCacheDecorator serves non-transactional pricing reads from Redis.
// Reads inside a tx always go to Postgres so row locks are taken. Writes made
// inside a TxManager transaction invalidate after COMMIT, so a reader racing
// the write cannot re-cache the old row.
type pricingRepoCacheDecorator struct {
	inner repository.PricingRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPricingRepoCacheDecorator(inner repository.PricingRepository, cache red.RedisClient, ttl time.Duration, log *zerolog.Logger) repository.PricingRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if log == nil {
		n := zerolog.Nop()
		log = &n
	}
	return &pricingRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: log}
}

type cachedSettings struct {
	VapiCostPerMinute decimal.Decimal `json:"vapi_cost_per_minute"`
	MarkupPercentage  decimal.Decimal `json:"markup_percentage"`
	AnnualLicenseCost decimal.Decimal `json:"annual_license_cost"`
	Version           int64           `json:"version"`
	UpdatedAt         time.Time       `json:"updated_at"`
	UpdatedBy         string          `json:"updated_by"`
}

type cachedOverride struct {
	InstitutionID          string          `json:"institution_id"`
	CustomVapiCost         decimal.Decimal `json:"custom_vapi_cost"`
	CustomMarkupPercentage decimal.Decimal `json:"custom_markup_percentage"`
	CustomLicenseCost      decimal.Decimal `json:"custom_license_cost"`
	IsEnabled              bool            `json:"is_enabled"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (d *pricingRepoCacheDecorator) GetSettings(ctx context.Context, tx repository.Tx) (*model.PricingSettings, error) {
	if tx != nil {
		return d.inner.GetSettings(ctx, tx)
	}
	val, err := d.cache.Get(ctx, settingsCacheKey)
	if err == nil {
		var c cachedSettings
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest("pricing_settings", "hit")
			s := model.PricingSettings(c)
			return &s, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", settingsCacheKey).Msg("pricing cache read failed")
	}

	metrics.IncCacheRequest("pricing_settings", "miss")
	s, err := d.inner.GetSettings(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(cachedSettings(*s)); err == nil {
		_ = d.cache.Set(ctx, settingsCacheKey, b, d.ttl)
	}
	return s, nil
}

func (d *pricingRepoCacheDecorator) SaveSettings(ctx context.Context, tx repository.Tx, s *model.PricingSettings, expectedVersion int64) error {
	if err := d.inner.SaveSettings(ctx, tx, s, expectedVersion); err != nil {
		return err
	}
	d.invalidate(ctx, settingsCacheKey)
	return nil
}

func (d *pricingRepoCacheDecorator) GetOverride(ctx context.Context, tx repository.Tx, institutionID string) (*model.PricingOverride, error) {
	if tx != nil {
		return d.inner.GetOverride(ctx, tx, institutionID)
	}
	key := overrideCachePrefix + institutionID
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		if val == noOverride {
			metrics.IncCacheRequest("pricing_override", "hit")
			return nil, domain.ErrNotFound
		}
		var c cachedOverride
		if json.Unmarshal([]byte(val), &c) == nil {
			metrics.IncCacheRequest("pricing_override", "hit")
			o := model.PricingOverride(c)
			return &o, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("pricing cache read failed")
	}

	metrics.IncCacheRequest("pricing_override", "miss")
	o, err := d.inner.GetOverride(ctx, tx, institutionID)
	if errors.Is(err, domain.ErrNotFound) {
		_ = d.cache.Set(ctx, key, noOverride, d.ttl)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(cachedOverride(*o)); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return o, nil
}

func (d *pricingRepoCacheDecorator) SaveOverride(ctx context.Context, tx repository.Tx, o *model.PricingOverride) error {
	if err := d.inner.SaveOverride(ctx, tx, o); err != nil {
		return err
	}
	d.invalidate(ctx, overrideCachePrefix+o.InstitutionID)
	return nil
}

func (d *pricingRepoCacheDecorator) DeleteOverride(ctx context.Context, tx repository.Tx, institutionID string) error {
	if err := d.inner.DeleteOverride(ctx, tx, institutionID); err != nil {
		return err
	}
	d.invalidate(ctx, overrideCachePrefix+institutionID)
	return nil
}

func (d *pricingRepoCacheDecorator) invalidate(ctx context.Context, key string) {
	del := func(ctx context.Context) {
		if err := d.cache.Del(ctx, key); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("pricing cache invalidation failed")
		}
	}
	if !afterCommit(ctx, del) {
		del(ctx)
	}
}
