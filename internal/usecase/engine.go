package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
)

// Options tunes the ledger use cases. Zero values fall back to defaults.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Now          func() time.Time
}

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 20 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// txRunner runs a body inside one transaction and replays it when the store
// reports a concurrent update conflict.
type txRunner struct {
	tm   repository.TransactionManager
	opts Options
	log  *zerolog.Logger
}

func newTxRunner(tm repository.TransactionManager, opts Options, logger *zerolog.Logger) txRunner {
	return txRunner{tm: tm, opts: opts.withDefaults(), log: orNop(logger)}
}

func (r txRunner) run(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := r.tm.WithTx(ctx, pgx.TxOptions{}, fn)
		if err == nil || !errors.Is(err, domain.ErrContention) {
			return err
		}
		if attempt >= r.opts.MaxRetries {
			r.log.Warn().Str("op", op).Int("attempts", attempt+1).Msg("giving up after contention")
			return err
		}
		metrics.IncContentionRetry(op)
		r.log.Debug().Str("op", op).Int("attempt", attempt+1).Msg("retrying after contention")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.RetryBackoff * time.Duration(attempt+1)):
		}
	}
}

func orNop(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		n := zerolog.Nop()
		return &n
	}
	return l
}
