package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/config"
	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/infra/logging"
	"interview-sessions/internal/infra/metrics"
	"interview-sessions/internal/infra/worker"
	"interview-sessions/internal/usecase"
)

// PaymentConfirmed is published by billing once a purchase has settled.
type PaymentConfirmed struct {
	InstitutionID string          `json:"institution_id" validate:"required"`
	PaymentRef    string          `json:"payment_ref" validate:"required,max=128"`
	Sessions      int64           `json:"sessions" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	TraceID       string          `json:"trace_id,omitempty"`
}

// InterviewCompleted is published when a mock interview finishes and its
// sessions should be drawn from the student's allocation.
type InterviewCompleted struct {
	InterviewID  string `json:"interview_id" validate:"required"`
	AllocationID string `json:"allocation_id" validate:"required"`
	Sessions     int64  `json:"sessions" validate:"gte=0"`
	TraceID      string `json:"trace_id,omitempty"`
}

type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, in usecase.PurchaseInput) (*model.SessionPool, error)
}

type SessionConsumer interface {
	Consume(ctx context.Context, allocationID string, count int64) (*model.Allocation, error)
}

// errInvalidEvent marks payloads that will never succeed on redelivery.
var errInvalidEvent = errors.New("invalid event")

// Consumer feeds NATS events into the pool and allocation ledgers. Both
// subjects join one queue group so each event is handled by one replica.
type Consumer struct {
	nc        *nats.Conn
	cfg       config.NATSConfig
	purchases PurchaseRecorder
	sessions  SessionConsumer
	validate  *validator.Validate
	timeout   time.Duration
	log       *zerolog.Logger
	pool      *worker.Pool
	subs      []*nats.Subscription
}

func NewConsumer(nc *nats.Conn, cfg config.NATSConfig, purchases PurchaseRecorder, sessions SessionConsumer, logger *zerolog.Logger) *Consumer {
	if logger == nil {
		n := zerolog.Nop()
		logger = &n
	}
	l := logger.With().Str("component", "EventConsumer").Logger()
	return &Consumer{
		nc:        nc,
		cfg:       cfg,
		purchases: purchases,
		sessions:  sessions,
		validate:  validator.New(),
		timeout:   10 * time.Second,
		log:       &l,
	}
}

// WithPool hands message processing to p instead of the NATS delivery
// goroutine, so one slow subject does not hold up the other.
func (c *Consumer) WithPool(p *worker.Pool) *Consumer {
	c.pool = p
	return c
}

// Start subscribes both subjects. Close drains them.
func (c *Consumer) Start() error {
	if c.cfg.PaymentSubject == c.cfg.InterviewSubject {
		return fmt.Errorf("payment and interview events share subject %q", c.cfg.PaymentSubject)
	}
	routes := map[string]func(context.Context, []byte) error{
		c.cfg.PaymentSubject:   c.handlePayment,
		c.cfg.InterviewSubject: c.handleInterviewCompleted,
	}
	for subject, h := range routes {
		sub, err := c.nc.QueueSubscribe(subject, c.cfg.Queue, c.dispatch(subject, h))
		if err != nil {
			c.Close()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		c.subs = append(c.subs, sub)
		c.log.Info().Str("subject", subject).Str("queue", c.cfg.Queue).Msg("subscribed")
	}
	return nil
}

func (c *Consumer) Close() {
	for _, s := range c.subs {
		if err := s.Drain(); err != nil {
			c.log.Warn().Err(err).Str("subject", s.Subject).Msg("drain failed")
		}
	}
	c.subs = nil
}

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *Consumer) dispatch(subject string, h func(context.Context, []byte) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if c.pool == nil {
			c.process(context.Background(), subject, h, msg)
			return
		}
		err := c.pool.Submit(context.Background(), func(ctx context.Context) error {
			c.process(ctx, subject, h, msg)
			return nil
		})
		if err != nil {
			metrics.IncEventConsumed(subject, "error")
			c.log.Error().Err(err).Str("subject", subject).Msg("event not queued")
		}
	}
}

func (c *Consumer) process(parent context.Context, subject string, h func(context.Context, []byte) error, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	err := h(ctx, msg.Data)
	result := outcome(err)
	metrics.IncEventConsumed(subject, result)
	if result == "error" || result == "invalid" {
		c.log.Error().Err(err).Str("subject", subject).Msg("event rejected")
	}
	if msg.Reply == "" {
		return
	}
	r := reply{OK: err == nil || result == "duplicate"}
	if !r.OK {
		r.Error = err.Error()
	}
	body, _ := json.Marshal(r)
	if err := msg.Respond(body); err != nil {
		c.log.Warn().Err(err).Str("subject", subject).Msg("reply failed")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "duplicate"
	case errors.Is(err, errInvalidEvent), errors.Is(err, domain.ErrValidation):
		return "invalid"
	}
	return "error"
}

func (c *Consumer) decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if err := c.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	return nil
}

// handlePayment credits the pool once per payment_ref; a redelivery comes
// back as ErrAlreadyExists and is treated as processed.
func (c *Consumer) handlePayment(ctx context.Context, data []byte) error {
	var ev PaymentConfirmed
	if err := c.decode(data, &ev); err != nil {
		return err
	}
	if ev.TraceID != "" {
		ctx = logging.WithTraceID(ctx, ev.TraceID)
	}
	ctx = logging.WithInstitutionID(ctx, ev.InstitutionID)
	_, err := c.purchases.RecordPurchase(ctx, usecase.PurchaseInput{
		InstitutionID: ev.InstitutionID,
		PaymentRef:    ev.PaymentRef,
		SessionCount:  ev.Sessions,
		Amount:        ev.Amount,
		Currency:      ev.Currency,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		l := logging.With(ctx, c.log)
		l.Info().Str("payment_ref", ev.PaymentRef).Msg("payment already credited")
	}
	return err
}

func (c *Consumer) handleInterviewCompleted(ctx context.Context, data []byte) error {
	var ev InterviewCompleted
	if err := c.decode(data, &ev); err != nil {
		return err
	}
	if ev.Sessions == 0 {
		ev.Sessions = 1
	}
	if ev.TraceID != "" {
		ctx = logging.WithTraceID(ctx, ev.TraceID)
	}
	a, err := c.sessions.Consume(ctx, ev.AllocationID, ev.Sessions)
	if err != nil {
		return fmt.Errorf("interview %s: %w", ev.InterviewID, err)
	}
	l := logging.With(ctx, c.log)
	l.Debug().Str("interview_id", ev.InterviewID).Str("allocation_id", a.ID).Int64("remaining", a.Remaining()).Msg("sessions consumed")
	return nil
}
