package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"interview-sessions/internal/domain"
)

// SessionPurchase is the historical trail of confirmed purchases credited to a
// pool. PaymentRef is the billing side's identifier and is unique, so a
// redelivered confirmation is credited once.
type SessionPurchase struct {
	ID            string
	InstitutionID string
	PaymentRef    string
	SessionCount  int64
	Amount        decimal.Decimal
	Currency      string
	CreatedAt     time.Time
}

func NewSessionPurchase(institutionID, paymentRef string, count int64, amount decimal.Decimal, currency string) (*SessionPurchase, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	if strings.TrimSpace(paymentRef) == "" {
		return nil, domain.Invalid("payment reference is required")
	}
	if count <= 0 {
		return nil, domain.Invalid("purchased count must be positive, got %d", count)
	}
	if amount.IsNegative() {
		return nil, domain.Invalid("purchase amount must not be negative")
	}
	return &SessionPurchase{
		ID:            uuid.NewString(),
		InstitutionID: institutionID,
		PaymentRef:    strings.TrimSpace(paymentRef),
		SessionCount:  count,
		Amount:        amount.Round(2),
		Currency:      strings.ToUpper(currency),
		CreatedAt:     time.Now(),
	}, nil
}
