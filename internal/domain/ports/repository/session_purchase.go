package repository

import (
	"context"

	"interview-sessions/internal/domain/model"
)

type SessionPurchaseRepository interface {
	// Create returns domain.ErrAlreadyExists when PaymentRef was recorded before.
	Create(ctx context.Context, tx Tx, p *model.SessionPurchase) error
	FindByPaymentRef(ctx context.Context, tx Tx, paymentRef string) (*model.SessionPurchase, error)
	ListByInstitution(ctx context.Context, tx Tx, institutionID string) ([]*model.SessionPurchase, error)
}
