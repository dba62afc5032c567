package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
)

var _ repository.SessionPurchaseRepository = (*sessionPurchaseRepo)(nil)

type sessionPurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewSessionPurchaseRepo(pool *pgxpool.Pool) *sessionPurchaseRepo {
	return &sessionPurchaseRepo{pool: pool}
}

const purchaseColumns = `id, institution_id, payment_ref, session_count, amount, currency, created_at`

// Create expects the pool row to exist already (FK on institution_id).
func (r *sessionPurchaseRepo) Create(ctx context.Context, tx repository.Tx, p *model.SessionPurchase) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.pool, tx, `
INSERT INTO session_purchases (`+purchaseColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.InstitutionID, p.PaymentRef, p.SessionCount, p.Amount, p.Currency, p.CreatedAt)
	return err
}

func (r *sessionPurchaseRepo) FindByPaymentRef(ctx context.Context, tx repository.Tx, paymentRef string) (*model.SessionPurchase, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+purchaseColumns+` FROM session_purchases WHERE payment_ref = $1`, paymentRef)
	if err != nil {
		return nil, err
	}
	p, err := scanPurchase(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return p, nil
}

func (r *sessionPurchaseRepo) ListByInstitution(ctx context.Context, tx repository.Tx, institutionID string) ([]*model.SessionPurchase, error) {
	rows, err := queryRows(ctx, r.pool, tx, `
SELECT `+purchaseColumns+`
  FROM session_purchases
 WHERE institution_id = $1
 ORDER BY created_at DESC`, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SessionPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, scanErr(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanPurchase(row pgx.Row) (*model.SessionPurchase, error) {
	var p model.SessionPurchase
	if err := row.Scan(&p.ID, &p.InstitutionID, &p.PaymentRef, &p.SessionCount, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
