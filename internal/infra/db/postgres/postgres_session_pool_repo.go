package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
)

var _ repository.SessionPoolRepository = (*sessionPoolRepo)(nil)

type sessionPoolRepo struct {
	pool *pgxpool.Pool
}

func NewSessionPoolRepo(pool *pgxpool.Pool) *sessionPoolRepo {
	return &sessionPoolRepo{pool: pool}
}

func (r *sessionPoolRepo) FindByInstitution(ctx context.Context, tx repository.Tx, institutionID string) (*model.SessionPool, error) {
	q := `
SELECT institution_id, total_sessions, used_sessions, created_at, updated_at
  FROM session_pools
 WHERE institution_id = $1`
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, institutionID)
	if err != nil {
		return nil, err
	}
	var p model.SessionPool
	if err := row.Scan(&p.InstitutionID, &p.TotalSessions, &p.UsedSessions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &p, nil
}

func (r *sessionPoolRepo) Save(ctx context.Context, tx repository.Tx, p *model.SessionPool) error {
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	const q = `
INSERT INTO session_pools (institution_id, total_sessions, used_sessions, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (institution_id) DO UPDATE SET
  total_sessions = EXCLUDED.total_sessions,
  used_sessions  = EXCLUDED.used_sessions,
  updated_at     = EXCLUDED.updated_at`
	_, err := execSQL(ctx, r.pool, tx, q, p.InstitutionID, p.TotalSessions, p.UsedSessions, p.CreatedAt, p.UpdatedAt)
	return err
}
