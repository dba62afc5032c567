package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
)

var _ repository.SessionRequestRepository = (*sessionRequestRepo)(nil)

type sessionRequestRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRequestRepo(pool *pgxpool.Pool) *sessionRequestRepo {
	return &sessionRequestRepo{pool: pool}
}

const requestColumns = `id, student_id, institution_id, department_id, session_count, reason, status,
       reviewed_by, reviewed_at, review_note, allocation_id, created_at, updated_at`

func scanRequest(row pgx.Row) (*model.SessionRequest, error) {
	var r model.SessionRequest
	var status string
	err := row.Scan(&r.ID, &r.StudentID, &r.InstitutionID, &r.DepartmentID, &r.SessionCount, &r.Reason, &status,
		&r.ReviewedBy, &r.ReviewedAt, &r.ReviewNote, &r.AllocationID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RequestStatus(status)
	return &r, nil
}

func (r *sessionRequestRepo) Create(ctx context.Context, tx repository.Tx, req *model.SessionRequest) error {
	const q = `
INSERT INTO student_session_requests (` + requestColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := execSQL(ctx, r.pool, tx, q, req.ID, req.StudentID, req.InstitutionID, req.DepartmentID, req.SessionCount,
		req.Reason, string(req.Status), req.ReviewedBy, req.ReviewedAt, req.ReviewNote, req.AllocationID, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r *sessionRequestRepo) Update(ctx context.Context, tx repository.Tx, req *model.SessionRequest) error {
	req.UpdatedAt = time.Now()
	const q = `
UPDATE student_session_requests SET
  status        = $2,
  reviewed_by   = $3,
  reviewed_at   = $4,
  review_note   = $5,
  allocation_id = $6,
  updated_at    = $7
WHERE id = $1`
	tag, err := execSQL(ctx, r.pool, tx, q, req.ID, string(req.Status), req.ReviewedBy, req.ReviewedAt, req.ReviewNote, req.AllocationID, req.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session request %s: %w", req.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *sessionRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SessionRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM student_session_requests WHERE id = $1`
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return req, nil
}

func (r *sessionRequestRepo) List(ctx context.Context, tx repository.Tx, f model.RequestFilter) ([]*model.SessionRequest, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.InstitutionID != "" {
		add("institution_id = $%d", f.InstitutionID)
	}
	if f.DepartmentID != nil {
		add("department_id = $%d", *f.DepartmentID)
	}
	if f.StudentID != nil {
		add("student_id = $%d", *f.StudentID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	q := `SELECT ` + requestColumns + ` FROM student_session_requests`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id ASC`

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.SessionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, scanErr(err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}
