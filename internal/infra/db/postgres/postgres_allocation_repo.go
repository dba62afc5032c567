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

var _ repository.AllocationRepository = (*allocationRepo)(nil)

type allocationRepo struct {
	pool *pgxpool.Pool
}

func NewAllocationRepo(pool *pgxpool.Pool) *allocationRepo {
	return &allocationRepo{pool: pool}
}

const allocationColumns = `id, institution_id, kind, department_id, teacher_id, student_id,
       allocated_count, used_count, allocation_type, status, created_at, updated_at`

func scanAllocation(row pgx.Row) (*model.Allocation, error) {
	var a model.Allocation
	var kind, status string
	err := row.Scan(&a.ID, &a.InstitutionID, &kind, &a.DepartmentID, &a.TeacherID, &a.StudentID,
		&a.AllocatedCount, &a.UsedCount, &a.AllocationType, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Kind = model.TargetKind(kind)
	a.Status = model.AllocationStatus(status)
	return &a, nil
}

func (r *allocationRepo) Create(ctx context.Context, tx repository.Tx, a *model.Allocation) error {
	const q = `
INSERT INTO session_allocations (` + allocationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.InstitutionID, string(a.Kind), a.DepartmentID, a.TeacherID, a.StudentID,
		a.AllocatedCount, a.UsedCount, a.AllocationType, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *allocationRepo) Update(ctx context.Context, tx repository.Tx, a *model.Allocation) error {
	a.UpdatedAt = time.Now()
	const q = `
UPDATE session_allocations SET
  department_id   = $2,
  allocated_count = $3,
  used_count      = $4,
  status          = $5,
  updated_at      = $6
WHERE id = $1`
	tag, err := execSQL(ctx, r.pool, tx, q, a.ID, a.DepartmentID, a.AllocatedCount, a.UsedCount, string(a.Status), a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("allocation %s: %w", a.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *allocationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Allocation, error) {
	q := `SELECT ` + allocationColumns + ` FROM session_allocations WHERE id = $1`
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	a, err := scanAllocation(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return a, nil
}

func (r *allocationRepo) FindActiveByTarget(ctx context.Context, tx repository.Tx, institutionID string, target model.AllocationTarget) (*model.Allocation, error) {
	var (
		q    string
		args []interface{}
	)
	switch target.Kind {
	case model.TargetStudent:
		q = `SELECT ` + allocationColumns + ` FROM session_allocations
 WHERE kind = 'student' AND student_id = $1 AND status = 'active'`
		args = []interface{}{target.ID}
	case model.TargetTeacher:
		q = `SELECT ` + allocationColumns + ` FROM session_allocations
 WHERE kind = 'teacher' AND institution_id = $1 AND teacher_id = $2 AND status = 'active'`
		args = []interface{}{institutionID, target.ID}
	case model.TargetDepartment:
		q = `SELECT ` + allocationColumns + ` FROM session_allocations
 WHERE kind = 'department' AND institution_id = $1 AND department_id = $2 AND status = 'active'`
		args = []interface{}{institutionID, target.ID}
	default:
		return nil, domain.Invalid("unknown allocation target kind %q", target.Kind)
	}
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	a, err := scanAllocation(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return a, nil
}

func (r *allocationRepo) ListByInstitution(ctx context.Context, tx repository.Tx, institutionID string, f model.AllocationFilter) ([]*model.Allocation, error) {
	where := []string{"institution_id = $1"}
	args := []interface{}{institutionID}
	if f.ActiveOnly {
		where = append(where, "status = 'active'")
	}
	if f.Kind != nil {
		args = append(args, string(*f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.DepartmentID != nil {
		args = append(args, *f.DepartmentID)
		where = append(where, fmt.Sprintf("department_id = $%d", len(args)))
	}
	q := `SELECT ` + allocationColumns + ` FROM session_allocations WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at ASC, id ASC`

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, scanErr(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}
