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

var _ repository.ScheduledChangeRepository = (*scheduledChangeRepo)(nil)

type scheduledChangeRepo struct {
	pool *pgxpool.Pool
}

func NewScheduledChangeRepo(pool *pgxpool.Pool) *scheduledChangeRepo {
	return &scheduledChangeRepo{pool: pool}
}

const changeColumns = `id, change_date, change_type, affected, current_value, new_value, status,
       notes, created_by, applied_at, created_at, updated_at`

func scanChange(row pgx.Row) (*model.ScheduledPriceChange, error) {
	var c model.ScheduledPriceChange
	var ct, status string
	err := row.Scan(&c.ID, &c.ChangeDate, &ct, &c.Affected, &c.CurrentValue, &c.NewValue, &status,
		&c.Notes, &c.CreatedBy, &c.AppliedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ChangeType = model.ChangeType(ct)
	c.Status = model.ChangeStatus(status)
	return &c, nil
}

func (r *scheduledChangeRepo) Create(ctx context.Context, tx repository.Tx, c *model.ScheduledPriceChange) error {
	const q = `
INSERT INTO scheduled_price_changes (` + changeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.ChangeDate, string(c.ChangeType), c.Affected, c.CurrentValue, c.NewValue,
		string(c.Status), c.Notes, c.CreatedBy, c.AppliedAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *scheduledChangeRepo) Update(ctx context.Context, tx repository.Tx, c *model.ScheduledPriceChange) error {
	c.UpdatedAt = time.Now()
	const q = `
UPDATE scheduled_price_changes SET
  change_date   = $2,
  change_type   = $3,
  affected      = $4,
  current_value = $5,
  new_value     = $6,
  status        = $7,
  notes         = $8,
  applied_at    = $9,
  updated_at    = $10
WHERE id = $1`
	tag, err := execSQL(ctx, r.pool, tx, q, c.ID, c.ChangeDate, string(c.ChangeType), c.Affected, c.CurrentValue, c.NewValue,
		string(c.Status), c.Notes, c.AppliedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scheduled change %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *scheduledChangeRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM scheduled_price_changes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scheduled change %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *scheduledChangeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledPriceChange, error) {
	q := `SELECT ` + changeColumns + ` FROM scheduled_price_changes WHERE id = $1`
	if tx != nil {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	c, err := scanChange(row)
	if err != nil {
		return nil, scanErr(err)
	}
	return c, nil
}

func (r *scheduledChangeRepo) List(ctx context.Context, tx repository.Tx, f model.ChangeFilter) ([]*model.ScheduledPriceChange, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Affected != nil {
		args = append(args, *f.Affected)
		where = append(where, fmt.Sprintf("affected = $%d", len(args)))
	}
	if f.DueBy != nil {
		args = append(args, *f.DueBy)
		where = append(where, fmt.Sprintf("change_date <= $%d", len(args)))
	}
	q := `SELECT ` + changeColumns + ` FROM scheduled_price_changes`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY change_date ASC, id ASC`

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ScheduledPriceChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, scanErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}
