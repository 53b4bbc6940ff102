package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AttendanceRepository struct {
	q querier
}

const attendanceColumns = `id, client_id, entity_id, type, status, scheduled_time, actual_time,
	notes, amount_paid, duration_minutes, created_at, updated_at`

func scanAttendance(row pgx.Row) (*model.Attendance, error) {
	var a model.Attendance
	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.EntityID,
		&a.Type,
		&a.Status,
		&a.ScheduledTime,
		&a.ActualTime,
		&a.Notes,
		&a.AmountPaid,
		&a.DurationMinutes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a row; the (entity_id, client_id, type) key is unique.
func (r *AttendanceRepository) Create(ctx context.Context, a *model.Attendance) error {
	if a.ID == uuid.Nil {
		a.ID = model.NewID()
	}

	query := `
		INSERT INTO attendance (id, client_id, entity_id, type, status, scheduled_time, actual_time,
			notes, amount_paid, duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		a.ID,
		a.ClientID,
		a.EntityID,
		a.Type,
		a.Status,
		a.ScheduledTime,
		a.ActualTime,
		a.Notes,
		a.AmountPaid,
		a.DurationMinutes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return translate("create attendance", err)
	}

	return nil
}

func (r *AttendanceRepository) Update(ctx context.Context, a *model.Attendance) error {
	query := `
		UPDATE attendance
		SET status = $1, actual_time = $2, notes = $3, amount_paid = $4, duration_minutes = $5,
			scheduled_time = $6, updated_at = now()
		WHERE id = $7
		RETURNING updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		a.Status,
		a.ActualTime,
		a.Notes,
		a.AmountPaid,
		a.DurationMinutes,
		a.ScheduledTime,
		a.ID,
	).Scan(&a.UpdatedAt)

	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("update attendance %s: %w", a.ID, model.ErrNotFound)
		}
		return translate("update attendance", err)
	}

	return nil
}

func (r *AttendanceRepository) FindByEntity(ctx context.Context, entityID uuid.UUID, typ model.AttendanceType, clientID uuid.UUID) (*model.Attendance, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE entity_id = $1 AND type = $2 AND client_id = $3
	`

	a, err := scanAttendance(r.q.QueryRow(ctx, query, entityID, typ, clientID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance by entity: %w", err)
	}
	return a, nil
}

func (r *AttendanceRepository) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Attendance, error) {
	return r.List(ctx, repository.AttendanceFilter{ClientID: &clientID})
}

func (r *AttendanceRepository) List(ctx context.Context, filter repository.AttendanceFilter) ([]*model.Attendance, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		conds = append(conds, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		conds = append(conds, fmt.Sprintf("scheduled_time >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		conds = append(conds, fmt.Sprintf("scheduled_time < $%d", len(args)))
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY scheduled_time`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []*model.Attendance
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return n, nil
}
