package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository works inside and
// outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Constraint names from migrations.
const (
	constraintBookingOverlap   = "bookings_no_overlap"
	constraintLessonOverlap    = "lessons_no_overlap"
	constraintOneRegistered    = "enrollments_one_registered"
	constraintAttendanceEntity = "attendance_entity_client_type_key"
)

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
)

// IsNotFound reports whether err is pgx's "no rows".
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// translate maps constraint violations onto domain errors and wraps everything else.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeExclusionViolation &&
			(pgErr.ConstraintName == constraintBookingOverlap || pgErr.ConstraintName == constraintLessonOverlap):
			return fmt.Errorf("%s: %w", op, model.ErrHallBusy)
		case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintOneRegistered:
			return fmt.Errorf("%s: %w", op, model.ErrAlreadyEnrolled)
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, repository.ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// execAffected runs a command and fails with notFound when no row was touched.
func execAffected(ctx context.Context, q querier, op string, notFound error, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return translate(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
