package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type EnrollmentRepository struct {
	q querier
}

const enrollmentColumns = `id, client_id, lesson_id, status, enrollment_date, updated_at`

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(
		&e.ID,
		&e.ClientID,
		&e.LessonID,
		&e.Status,
		&e.EnrollmentDate,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Enrollment, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var enrollments []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}

	return enrollments, rows.Err()
}

// Create inserts an enrollment. A second REGISTERED row for the same pair hits
// enrollments_one_registered and comes back as model.ErrAlreadyEnrolled.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *model.Enrollment) error {
	if enrollment.ID == uuid.Nil {
		enrollment.ID = model.NewID()
	}

	query := `
		INSERT INTO enrollments (id, client_id, lesson_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING enrollment_date, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		enrollment.ID,
		enrollment.ClientID,
		enrollment.LessonID,
		enrollment.Status,
	).Scan(&enrollment.EnrollmentDate, &enrollment.UpdatedAt)

	if err != nil {
		return translate("create enrollment", err)
	}

	return nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get enrollment by id: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepository) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE client_id = $1
		ORDER BY enrollment_date
	`
	return r.list(ctx, "get enrollments by client", query, clientID)
}

func (r *EnrollmentRepository) ListByLessonID(ctx context.Context, lessonID uuid.UUID) ([]*model.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE lesson_id = $1
		ORDER BY enrollment_date
	`
	return r.list(ctx, "get enrollments by lesson", query, lessonID)
}

func (r *EnrollmentRepository) GetActive(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE client_id = $1 AND lesson_id = $2 AND status = 'REGISTERED'
		LIMIT 1
	`

	e, err := scanEnrollment(r.q.QueryRow(ctx, query, clientID, lessonID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active enrollment: %w", err)
	}
	return e, nil
}

// GetLatest returns the newest enrollment of the client in the lesson.
func (r *EnrollmentRepository) GetLatest(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE client_id = $1 AND lesson_id = $2
		ORDER BY enrollment_date DESC, updated_at DESC
		LIMIT 1
	`

	e, err := scanEnrollment(r.q.QueryRow(ctx, query, clientID, lessonID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest enrollment: %w", err)
	}
	return e, nil
}

func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EnrollmentStatus) error {
	query := `
		UPDATE enrollments
		SET status = $1, updated_at = now()
		WHERE id = $2
	`
	return execAffected(ctx, r.q, "update enrollment status", model.ErrEnrollmentNotFound, query, status, id)
}

func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]*model.Enrollment, error) {
	return r.list(ctx, "list enrollments", `SELECT `+enrollmentColumns+` FROM enrollments ORDER BY enrollment_date, id`)
}
