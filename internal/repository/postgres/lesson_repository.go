package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LessonRepository struct {
	q querier
}

const lessonColumns = `id, type, name, start_time, duration_minutes, difficulty, max_participants,
	current_participants, price, trainer_id, hall_id, status, created_at`

func scanLesson(row pgx.Row) (*model.Lesson, error) {
	var l model.Lesson
	err := row.Scan(
		&l.ID,
		&l.Type,
		&l.Name,
		&l.Slot.Start,
		&l.Slot.DurationMinutes,
		&l.Difficulty,
		&l.MaxParticipants,
		&l.CurrentParticipants,
		&l.Price,
		&l.TrainerID,
		&l.HallID,
		&l.Status,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Slot.Start = l.Slot.Start.UTC()
	return &l, nil
}

func (r *LessonRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Lesson, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	if lesson.ID == uuid.Nil {
		lesson.ID = model.NewID()
	}
	lesson.Slot = lesson.Slot.UTC()

	query := `
		INSERT INTO lessons (id, type, name, start_time, end_time, duration_minutes, difficulty,
			max_participants, current_participants, price, trainer_id, hall_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	err := r.q.QueryRow(
		ctx, query,
		lesson.ID,
		lesson.Type,
		lesson.Name,
		lesson.Slot.Start,
		lesson.Slot.End(),
		lesson.Slot.DurationMinutes,
		lesson.Difficulty,
		lesson.MaxParticipants,
		lesson.CurrentParticipants,
		lesson.Price,
		lesson.TrainerID,
		lesson.HallID,
		lesson.Status,
	).Scan(&lesson.CreatedAt)

	if err != nil {
		return translate("create lesson", err)
	}

	return nil
}

func (r *LessonRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.Lesson, error) {
	l, err := scanLesson(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}
	return l, nil
}

func (r *LessonRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	return r.get(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id)
}

func (r *LessonRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	return r.get(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1 FOR UPDATE`, id)
}

func (r *LessonRepository) ListByHallID(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE hall_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`
	return r.list(ctx, "get lessons by hall", query, hallID, from.UTC(), to.UTC())
}

func (r *LessonRepository) FindConflicting(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) ([]*model.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE hall_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`
	return r.list(ctx, "find conflicting lessons", query, hallID, slot.Start.UTC(), slot.End().UTC())
}

func (r *LessonRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LessonStatus) error {
	return execAffected(ctx, r.q, "update lesson status", model.ErrLessonNotFound,
		`UPDATE lessons SET status = $1 WHERE id = $2`, status, id)
}

// AdjustParticipants is a guarded update, the row is left untouched when the bound would break.
func (r *LessonRepository) AdjustParticipants(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	query := `
		UPDATE lessons
		SET current_participants = current_participants + $1
		WHERE id = $2
		  AND current_participants + $1 BETWEEN 0 AND max_participants
	`

	tag, err := r.q.Exec(ctx, query, delta, id)
	if err != nil {
		return false, fmt.Errorf("adjust lesson participants: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LessonRepository) SetParticipants(ctx context.Context, id uuid.UUID, n int) error {
	return execAffected(ctx, r.q, "set lesson participants", model.ErrLessonNotFound,
		`UPDATE lessons SET current_participants = $1 WHERE id = $2`, n, id)
}
