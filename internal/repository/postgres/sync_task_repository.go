package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

type SyncTaskRepository struct {
	q querier
}

func (r *SyncTaskRepository) Enqueue(ctx context.Context, task *model.SyncTask) error {
	if task.ID == uuid.Nil {
		task.ID = model.NewID()
	}

	query := `
		INSERT INTO attendance_sync_tasks (id, source, entity_id, old_status, new_status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.q.QueryRow(
		ctx, query,
		task.ID,
		task.Source,
		task.EntityID,
		task.OldStatus,
		task.NewStatus,
		task.Notes,
	).Scan(&task.CreatedAt)

	if err != nil {
		return translate("enqueue sync task", err)
	}

	return nil
}

// ListPending returns unprocessed tasks oldest first.
func (r *SyncTaskRepository) ListPending(ctx context.Context, maxAttempts, limit int) ([]*model.SyncTask, error) {
	query := `
		SELECT id, source, entity_id, old_status, new_status, notes, attempts, last_error, created_at, processed_at
		FROM attendance_sync_tasks
		WHERE processed_at IS NULL AND attempts < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.SyncTask
	for rows.Next() {
		var t model.SyncTask
		err := rows.Scan(
			&t.ID,
			&t.Source,
			&t.EntityID,
			&t.OldStatus,
			&t.NewStatus,
			&t.Notes,
			&t.Attempts,
			&t.LastError,
			&t.CreatedAt,
			&t.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, &t)
	}

	return tasks, rows.Err()
}

func (r *SyncTaskRepository) MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE attendance_sync_tasks
		SET processed_at = $1, attempts = attempts + 1, last_error = ''
		WHERE id = $2
	`
	return execAffected(ctx, r.q, "mark sync task done", model.ErrNotFound, query, at.UTC(), id)
}

func (r *SyncTaskRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE attendance_sync_tasks
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2
	`
	return execAffected(ctx, r.q, "mark sync task failed", model.ErrNotFound, query, errMsg, id)
}

func (r *SyncTaskRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_sync_tasks WHERE processed_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending sync tasks: %w", err)
	}
	return n, nil
}
