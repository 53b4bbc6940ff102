package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
)

type attendanceRepo struct{ h *handle }

func (r *attendanceRepo) Create(ctx context.Context, a *model.Attendance) error {
	return r.h.do(func(d *dataset) error {
		for _, existing := range d.attendance {
			if existing.EntityID == a.EntityID && existing.ClientID == a.ClientID && existing.Type == a.Type {
				return fmt.Errorf("create attendance: %w", repository.ErrDuplicate)
			}
		}
		if a.ID == uuid.Nil {
			a.ID = model.NewID()
		}
		now := r.h.now()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		d.attendance[a.ID] = *a
		return nil
	})
}

func (r *attendanceRepo) Update(ctx context.Context, a *model.Attendance) error {
	return r.h.do(func(d *dataset) error {
		if _, ok := d.attendance[a.ID]; !ok {
			return fmt.Errorf("update attendance %s: %w", a.ID, model.ErrNotFound)
		}
		a.UpdatedAt = r.h.now()
		d.attendance[a.ID] = *a
		return nil
	})
}

func (r *attendanceRepo) FindByEntity(ctx context.Context, entityID uuid.UUID, typ model.AttendanceType, clientID uuid.UUID) (*model.Attendance, error) {
	var out *model.Attendance
	err := r.h.do(func(d *dataset) error {
		for _, a := range d.attendance {
			if a.EntityID == entityID && a.Type == typ && a.ClientID == clientID {
				out = &a
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *attendanceRepo) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Attendance, error) {
	return r.List(ctx, repository.AttendanceFilter{ClientID: &clientID})
}

func (r *attendanceRepo) List(ctx context.Context, filter repository.AttendanceFilter) ([]*model.Attendance, error) {
	var out []*model.Attendance
	err := r.h.do(func(d *dataset) error {
		for _, a := range d.attendance {
			if matches(a, filter) {
				out = append(out, &a)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, err
}

func matches(a model.Attendance, f repository.AttendanceFilter) bool {
	if f.ClientID != nil && a.ClientID != *f.ClientID {
		return false
	}
	if !f.From.IsZero() && a.ScheduledTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.ScheduledTime.Before(f.To) {
		return false
	}
	return true
}

func (r *attendanceRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.h.do(func(d *dataset) error {
		n = len(d.attendance)
		return nil
	})
	return n, err
}

type syncTaskRepo struct{ h *handle }

func (r *syncTaskRepo) Enqueue(ctx context.Context, task *model.SyncTask) error {
	return r.h.do(func(d *dataset) error {
		if task.ID == uuid.Nil {
			task.ID = model.NewID()
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = r.h.now()
		}
		d.tasks[task.ID] = *task
		return nil
	})
}

func (r *syncTaskRepo) ListPending(ctx context.Context, maxAttempts, limit int) ([]*model.SyncTask, error) {
	var out []*model.SyncTask
	err := r.h.do(func(d *dataset) error {
		for _, t := range d.tasks {
			if !t.Done() && t.Attempts < maxAttempts {
				out = append(out, &t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *syncTaskRepo) MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.h.do(func(d *dataset) error {
		t, ok := d.tasks[id]
		if !ok {
			return fmt.Errorf("mark sync task done: %w", model.ErrNotFound)
		}
		t.Attempts++
		t.LastError = ""
		t.ProcessedAt = &at
		d.tasks[id] = t
		return nil
	})
}

func (r *syncTaskRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.h.do(func(d *dataset) error {
		t, ok := d.tasks[id]
		if !ok {
			return fmt.Errorf("mark sync task failed: %w", model.ErrNotFound)
		}
		t.Attempts++
		t.LastError = errMsg
		d.tasks[id] = t
		return nil
	})
}

func (r *syncTaskRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.h.do(func(d *dataset) error {
		for _, t := range d.tasks {
			if !t.Done() {
				n++
			}
		}
		return nil
	})
	return n, err
}
