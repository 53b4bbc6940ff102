package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

type lessonRepo struct{ h *handle }

func (r *lessonRepo) Create(ctx context.Context, lesson *model.Lesson) error {
	return r.h.do(func(d *dataset) error {
		if lesson.ID == uuid.Nil {
			lesson.ID = model.NewID()
		}
		if lesson.OccupiesHall() {
			for _, l := range d.lessons {
				if l.HallID == lesson.HallID && l.OccupiesHall() && l.Slot.Overlaps(lesson.Slot) {
					return fmt.Errorf("create lesson: %w", model.ErrHallBusy)
				}
			}
		}
		if lesson.CreatedAt.IsZero() {
			lesson.CreatedAt = r.h.now()
		}
		lesson.Slot = lesson.Slot.UTC()
		d.lessons[lesson.ID] = *lesson
		return nil
	})
}

func (r *lessonRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	var out *model.Lesson
	err := r.h.do(func(d *dataset) error {
		if l, ok := d.lessons[id]; ok {
			out = &l
		}
		return nil
	})
	return out, err
}

// GetForUpdate needs no row lock here, the transaction already owns the dataset.
func (r *lessonRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	return r.GetByID(ctx, id)
}

func (r *lessonRepo) collect(match func(l model.Lesson) bool) ([]*model.Lesson, error) {
	var out []*model.Lesson
	err := r.h.do(func(d *dataset) error {
		for _, l := range d.lessons {
			if match(l) {
				out = append(out, &l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Start.Before(out[j].Slot.Start) })
	return out, err
}

func (r *lessonRepo) ListByHallID(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]*model.Lesson, error) {
	return r.collect(func(l model.Lesson) bool {
		return l.HallID == hallID && l.Slot.Start.Before(to) && l.Slot.End().After(from)
	})
}

func (r *lessonRepo) FindConflicting(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) ([]*model.Lesson, error) {
	return r.collect(func(l model.Lesson) bool {
		return l.HallID == hallID && l.OccupiesHall() && l.Slot.Overlaps(slot)
	})
}

func (r *lessonRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LessonStatus) error {
	return r.h.do(func(d *dataset) error {
		l, ok := d.lessons[id]
		if !ok {
			return fmt.Errorf("update lesson status: %w", model.ErrLessonNotFound)
		}
		l.Status = status
		d.lessons[id] = l
		return nil
	})
}

func (r *lessonRepo) AdjustParticipants(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	var ok bool
	err := r.h.do(func(d *dataset) error {
		l, found := d.lessons[id]
		if !found {
			return fmt.Errorf("adjust lesson participants: %w", model.ErrLessonNotFound)
		}
		n := l.CurrentParticipants + delta
		if n < 0 || n > l.MaxParticipants {
			return nil
		}
		l.CurrentParticipants = n
		d.lessons[id] = l
		ok = true
		return nil
	})
	return ok, err
}

func (r *lessonRepo) SetParticipants(ctx context.Context, id uuid.UUID, n int) error {
	return r.h.do(func(d *dataset) error {
		l, ok := d.lessons[id]
		if !ok {
			return fmt.Errorf("set lesson participants: %w", model.ErrLessonNotFound)
		}
		if n < 0 || n > l.MaxParticipants {
			return fmt.Errorf("set lesson participants: %d outside [0, %d]", n, l.MaxParticipants)
		}
		l.CurrentParticipants = n
		d.lessons[id] = l
		return nil
	})
}
