package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

type enrollmentRepo struct{ h *handle }

func (r *enrollmentRepo) Create(ctx context.Context, enrollment *model.Enrollment) error {
	return r.h.do(func(d *dataset) error {
		if enrollment.ID == uuid.Nil {
			enrollment.ID = model.NewID()
		}
		if enrollment.Status == model.EnrollmentStatusRegistered {
			for _, e := range d.enrollments {
				if e.ClientID == enrollment.ClientID && e.LessonID == enrollment.LessonID && e.Status == model.EnrollmentStatusRegistered {
					return fmt.Errorf("create enrollment: %w", model.ErrAlreadyEnrolled)
				}
			}
		}
		now := r.h.now()
		if enrollment.EnrollmentDate.IsZero() {
			enrollment.EnrollmentDate = now
		}
		enrollment.UpdatedAt = now
		if _, exists := d.enrollments[enrollment.ID]; !exists {
			d.enrollmentOrder = append(d.enrollmentOrder, enrollment.ID)
		}
		d.enrollments[enrollment.ID] = *enrollment
		return nil
	})
}

func (r *enrollmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	var out *model.Enrollment
	err := r.h.do(func(d *dataset) error {
		if e, ok := d.enrollments[id]; ok {
			out = &e
		}
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) collect(match func(e model.Enrollment) bool) ([]*model.Enrollment, error) {
	var out []*model.Enrollment
	err := r.h.do(func(d *dataset) error {
		for _, id := range d.enrollmentOrder {
			if e := d.enrollments[id]; match(e) {
				out = append(out, &e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnrollmentDate.Before(out[j].EnrollmentDate) })
	return out, err
}

func (r *enrollmentRepo) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Enrollment, error) {
	return r.collect(func(e model.Enrollment) bool { return e.ClientID == clientID })
}

func (r *enrollmentRepo) ListByLessonID(ctx context.Context, lessonID uuid.UUID) ([]*model.Enrollment, error) {
	return r.collect(func(e model.Enrollment) bool { return e.LessonID == lessonID })
}

func (r *enrollmentRepo) GetActive(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error) {
	found, err := r.collect(func(e model.Enrollment) bool {
		return e.ClientID == clientID && e.LessonID == lessonID && e.Status == model.EnrollmentStatusRegistered
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (r *enrollmentRepo) GetLatest(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error) {
	found, err := r.collect(func(e model.Enrollment) bool {
		return e.ClientID == clientID && e.LessonID == lessonID
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[len(found)-1], nil
}

func (r *enrollmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.EnrollmentStatus) error {
	return r.h.do(func(d *dataset) error {
		e, ok := d.enrollments[id]
		if !ok {
			return fmt.Errorf("update enrollment status: %w", model.ErrEnrollmentNotFound)
		}
		e.Status = status
		e.UpdatedAt = r.h.now()
		d.enrollments[id] = e
		return nil
	})
}

func (r *enrollmentRepo) ListAll(ctx context.Context) ([]*model.Enrollment, error) {
	return r.collect(func(model.Enrollment) bool { return true })
}
