package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/metrics"
	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EnrollmentService struct {
	store      repository.Store
	attendance *AttendanceService
	clock      Clock
	logger     *zap.Logger
}

// NewEnrollmentService returns an EnrollmentService.
func NewEnrollmentService(store repository.Store, attendance *AttendanceService, clock Clock, logger *zap.Logger) *EnrollmentService {
	return &EnrollmentService{
		store:      store,
		attendance: attendance,
		clock:      clock,
		logger:     logger,
	}
}

// Enroll registers a client for a lesson. The enrollment row and the seat it takes are written in
// one transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error) {
	now := s.clock.now()
	enrollment := &model.Enrollment{
		ID:       model.NewID(),
		ClientID: clientID,
		LessonID: lessonID,
		Status:   model.EnrollmentStatusRegistered,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireActiveClient(ctx, tx, clientID); err != nil {
			return err
		}

		lesson, err := tx.Lessons().GetForUpdate(ctx, lessonID)
		if err != nil {
			return fmt.Errorf("get lesson: %w", err)
		}
		if lesson == nil {
			return model.ErrLessonNotFound
		}
		if lesson.Status != model.LessonStatusScheduled || !lesson.Slot.StartsAfter(now) {
			return model.ErrLessonNotBookable
		}
		if lesson.IsFull() {
			return model.ErrLessonFull
		}

		active, err := tx.Enrollments().GetActive(ctx, clientID, lessonID)
		if err != nil {
			return fmt.Errorf("get active enrollment: %w", err)
		}
		if active != nil {
			return model.ErrAlreadyEnrolled
		}

		if err := tx.Enrollments().Create(ctx, enrollment); err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}

		ok, err := tx.Lessons().AdjustParticipants(ctx, lessonID, 1)
		if err != nil {
			return fmt.Errorf("take lesson seat: %w", err)
		}
		if !ok {
			return model.ErrLessonFull
		}
		return nil
	})
	if err != nil {
		return nil, tagStorage("enroll", err)
	}

	metrics.RecordEnrollment(string(enrollment.Status))
	s.logger.Info("Client enrolled",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("lesson_id", lessonID.String()),
	)

	return enrollment, nil
}

// Cancel releases the seat of a registered enrollment on behalf of its owner.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID, requestingClientID uuid.UUID) (*model.Enrollment, error) {
	var (
		enrollment *model.Enrollment
		task       *model.SyncTask
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := tx.Enrollments().GetByID(ctx, enrollmentID)
		if err != nil {
			return fmt.Errorf("get enrollment: %w", err)
		}
		if e == nil {
			return model.ErrEnrollmentNotFound
		}
		if e.ClientID != requestingClientID {
			return model.ErrNotOwner
		}

		task, err = cancelEnrollmentInTx(ctx, tx, e, "cancelled by client")
		if err != nil {
			return err
		}

		ok, err := tx.Lessons().AdjustParticipants(ctx, e.LessonID, -1)
		if err != nil {
			return fmt.Errorf("release lesson seat: %w", err)
		}
		if !ok {
			s.logger.Warn("Lesson participant counter already at zero",
				zap.String("lesson_id", e.LessonID.String()),
				zap.String("enrollment_id", e.ID.String()),
			)
		}

		enrollment = e
		return nil
	})
	if err != nil {
		return nil, tagStorage("cancel enrollment", err)
	}

	metrics.RecordEnrollment(string(enrollment.Status))
	s.logger.Info("Enrollment cancelled",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("client_id", requestingClientID.String()),
	)

	s.attendance.processAfterCommit(ctx, []*model.SyncTask{task})
	return enrollment, nil
}

// MarkAttendance records whether the client came to the lesson. The seat stays taken either way.
func (s *EnrollmentService) MarkAttendance(ctx context.Context, enrollmentID uuid.UUID, attended bool) (*model.Enrollment, error) {
	next := model.EnrollmentStatusMissed
	if attended {
		next = model.EnrollmentStatusAttended
	}

	var (
		enrollment *model.Enrollment
		task       *model.SyncTask
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		e, err := tx.Enrollments().GetByID(ctx, enrollmentID)
		if err != nil {
			return fmt.Errorf("get enrollment: %w", err)
		}
		if e == nil {
			return model.ErrEnrollmentNotFound
		}
		if !e.CanTransitionTo(next) {
			return fmt.Errorf("%w: enrollment %s -> %s", model.ErrInvalidStatusTransition, e.Status, next)
		}

		task, err = transitionEnrollmentInTx(ctx, tx, e, next, "")
		if err != nil {
			return err
		}
		enrollment = e
		return nil
	})
	if err != nil {
		return nil, tagStorage("mark attendance", err)
	}

	metrics.RecordEnrollment(string(enrollment.Status))
	s.logger.Info("Lesson attendance marked",
		zap.String("enrollment_id", enrollment.ID.String()),
		zap.String("status", string(enrollment.Status)),
	)

	s.attendance.processAfterCommit(ctx, []*model.SyncTask{task})
	return enrollment, nil
}

// GetByID returns model.ErrEnrollmentNotFound for unknown ids.
func (s *EnrollmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error) {
	e, err := s.store.Enrollments().GetByID(ctx, id)
	if err != nil {
		return nil, tagStorage("get enrollment", err)
	}
	if e == nil {
		return nil, model.ErrEnrollmentNotFound
	}
	return e, nil
}

// ListClientEnrollments returns every enrollment of the client, oldest first.
func (s *EnrollmentService) ListClientEnrollments(ctx context.Context, clientID uuid.UUID) ([]*model.Enrollment, error) {
	out, err := s.store.Enrollments().ListByClientID(ctx, clientID)
	if err != nil {
		return nil, tagStorage("list client enrollments", err)
	}
	return out, nil
}

// ListLessonEnrollments returns every enrollment in the lesson, oldest first.
func (s *EnrollmentService) ListLessonEnrollments(ctx context.Context, lessonID uuid.UUID) ([]*model.Enrollment, error) {
	out, err := s.store.Enrollments().ListByLessonID(ctx, lessonID)
	if err != nil {
		return nil, tagStorage("list lesson enrollments", err)
	}
	return out, nil
}
