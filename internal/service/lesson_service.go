package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/dance_studio/internal/metrics"
	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ScheduleLessonRequest struct {
	Type            model.LessonType `validate:"required,oneof=GROUP INDIVIDUAL MASTERCLASS"`
	Name            string           `validate:"required,max=255"`
	Slot            model.TimeSlot   `validate:"-"`
	Difficulty      model.Difficulty `validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	MaxParticipants int              `validate:"gte=1"`
	Price           float64          `validate:"gte=0"`
	TrainerID       uuid.UUID        `validate:"required"`
	HallID          uuid.UUID        `validate:"required"`
}

type LessonService struct {
	store      repository.Store
	attendance *AttendanceService
	clock      Clock
	logger     *zap.Logger
}

// NewLessonService returns a LessonService.
func NewLessonService(store repository.Store, attendance *AttendanceService, clock Clock, logger *zap.Logger) *LessonService {
	return &LessonService{
		store:      store,
		attendance: attendance,
		clock:      clock,
		logger:     logger,
	}
}

// Schedule puts a lesson into a free hall slot.
func (s *LessonService) Schedule(ctx context.Context, req ScheduleLessonRequest) (*model.Lesson, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := validateFutureSlot(req.Slot, s.clock.now()); err != nil {
		return nil, err
	}

	lesson := &model.Lesson{
		ID:              model.NewID(),
		Type:            req.Type,
		Name:            req.Name,
		Slot:            req.Slot.UTC(),
		Difficulty:      req.Difficulty,
		MaxParticipants: req.MaxParticipants,
		Price:           model.RoundMoney(req.Price),
		TrainerID:       req.TrainerID,
		HallID:          req.HallID,
		Status:          model.LessonStatusScheduled,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		trainer, err := tx.Trainers().GetByID(ctx, req.TrainerID)
		if err != nil {
			return fmt.Errorf("get trainer: %w", err)
		}
		if trainer == nil {
			return model.ErrTrainerNotFound
		}
		if !trainer.IsActive {
			return model.ErrTrainerInactive
		}
		if err := requireActiveHall(ctx, tx, req.HallID); err != nil {
			return err
		}

		if err := tx.LockHall(ctx, req.HallID); err != nil {
			return err
		}
		conflicts, err := findConflicts(ctx, tx, req.HallID, lesson.Slot, nil)
		if err != nil {
			return err
		}
		if err := conflicts.Err(); err != nil {
			return err
		}

		if err := tx.Lessons().Create(ctx, lesson); err != nil {
			return fmt.Errorf("create lesson: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			metrics.RecordHallConflict("lesson")
		}
		return nil, tagStorage("schedule lesson", err)
	}

	metrics.RecordLesson(string(lesson.Status))
	s.logger.Info("Lesson scheduled",
		zap.String("lesson_id", lesson.ID.String()),
		zap.String("hall_id", lesson.HallID.String()),
		zap.String("trainer_id", lesson.TrainerID.String()),
		zap.String("slot", lesson.Slot.String()),
		zap.Int("max_participants", lesson.MaxParticipants),
	)

	return lesson, nil
}

// Cancel cancels a scheduled lesson together with every registered enrollment.
func (s *LessonService) Cancel(ctx context.Context, lessonID uuid.UUID, reason string) (*model.Lesson, error) {
	var (
		lesson *model.Lesson
		tasks  []*model.SyncTask
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		l, err := tx.Lessons().GetForUpdate(ctx, lessonID)
		if err != nil {
			return fmt.Errorf("get lesson: %w", err)
		}
		if l == nil {
			return model.ErrLessonNotFound
		}
		if l.Status != model.LessonStatusScheduled {
			return fmt.Errorf("%w: lesson %s -> %s", model.ErrInvalidStatusTransition, l.Status, model.LessonStatusCancelled)
		}

		if err := tx.Lessons().UpdateStatus(ctx, l.ID, model.LessonStatusCancelled); err != nil {
			return fmt.Errorf("update lesson status: %w", err)
		}
		l.Status = model.LessonStatusCancelled

		enrollments, err := tx.Enrollments().ListByLessonID(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("list lesson enrollments: %w", err)
		}
		notes := "lesson cancelled"
		if reason != "" {
			notes += ": " + reason
		}
		for _, e := range enrollments {
			if e.Status != model.EnrollmentStatusRegistered {
				continue
			}
			task, err := cancelEnrollmentInTx(ctx, tx, e, notes)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}

		if err := tx.Lessons().SetParticipants(ctx, l.ID, 0); err != nil {
			return fmt.Errorf("reset lesson participants: %w", err)
		}
		l.CurrentParticipants = 0

		lesson = l
		return nil
	})
	if err != nil {
		return nil, tagStorage("cancel lesson", err)
	}

	metrics.RecordLesson(string(lesson.Status))
	for range tasks {
		metrics.RecordEnrollment(string(model.EnrollmentStatusCancelled))
	}
	s.logger.Info("Lesson cancelled",
		zap.String("lesson_id", lesson.ID.String()),
		zap.Int("enrollments_cancelled", len(tasks)),
		zap.String("reason", reason),
	)

	s.attendance.processAfterCommit(ctx, tasks)
	return lesson, nil
}

// Complete closes a scheduled lesson. Enrollments keep their status until attendance is marked.
func (s *LessonService) Complete(ctx context.Context, lessonID uuid.UUID) (*model.Lesson, error) {
	var lesson *model.Lesson

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		l, err := tx.Lessons().GetForUpdate(ctx, lessonID)
		if err != nil {
			return fmt.Errorf("get lesson: %w", err)
		}
		if l == nil {
			return model.ErrLessonNotFound
		}
		if l.Status != model.LessonStatusScheduled {
			return fmt.Errorf("%w: lesson %s -> %s", model.ErrInvalidStatusTransition, l.Status, model.LessonStatusCompleted)
		}
		if err := tx.Lessons().UpdateStatus(ctx, l.ID, model.LessonStatusCompleted); err != nil {
			return fmt.Errorf("update lesson status: %w", err)
		}
		l.Status = model.LessonStatusCompleted
		lesson = l
		return nil
	})
	if err != nil {
		return nil, tagStorage("complete lesson", err)
	}

	metrics.RecordLesson(string(lesson.Status))
	s.logger.Info("Lesson completed", zap.String("lesson_id", lesson.ID.String()))
	return lesson, nil
}

// GetByID returns model.ErrLessonNotFound for unknown ids.
func (s *LessonService) GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error) {
	l, err := s.store.Lessons().GetByID(ctx, id)
	if err != nil {
		return nil, tagStorage("get lesson", err)
	}
	if l == nil {
		return nil, model.ErrLessonNotFound
	}
	return l, nil
}

// cancelEnrollmentInTx flips a registered enrollment to CANCELLED and enqueues its attendance sync.
// The participant counter is left to the caller.
func cancelEnrollmentInTx(ctx context.Context, tx repository.Tx, e *model.Enrollment, notes string) (*model.SyncTask, error) {
	if !e.CanTransitionTo(model.EnrollmentStatusCancelled) {
		return nil, fmt.Errorf("%w: enrollment %s -> %s", model.ErrInvalidStatusTransition, e.Status, model.EnrollmentStatusCancelled)
	}
	return transitionEnrollmentInTx(ctx, tx, e, model.EnrollmentStatusCancelled, notes)
}

func transitionEnrollmentInTx(ctx context.Context, tx repository.Tx, e *model.Enrollment, next model.EnrollmentStatus, notes string) (*model.SyncTask, error) {
	old := e.Status
	if err := tx.Enrollments().UpdateStatus(ctx, e.ID, next); err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}
	e.Status = next

	task := &model.SyncTask{
		ID:        model.NewID(),
		Source:    model.SyncSourceEnrollment,
		EntityID:  e.ID,
		OldStatus: string(old),
		NewStatus: string(next),
		Notes:     truncateRunes(notes, model.MaxAttendanceNotes),
	}
	if err := tx.SyncTasks().Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue attendance sync: %w", err)
	}
	return task, nil
}
