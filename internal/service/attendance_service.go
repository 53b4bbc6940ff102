package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/metrics"
	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncResult tags what a synchronization did to the attendance table.
type SyncResult string

const (
	SyncCreated   SyncResult = "created"
	SyncUpdated   SyncResult = "updated"
	SyncUnchanged SyncResult = "unchanged"
	SyncSkipped   SyncResult = "skipped"
	SyncFailed    SyncResult = "failed"
)

const migratedNotesPrefix = "[migrated]"

// ShouldCreateAttendance reports whether moving from old to next must be reflected in attendance.
func ShouldCreateAttendance[S model.TerminalStatus](old, next S) bool {
	return old != next && next.IsTerminal()
}

type AttendancePolicy struct {
	// PenaltyRate is the share of the price counted as negative revenue for a cancellation.
	PenaltyRate     float64
	MaxSyncAttempts int
}

type AttendanceService struct {
	store  repository.Store
	policy AttendancePolicy
	clock  Clock
	logger *zap.Logger
}

// NewAttendanceService returns an AttendanceService. A nil clock means time.Now.
func NewAttendanceService(store repository.Store, policy AttendancePolicy, clock Clock, logger *zap.Logger) *AttendanceService {
	return &AttendanceService{
		store:  store,
		policy: policy,
		clock:  clock,
		logger: logger,
	}
}

// SyncForBooking brings the attendance row of a booking in line with newStatus.
func (s *AttendanceService) SyncForBooking(ctx context.Context, bookingID uuid.UUID, newStatus model.BookingStatus, notes string) (SyncResult, error) {
	status, ok := model.BookingAttendanceStatus(newStatus)
	if !ok {
		return SyncSkipped, nil
	}

	var result SyncResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		draft, err := s.bookingDraft(ctx, tx, bookingID, status, notes)
		if err != nil {
			return err
		}
		result, err = s.upsert(ctx, tx, draft)
		return err
	})
	if err != nil {
		return SyncFailed, tagStorage("sync booking attendance", err)
	}

	s.logger.Debug("Attendance synced",
		zap.String("booking_id", bookingID.String()),
		zap.String("status", string(status)),
		zap.String("result", string(result)),
	)
	return result, nil
}

// SyncForEnrollment brings the attendance row of an enrollment in line with newStatus.
// The row is keyed by the lesson, so EntityID is the lesson ID and only the client's newest
// enrollment in that lesson may write it. Stale requests are skipped.
func (s *AttendanceService) SyncForEnrollment(ctx context.Context, enrollmentID uuid.UUID, newStatus model.EnrollmentStatus, notes string) (SyncResult, error) {
	status, ok := model.EnrollmentAttendanceStatus(newStatus)
	if !ok {
		return SyncSkipped, nil
	}

	var result SyncResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		draft, err := s.enrollmentDraft(ctx, tx, enrollmentID, newStatus, status, notes)
		if err != nil {
			return err
		}
		if draft == nil {
			result = SyncSkipped
			return nil
		}
		result, err = s.upsert(ctx, tx, draft)
		return err
	})
	if err != nil {
		return SyncFailed, tagStorage("sync enrollment attendance", err)
	}

	s.logger.Debug("Attendance synced",
		zap.String("enrollment_id", enrollmentID.String()),
		zap.String("status", string(status)),
		zap.String("result", string(result)),
	)
	return result, nil
}

// ProcessTask runs one outbox task and records its outcome on the task row.
// A failed task stays pending until it runs out of attempts.
func (s *AttendanceService) ProcessTask(ctx context.Context, task *model.SyncTask) (SyncResult, error) {
	result, err := s.dispatch(ctx, task)
	metrics.RecordAttendanceSync(string(task.Source), string(result))

	if err != nil {
		if markErr := s.store.SyncTasks().MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to record sync failure",
				zap.String("task_id", task.ID.String()),
				zap.Error(markErr),
			)
		}
		s.logger.Warn("Attendance sync failed",
			zap.String("task_id", task.ID.String()),
			zap.String("source", string(task.Source)),
			zap.String("entity_id", task.EntityID.String()),
			zap.Int("attempt", task.Attempts+1),
			zap.Error(err),
		)
		return SyncFailed, err
	}

	if err := s.store.SyncTasks().MarkDone(ctx, task.ID, s.clock.now()); err != nil {
		// The row is already in place; a replay will report it unchanged.
		return result, tagStorage("mark sync task done", err)
	}
	return result, nil
}

func (s *AttendanceService) dispatch(ctx context.Context, task *model.SyncTask) (SyncResult, error) {
	switch task.Source {
	case model.SyncSourceBooking:
		oldStatus, newStatus := model.BookingStatus(task.OldStatus), model.BookingStatus(task.NewStatus)
		if !ShouldCreateAttendance(oldStatus, newStatus) {
			return SyncSkipped, nil
		}
		return s.SyncForBooking(ctx, task.EntityID, newStatus, task.Notes)
	case model.SyncSourceEnrollment:
		oldStatus, newStatus := model.EnrollmentStatus(task.OldStatus), model.EnrollmentStatus(task.NewStatus)
		if !ShouldCreateAttendance(oldStatus, newStatus) {
			return SyncSkipped, nil
		}
		return s.SyncForEnrollment(ctx, task.EntityID, newStatus, task.Notes)
	default:
		return SyncFailed, fmt.Errorf("%w: unknown sync source %q", model.ErrValidation, task.Source)
	}
}

// RetryPending processes up to limit outbox tasks that still have attempts left and returns how
// many succeeded.
func (s *AttendanceService) RetryPending(ctx context.Context, limit int) (int, error) {
	tasks, err := s.store.SyncTasks().ListPending(ctx, s.policy.MaxSyncAttempts, limit)
	if err != nil {
		return 0, tagStorage("list pending sync tasks", err)
	}

	processed := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.ProcessTask(ctx, task); err == nil {
			processed++
		}
	}

	pending, err := s.store.SyncTasks().CountPending(ctx)
	if err != nil {
		return processed, tagStorage("count pending sync tasks", err)
	}
	metrics.SetAttendanceSyncPending(pending)

	if len(tasks) > 0 {
		s.logger.Info("Retried attendance sync tasks",
			zap.Int("picked", len(tasks)),
			zap.Int("processed", processed),
			zap.Int("pending", pending),
		)
	}
	return processed, nil
}

// processAfterCommit runs freshly enqueued tasks. Failures are logged and left to the scheduler.
func (s *AttendanceService) processAfterCommit(ctx context.Context, tasks []*model.SyncTask) {
	for _, task := range tasks {
		result, err := s.ProcessTask(ctx, task)
		if err != nil {
			continue
		}
		s.logger.Debug("Attendance sync task processed",
			zap.String("task_id", task.ID.String()),
			zap.String("result", string(result)),
		)
	}
}

// CalculateRevenue is the amount a row contributes: the price for a visit, a penalty share of it
// (negative) for a cancellation, nothing otherwise.
func (s *AttendanceService) CalculateRevenue(a *model.Attendance) float64 {
	switch a.Status {
	case model.AttendanceStatusVisited:
		return model.RoundMoney(a.AmountPaid)
	case model.AttendanceStatusCancelled:
		return model.RoundMoney(-a.AmountPaid * s.policy.PenaltyRate)
	default:
		return 0
	}
}

func (s *AttendanceService) bookingDraft(ctx context.Context, repos repository.Repositories, bookingID uuid.UUID, status model.AttendanceStatus, notes string) (*model.Attendance, error) {
	booking, err := repos.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, model.ErrBookingNotFound
	}

	hall, err := repos.Halls().GetByID(ctx, booking.HallID)
	if err != nil {
		return nil, fmt.Errorf("get hall: %w", err)
	}
	var amount float64
	if hall != nil {
		amount = hall.PriceFor(booking.Slot)
	}

	return s.draft(booking.ClientID, booking.ID, model.AttendanceTypeBooking, status, booking.Slot, amount, notes), nil
}

// enrollmentDraft returns nil when the enrollment has moved past newStatus or a newer
// enrollment of the same client in the same lesson exists.
func (s *AttendanceService) enrollmentDraft(ctx context.Context, repos repository.Repositories, enrollmentID uuid.UUID, newStatus model.EnrollmentStatus, status model.AttendanceStatus, notes string) (*model.Attendance, error) {
	enrollment, err := repos.Enrollments().GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, model.ErrEnrollmentNotFound
	}
	if enrollment.Status != newStatus {
		return nil, nil
	}

	latest, err := repos.Enrollments().GetLatest(ctx, enrollment.ClientID, enrollment.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get latest enrollment: %w", err)
	}
	if latest == nil || latest.ID != enrollment.ID {
		return nil, nil
	}

	return s.lessonDraft(ctx, repos, enrollment, status, notes)
}

func (s *AttendanceService) lessonDraft(ctx context.Context, repos repository.Repositories, enrollment *model.Enrollment, status model.AttendanceStatus, notes string) (*model.Attendance, error) {
	lesson, err := repos.Lessons().GetByID(ctx, enrollment.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, model.ErrLessonNotFound
	}
	return s.draft(enrollment.ClientID, lesson.ID, model.AttendanceTypeLesson, status, lesson.Slot, lesson.Price, notes), nil
}

func (s *AttendanceService) draft(clientID, entityID uuid.UUID, typ model.AttendanceType, status model.AttendanceStatus, slot model.TimeSlot, amount float64, notes string) *model.Attendance {
	a := &model.Attendance{
		ClientID:        clientID,
		EntityID:        entityID,
		Type:            typ,
		Status:          status,
		ScheduledTime:   slot.Start.UTC(),
		Notes:           truncateRunes(notes, model.MaxAttendanceNotes),
		AmountPaid:      model.RoundMoney(amount),
		DurationMinutes: slot.DurationMinutes,
	}
	if status == model.AttendanceStatusVisited {
		now := s.clock.now()
		a.ActualTime = &now
	}
	return a
}

// upsert writes draft keyed by (EntityID, Type, ClientID). Replaying the same status is a no-op.
func (s *AttendanceService) upsert(ctx context.Context, repos repository.Repositories, draft *model.Attendance) (SyncResult, error) {
	existing, err := repos.Attendance().FindByEntity(ctx, draft.EntityID, draft.Type, draft.ClientID)
	if err != nil {
		return SyncFailed, fmt.Errorf("find attendance: %w", err)
	}

	if existing == nil {
		draft.ID = model.NewID()
		if err := repos.Attendance().Create(ctx, draft); err != nil {
			return SyncFailed, fmt.Errorf("create attendance: %w", err)
		}
		return SyncCreated, nil
	}

	if existing.Status == draft.Status {
		return SyncUnchanged, nil
	}

	existing.Status = draft.Status
	existing.ActualTime = draft.ActualTime
	existing.AmountPaid = draft.AmountPaid
	existing.DurationMinutes = draft.DurationMinutes
	if draft.Notes != "" {
		existing.Notes = draft.Notes
	}
	if err := repos.Attendance().Update(ctx, existing); err != nil {
		return SyncFailed, fmt.Errorf("update attendance: %w", err)
	}
	return SyncUpdated, nil
}

// MigrationSourceReport counts what the backfill did for one source table.
type MigrationSourceReport struct {
	Scanned  int
	Created  int
	Existing int
	Skipped  int
	Failed   int
}

type MigrationReport struct {
	Bookings    MigrationSourceReport
	Enrollments MigrationSourceReport
}

// Failed is the number of sources that could not be migrated.
func (r MigrationReport) Failed() int {
	return r.Bookings.Failed + r.Enrollments.Failed
}

// MigrateHistorical creates attendance rows for every terminal booking and enrollment that has
// none. Of several enrollments of one client in one lesson only the newest counts, as in the live
// sync. Running it again creates nothing.
func (s *AttendanceService) MigrateHistorical(ctx context.Context) (MigrationReport, error) {
	var report MigrationReport

	bookings, err := s.store.Bookings().ListAll(ctx)
	if err != nil {
		return report, tagStorage("list bookings", err)
	}
	for _, b := range bookings {
		report.Bookings.Scanned++
		status, ok := model.BookingAttendanceStatus(b.Status)
		if !ok {
			report.Bookings.Skipped++
			continue
		}
		notes := migratedNotesPrefix + " booking " + string(b.Status)
		if b.Purpose != "" {
			notes += ": " + b.Purpose
		}
		result, err := s.migrateOne(ctx, func(ctx context.Context, tx repository.Tx) (*model.Attendance, error) {
			return s.bookingDraft(ctx, tx, b.ID, status, notes)
		})
		s.count(&report.Bookings, result, err, "booking_id", b.ID)
	}

	enrollments, err := s.store.Enrollments().ListAll(ctx)
	if err != nil {
		return report, tagStorage("list enrollments", err)
	}
	for _, e := range enrollments {
		report.Enrollments.Scanned++
		status, ok := model.EnrollmentAttendanceStatus(e.Status)
		if !ok {
			report.Enrollments.Skipped++
			continue
		}
		notes := migratedNotesPrefix + " enrollment " + string(e.Status)
		result, err := s.migrateOne(ctx, func(ctx context.Context, tx repository.Tx) (*model.Attendance, error) {
			return s.enrollmentDraft(ctx, tx, e.ID, e.Status, status, notes)
		})
		s.count(&report.Enrollments, result, err, "enrollment_id", e.ID)
	}

	metrics.RecordAttendanceMigrated(string(model.SyncSourceBooking), report.Bookings.Created)
	metrics.RecordAttendanceMigrated(string(model.SyncSourceEnrollment), report.Enrollments.Created)

	s.logger.Info("Historical attendance migration finished",
		zap.Int("bookings_scanned", report.Bookings.Scanned),
		zap.Int("bookings_created", report.Bookings.Created),
		zap.Int("bookings_existing", report.Bookings.Existing),
		zap.Int("enrollments_scanned", report.Enrollments.Scanned),
		zap.Int("enrollments_created", report.Enrollments.Created),
		zap.Int("enrollments_existing", report.Enrollments.Existing),
		zap.Int("failed", report.Failed()),
	)
	return report, nil
}

// migrateOne inserts the drafted row unless one already exists. Existing rows are never touched.
// A nil draft means the source is not the one the row follows.
func (s *AttendanceService) migrateOne(ctx context.Context, build func(ctx context.Context, tx repository.Tx) (*model.Attendance, error)) (SyncResult, error) {
	result := SyncUnchanged
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		draft, err := build(ctx, tx)
		if err != nil {
			return err
		}
		if draft == nil {
			result = SyncSkipped
			return nil
		}
		existing, err := tx.Attendance().FindByEntity(ctx, draft.EntityID, draft.Type, draft.ClientID)
		if err != nil {
			return fmt.Errorf("find attendance: %w", err)
		}
		if existing != nil {
			return nil
		}
		draft.ID = model.NewID()
		if err := tx.Attendance().Create(ctx, draft); err != nil {
			return fmt.Errorf("create attendance: %w", err)
		}
		result = SyncCreated
		return nil
	})
	return result, err
}

func (s *AttendanceService) count(r *MigrationSourceReport, result SyncResult, err error, key string, id uuid.UUID) {
	switch {
	case err != nil && errors.Is(err, repository.ErrDuplicate):
		r.Existing++
	case err != nil:
		r.Failed++
		s.logger.Warn("Failed to migrate attendance",
			zap.String(key, id.String()),
			zap.Error(err),
		)
	case result == SyncCreated:
		r.Created++
	case result == SyncSkipped:
		r.Skipped++
	default:
		r.Existing++
	}
}
