package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCreateAttendance(t *testing.T) {
	assert.True(t, ShouldCreateAttendance(model.BookingStatusConfirmed, model.BookingStatusCancelled))
	assert.True(t, ShouldCreateAttendance(model.BookingStatusConfirmed, model.BookingStatusCompleted))
	assert.True(t, ShouldCreateAttendance(model.BookingStatusPending, model.BookingStatusCancelled))
	assert.False(t, ShouldCreateAttendance(model.BookingStatusPending, model.BookingStatusConfirmed))
	assert.False(t, ShouldCreateAttendance(model.BookingStatusCancelled, model.BookingStatusCancelled))

	assert.True(t, ShouldCreateAttendance(model.EnrollmentStatusRegistered, model.EnrollmentStatusAttended))
	assert.True(t, ShouldCreateAttendance(model.EnrollmentStatusRegistered, model.EnrollmentStatusMissed))
	assert.True(t, ShouldCreateAttendance(model.EnrollmentStatusRegistered, model.EnrollmentStatusCancelled))
	assert.False(t, ShouldCreateAttendance(model.EnrollmentStatusAttended, model.EnrollmentStatusAttended))
	assert.False(t, ShouldCreateAttendance(model.EnrollmentStatusCancelled, model.EnrollmentStatusRegistered))
}

func TestSyncForBooking_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	b := f.book(t, client, hall, f.at(10, 0, 60))

	result, err := f.attendance.SyncForBooking(ctx, b.ID, model.BookingStatusCancelled, "first")
	require.NoError(t, err)
	assert.Equal(t, SyncCreated, result)

	result, err = f.attendance.SyncForBooking(ctx, b.ID, model.BookingStatusCancelled, "second")
	require.NoError(t, err)
	assert.Equal(t, SyncUnchanged, result)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.AttendanceStatusCancelled, rows[0].Status)
	assert.Equal(t, "first", rows[0].Notes)

	result, err = f.attendance.SyncForBooking(ctx, b.ID, model.BookingStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, SyncUpdated, result)

	rows = f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.AttendanceStatusVisited, rows[0].Status)
	assert.Equal(t, "first", rows[0].Notes)
	assert.NotNil(t, rows[0].ActualTime)
}

func TestSyncForBooking_SkipsAndMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	b := f.book(t, client, hall, f.at(10, 0, 60))

	result, err := f.attendance.SyncForBooking(ctx, b.ID, model.BookingStatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, result)
	assert.Empty(t, f.attendanceRows(t))

	result, err = f.attendance.SyncForBooking(ctx, uuid.New(), model.BookingStatusCancelled, "")
	assert.ErrorIs(t, err, model.ErrBookingNotFound)
	assert.Equal(t, SyncFailed, result)

	_, err = f.attendance.SyncForEnrollment(ctx, uuid.New(), model.EnrollmentStatusMissed, "")
	assert.ErrorIs(t, err, model.ErrEnrollmentNotFound)
}

func TestSyncForBooking_TruncatesNotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	b := f.book(t, client, hall, f.at(10, 0, 60))

	_, err := f.attendance.SyncForBooking(ctx, b.ID, model.BookingStatusCancelled, strings.Repeat("ж", 700))
	require.NoError(t, err)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.MaxAttendanceNotes, len([]rune(rows[0].Notes)))
}

// flakyAttendanceStore fails attendance inserts inside transactions while failing is set.
type flakyAttendanceStore struct {
	repository.Store
	failing *atomic.Bool
}

func (s flakyAttendanceStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, flakyAttendanceTx{Tx: tx, failing: s.failing})
	})
}

type flakyAttendanceTx struct {
	repository.Tx
	failing *atomic.Bool
}

func (t flakyAttendanceTx) Attendance() repository.AttendanceRepository {
	return flakyAttendanceRepo{AttendanceRepository: t.Tx.Attendance(), failing: t.failing}
}

type flakyAttendanceRepo struct {
	repository.AttendanceRepository
	failing *atomic.Bool
}

func (r flakyAttendanceRepo) Create(ctx context.Context, a *model.Attendance) error {
	if r.failing.Load() {
		return errors.New("disk full")
	}
	return r.AttendanceRepository.Create(ctx, a)
}

func newFlakyFixture(t *testing.T) (*fixture, *atomic.Bool) {
	failing := &atomic.Bool{}
	f := newFixtureWithStore(t, func(s repository.Store) repository.Store {
		return flakyAttendanceStore{Store: s, failing: failing}
	})
	return f, failing
}

func TestRetryPending_ProcessesFailedSync(t *testing.T) {
	ctx := context.Background()
	f, failing := newFlakyFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	b := f.book(t, client, hall, f.at(10, 0, 60))

	failing.Store(true)
	cancelled, err := f.bookings.Cancel(ctx, b.ID, client.ID, "sick")
	require.NoError(t, err, "sync failure must not fail the cancellation")
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)
	assert.Empty(t, f.attendanceRows(t))

	pending, err := f.store.SyncTasks().CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	failing.Store(false)
	processed, err := f.attendance.RetryPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.AttendanceStatusCancelled, rows[0].Status)

	pending, err = f.store.SyncTasks().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRetryPending_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f, failing := newFlakyFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	b := f.book(t, client, hall, f.at(10, 0, 60))

	failing.Store(true)
	_, err := f.bookings.Cancel(ctx, b.ID, client.ID, "")
	require.NoError(t, err)

	// attempt 1 happened right after commit; MaxSyncAttempts is 3
	for i := 0; i < 2; i++ {
		processed, err := f.attendance.RetryPending(ctx, 10)
		require.NoError(t, err)
		assert.Zero(t, processed)
	}

	failing.Store(false)
	processed, err := f.attendance.RetryPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, f.attendanceRows(t))

	tasks, err := f.store.SyncTasks().ListPending(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3, tasks[0].Attempts)
	assert.Contains(t, tasks[0].LastError, "disk full")
}

func TestProcessTask_UnknownSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := &model.SyncTask{ID: uuid.New(), Source: "INVOICE", EntityID: uuid.New(), NewStatus: "PAID"}
	require.NoError(t, f.store.SyncTasks().Enqueue(ctx, task))

	result, err := f.attendance.ProcessTask(ctx, task)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, SyncFailed, result)
}

func TestProcessTask_SkipsNonTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := &model.SyncTask{
		ID:        uuid.New(),
		Source:    model.SyncSourceBooking,
		EntityID:  uuid.New(),
		OldStatus: string(model.BookingStatusPending),
		NewStatus: string(model.BookingStatusConfirmed),
	}
	require.NoError(t, f.store.SyncTasks().Enqueue(ctx, task))

	result, err := f.attendance.ProcessTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, result)

	pending, err := f.store.SyncTasks().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestMigrateHistorical(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")
	trainer := f.addTrainer(t)

	// history written straight to storage, as it would predate attendance tracking
	past := testNow.AddDate(0, 0, -7)
	for i, status := range []model.BookingStatus{
		model.BookingStatusConfirmed,
		model.BookingStatusCancelled,
		model.BookingStatusCompleted,
	} {
		b := &model.Booking{
			ClientID: anna.ID,
			HallID:   hall.ID,
			Slot:     model.NewTimeSlot(past.Add(time.Duration(i)*2*time.Hour), 60),
			Purpose:  "practice",
			Status:   status,
		}
		require.NoError(t, f.store.Bookings().Create(ctx, b))
	}

	lesson := &model.Lesson{
		Type:            model.LessonTypeGroup,
		Name:            "Salsa",
		Slot:            model.NewTimeSlot(past.Add(10*time.Hour), 60),
		Difficulty:      model.DifficultyBeginner,
		MaxParticipants: 10,
		Price:           20,
		TrainerID:       trainer.ID,
		HallID:          hall.ID,
		Status:          model.LessonStatusCompleted,
	}
	require.NoError(t, f.store.Lessons().Create(ctx, lesson))
	require.NoError(t, f.store.Enrollments().Create(ctx, &model.Enrollment{ClientID: anna.ID, LessonID: lesson.ID, Status: model.EnrollmentStatusAttended}))
	require.NoError(t, f.store.Enrollments().Create(ctx, &model.Enrollment{ClientID: boris.ID, LessonID: lesson.ID, Status: model.EnrollmentStatusRegistered}))

	report, err := f.attendance.MigrateHistorical(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationSourceReport{Scanned: 3, Created: 2, Skipped: 1}, report.Bookings)
	assert.Equal(t, MigrationSourceReport{Scanned: 2, Created: 1, Skipped: 1}, report.Enrollments)
	assert.Zero(t, report.Failed())

	rows := f.attendanceRows(t)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, strings.HasPrefix(r.Notes, "[migrated]"), r.Notes)
	}

	report, err = f.attendance.MigrateHistorical(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationSourceReport{Scanned: 3, Existing: 2, Skipped: 1}, report.Bookings)
	assert.Equal(t, MigrationSourceReport{Scanned: 2, Existing: 1, Skipped: 1}, report.Enrollments)

	count, err := f.store.Attendance().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMigrateHistorical_KeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	b := f.book(t, client, hall, f.at(10, 0, 60))
	_, err := f.bookings.Cancel(ctx, b.ID, client.ID, "live sync")
	require.NoError(t, err)

	report, err := f.attendance.MigrateHistorical(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Bookings.Existing)
	assert.Zero(t, report.Bookings.Created)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "live sync", rows[0].Notes)
}

func TestSyncForEnrollment_StaleTaskAfterReEnroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)

	first, err := f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	require.NoError(t, err)
	_, err = f.enrollments.Cancel(ctx, first.ID, anna.ID)
	require.NoError(t, err)
	second, err := f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	require.NoError(t, err)

	f.now = lesson.Slot.End()
	_, err = f.enrollments.MarkAttendance(ctx, second.ID, true)
	require.NoError(t, err)

	// a late replay of the first enrollment's cancellation
	result, err := f.attendance.SyncForEnrollment(ctx, first.ID, model.EnrollmentStatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, result)

	task := &model.SyncTask{
		Source:    model.SyncSourceEnrollment,
		EntityID:  first.ID,
		OldStatus: string(model.EnrollmentStatusRegistered),
		NewStatus: string(model.EnrollmentStatusCancelled),
	}
	require.NoError(t, f.store.SyncTasks().Enqueue(ctx, task))
	result, err = f.attendance.ProcessTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, result)

	// status moved on since the task was written
	result, err = f.attendance.SyncForEnrollment(ctx, second.ID, model.EnrollmentStatusMissed, "")
	require.NoError(t, err)
	assert.Equal(t, SyncSkipped, result)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.AttendanceStatusVisited, rows[0].Status)
	assert.Equal(t, lesson.ID, rows[0].EntityID)

	pending, err := f.store.SyncTasks().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestMigrateHistorical_FollowsLatestEnrollment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	trainer := f.addTrainer(t)

	past := testNow.AddDate(0, 0, -3)
	lesson := &model.Lesson{
		Type:            model.LessonTypeGroup,
		Name:            "Tango",
		Slot:            model.NewTimeSlot(past, 60),
		Difficulty:      model.DifficultyIntermediate,
		MaxParticipants: 10,
		Price:           20,
		TrainerID:       trainer.ID,
		HallID:          hall.ID,
		Status:          model.LessonStatusCompleted,
	}
	require.NoError(t, f.store.Lessons().Create(ctx, lesson))

	// cancelled first, then enrolled again and attended
	cancelled := &model.Enrollment{ClientID: anna.ID, LessonID: lesson.ID, Status: model.EnrollmentStatusCancelled}
	require.NoError(t, f.store.Enrollments().Create(ctx, cancelled))
	attended := &model.Enrollment{ClientID: anna.ID, LessonID: lesson.ID, Status: model.EnrollmentStatusAttended}
	require.NoError(t, f.store.Enrollments().Create(ctx, attended))

	report, err := f.attendance.MigrateHistorical(ctx)
	require.NoError(t, err)
	assert.Equal(t, MigrationSourceReport{Scanned: 2, Created: 1, Skipped: 1}, report.Enrollments)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.AttendanceStatusVisited, rows[0].Status)
	assert.Equal(t, anna.ID, rows[0].ClientID)
}

func TestCalculateRevenue(t *testing.T) {
	svc := NewAttendanceService(nil, AttendancePolicy{PenaltyRate: 0.1}, nil, nil)

	tests := []struct {
		status model.AttendanceStatus
		amount float64
		want   float64
	}{
		{model.AttendanceStatusVisited, 100, 100},
		{model.AttendanceStatusCancelled, 100, -10},
		{model.AttendanceStatusCancelled, 33.33, -3.33},
		{model.AttendanceStatusNoShow, 100, 0},
		{model.AttendanceStatusScheduled, 100, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := svc.CalculateRevenue(&model.Attendance{Status: tt.status, AmountPaid: tt.amount})
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}

	custom := NewAttendanceService(nil, AttendancePolicy{PenaltyRate: 0.5}, nil, nil)
	assert.InDelta(t, -50, custom.CalculateRevenue(&model.Attendance{Status: model.AttendanceStatusCancelled, AmountPaid: 100}), 0.001)
}
