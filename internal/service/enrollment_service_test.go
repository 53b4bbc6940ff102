package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentService_Enroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)

	e, err := f.enrollments.Enroll(ctx, client.ID, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusRegistered, e.Status)

	got, err := f.lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentParticipants)

	_, err = f.enrollments.Enroll(ctx, client.ID, lesson.ID)
	assert.ErrorIs(t, err, model.ErrAlreadyEnrolled)

	got, err = f.lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentParticipants)
}

func TestEnrollmentService_EnrollFullLesson(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 1)

	_, err := f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	require.NoError(t, err)

	_, err = f.enrollments.Enroll(ctx, boris.ID, lesson.ID)
	assert.ErrorIs(t, err, model.ErrLessonFull)
	assert.ErrorIs(t, err, model.ErrBusinessRule)

	got, err := f.lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentParticipants)

	list, err := f.enrollments.ListClientEnrollments(ctx, boris.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEnrollmentService_EnrollNotBookable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	started := f.scheduleLesson(t, hall, f.at(10, 0, 60), 10)
	cancelled := f.scheduleLesson(t, hall, f.at(12, 0, 60), 10)

	_, err := f.lessons.Cancel(ctx, cancelled.ID, "trainer ill")
	require.NoError(t, err)

	_, err = f.enrollments.Enroll(ctx, client.ID, cancelled.ID)
	assert.ErrorIs(t, err, model.ErrLessonNotBookable)

	f.now = started.Slot.Start
	_, err = f.enrollments.Enroll(ctx, client.ID, started.ID)
	assert.ErrorIs(t, err, model.ErrLessonNotBookable)

	_, err = f.enrollments.Enroll(ctx, client.ID, uuid.New())
	assert.ErrorIs(t, err, model.ErrLessonNotFound)

	_, err = f.enrollments.Enroll(ctx, uuid.New(), started.ID)
	assert.ErrorIs(t, err, model.ErrClientNotFound)
}

// seatFailingStore breaks the participant counter inside transactions.
type seatFailingStore struct {
	repository.Store
}

func (s seatFailingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, seatFailingTx{tx})
	})
}

type seatFailingTx struct {
	repository.Tx
}

func (t seatFailingTx) Lessons() repository.LessonRepository {
	return seatFailingLessons{t.Tx.Lessons()}
}

type seatFailingLessons struct {
	repository.LessonRepository
}

func (seatFailingLessons) AdjustParticipants(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	return false, errors.New("connection reset by peer")
}

func TestEnrollmentService_EnrollRollsBackOnSeatFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithStore(t, func(s repository.Store) repository.Store { return seatFailingStore{s} })
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)

	_, err := f.enrollments.Enroll(ctx, client.ID, lesson.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDataAccess)

	list, err := f.enrollments.ListLessonEnrollments(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := f.lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentParticipants)
}

func TestEnrollmentService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)
	e, err := f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	require.NoError(t, err)

	_, err = f.enrollments.Cancel(ctx, e.ID, boris.ID)
	assert.ErrorIs(t, err, model.ErrNotOwner)

	cancelled, err := f.enrollments.Cancel(ctx, e.ID, anna.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusCancelled, cancelled.Status)

	got, err := f.lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentParticipants)

	_, err = f.enrollments.Cancel(ctx, e.ID, anna.ID)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, model.AttendanceTypeLesson, rows[0].Type)
	assert.Equal(t, model.AttendanceStatusCancelled, rows[0].Status)
	assert.Equal(t, lesson.ID, rows[0].EntityID)
	assert.Equal(t, 25.0, rows[0].AmountPaid)

	// a cancelled enrollment does not block a new one
	_, err = f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	assert.NoError(t, err)
}

func TestEnrollmentService_MarkAttendance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)
	ea, err := f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	require.NoError(t, err)
	eb, err := f.enrollments.Enroll(ctx, boris.ID, lesson.ID)
	require.NoError(t, err)

	f.now = lesson.Slot.End()

	attended, err := f.enrollments.MarkAttendance(ctx, ea.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusAttended, attended.Status)

	missed, err := f.enrollments.MarkAttendance(ctx, eb.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusMissed, missed.Status)

	_, err = f.enrollments.MarkAttendance(ctx, ea.ID, false)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	rows := f.attendanceRows(t)
	require.Len(t, rows, 2)
	byClient := map[uuid.UUID]*model.Attendance{}
	for _, r := range rows {
		byClient[r.ClientID] = r
	}
	assert.Equal(t, model.AttendanceStatusVisited, byClient[anna.ID].Status)
	require.NotNil(t, byClient[anna.ID].ActualTime)
	assert.Equal(t, model.AttendanceStatusNoShow, byClient[boris.ID].Status)

	// replaying the sync is a no-op
	result, err := f.attendance.SyncForEnrollment(ctx, ea.ID, model.EnrollmentStatusAttended, "")
	require.NoError(t, err)
	assert.Equal(t, SyncUnchanged, result)
	assert.Len(t, f.attendanceRows(t), 2)

	got, err := f.lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentParticipants)
}

func TestLessonService_Schedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	client := f.addClient(t, "anna")
	trainer := f.addTrainer(t)
	f.book(t, client, hall, f.at(10, 0, 60))

	valid := func() ScheduleLessonRequest {
		return ScheduleLessonRequest{
			Type:            model.LessonTypeMasterclass,
			Name:            "Tango nuevo",
			Slot:            f.at(12, 0, 90),
			Difficulty:      model.DifficultyAdvanced,
			MaxParticipants: 12,
			Price:           30,
			TrainerID:       trainer.ID,
			HallID:          hall.ID,
		}
	}

	l, err := f.lessons.Schedule(ctx, valid())
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusScheduled, l.Status)
	assert.Zero(t, l.CurrentParticipants)

	tests := []struct {
		name    string
		mutate  func(r *ScheduleLessonRequest)
		wantErr error
	}{
		{"overlaps booking", func(r *ScheduleLessonRequest) { r.Slot = f.at(10, 30, 60) }, model.ErrConflict},
		{"overlaps lesson", func(r *ScheduleLessonRequest) { r.Slot = f.at(13, 0, 60) }, model.ErrConflict},
		{"unknown type", func(r *ScheduleLessonRequest) { r.Type = "DUET"; r.Slot = f.at(16, 0, 60) }, model.ErrValidation},
		{"no seats", func(r *ScheduleLessonRequest) { r.MaxParticipants = 0; r.Slot = f.at(16, 0, 60) }, model.ErrValidation},
		{"blank name", func(r *ScheduleLessonRequest) { r.Name = " "; r.Slot = f.at(16, 0, 60) }, model.ErrValidation},
		{"past", func(r *ScheduleLessonRequest) { r.Slot.Start = testNow.Add(-time.Hour) }, model.ErrSlotInPast},
		{"unknown trainer", func(r *ScheduleLessonRequest) { r.TrainerID = uuid.New(); r.Slot = f.at(16, 0, 60) }, model.ErrTrainerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			_, err := f.lessons.Schedule(ctx, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLessonService_CancelCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)
	_, err := f.enrollments.Enroll(ctx, anna.ID, lesson.ID)
	require.NoError(t, err)
	_, err = f.enrollments.Enroll(ctx, boris.ID, lesson.ID)
	require.NoError(t, err)

	cancelled, err := f.lessons.Cancel(ctx, lesson.ID, "flooded")
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusCancelled, cancelled.Status)
	assert.Zero(t, cancelled.CurrentParticipants)

	list, err := f.enrollments.ListLessonEnrollments(ctx, lesson.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, e := range list {
		assert.Equal(t, model.EnrollmentStatusCancelled, e.Status)
	}

	rows := f.attendanceRows(t)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, model.AttendanceStatusCancelled, r.Status)
		assert.Contains(t, r.Notes, "flooded")
	}

	// the hall is free again
	free, err := f.availability.IsHallFree(ctx, hall.ID, lesson.Slot)
	require.NoError(t, err)
	assert.True(t, free)

	_, err = f.lessons.Cancel(ctx, lesson.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
	_, err = f.lessons.Complete(ctx, lesson.ID)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
}

func TestLessonService_Complete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hall := f.addHall(t, 40)
	lesson := f.scheduleLesson(t, hall, f.at(18, 0, 60), 10)

	done, err := f.lessons.Complete(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LessonStatusCompleted, done.Status)

	_, err = f.lessons.Complete(ctx, uuid.New())
	assert.ErrorIs(t, err, model.ErrLessonNotFound)
}
