package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/Freeeeeet/dance_studio/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Tests run on the day after testNow; slots are built with at(hour, minute).
var testNow = time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)

type fixture struct {
	now   time.Time
	store repository.Store

	availability *AvailabilityService
	attendance   *AttendanceService
	bookings     *BookingService
	lessons      *LessonService
	enrollments  *EnrollmentService
	stats        *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore wires the services on top of wrap(memory store) when wrap is given.
func newFixtureWithStore(t *testing.T, wrap func(repository.Store) repository.Store) *fixture {
	t.Helper()

	f := &fixture{now: testNow}
	clock := Clock(func() time.Time { return f.now })

	var store repository.Store = memory.NewStore(memory.WithClock(clock))
	if wrap != nil {
		store = wrap(store)
	}
	f.store = store

	logger := zap.NewNop()
	f.availability = NewAvailabilityService(store, logger)
	f.attendance = NewAttendanceService(store, AttendancePolicy{PenaltyRate: 0.1, MaxSyncAttempts: 3}, clock, logger)
	f.bookings = NewBookingService(store, f.availability, f.attendance, BookingPolicy{MaxActiveBookings: 3}, clock, logger)
	f.lessons = NewLessonService(store, f.attendance, clock, logger)
	f.enrollments = NewEnrollmentService(store, f.attendance, clock, logger)
	f.stats = NewStatsService(store, f.attendance, logger)
	return f
}

func (f *fixture) at(hour, minute, durationMinutes int) model.TimeSlot {
	day := testNow.AddDate(0, 0, 1)
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
	return model.NewTimeSlot(start, durationMinutes)
}

func (f *fixture) addClient(t *testing.T, name string) *model.Client {
	t.Helper()
	c := &model.Client{Name: name, Email: name + "@example.com", IsActive: true}
	require.NoError(t, f.store.Clients().Create(context.Background(), c))
	return c
}

func (f *fixture) addHall(t *testing.T, pricePerHour float64) *model.Hall {
	t.Helper()
	h := &model.Hall{Name: "Hall", Capacity: 20, PricePerHour: pricePerHour, IsActive: true}
	require.NoError(t, f.store.Halls().Create(context.Background(), h))
	return h
}

func (f *fixture) addTrainer(t *testing.T) *model.Trainer {
	t.Helper()
	tr := &model.Trainer{Name: "Trainer", Specialization: "salsa", IsActive: true}
	require.NoError(t, f.store.Trainers().Create(context.Background(), tr))
	return tr
}

func (f *fixture) book(t *testing.T, client *model.Client, hall *model.Hall, slot model.TimeSlot) *model.Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), CreateBookingRequest{
		ClientID: client.ID,
		HallID:   hall.ID,
		Slot:     slot,
		Purpose:  "rehearsal",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) scheduleLesson(t *testing.T, hall *model.Hall, slot model.TimeSlot, maxParticipants int) *model.Lesson {
	t.Helper()
	trainer := f.addTrainer(t)
	l, err := f.lessons.Schedule(context.Background(), ScheduleLessonRequest{
		Type:            model.LessonTypeGroup,
		Name:            "Bachata basics",
		Slot:            slot,
		Difficulty:      model.DifficultyBeginner,
		MaxParticipants: maxParticipants,
		Price:           25,
		TrainerID:       trainer.ID,
		HallID:          hall.ID,
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) attendanceRows(t *testing.T) []*model.Attendance {
	t.Helper()
	rows, err := f.store.Attendance().List(context.Background(), repository.AttendanceFilter{})
	require.NoError(t, err)
	return rows
}
