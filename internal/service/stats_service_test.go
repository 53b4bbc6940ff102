package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) addAttendance(t *testing.T, client *model.Client, typ model.AttendanceType, status model.AttendanceStatus, amount float64, at time.Time) {
	t.Helper()
	a := &model.Attendance{
		ClientID:        client.ID,
		EntityID:        uuid.New(),
		Type:            typ,
		Status:          status,
		ScheduledTime:   at,
		AmountPaid:      amount,
		DurationMinutes: 60,
	}
	require.NoError(t, f.store.Attendance().Create(context.Background(), a))
}

func TestStatsService_ClientStatsEmpty(t *testing.T) {
	f := newFixture(t)
	client := f.addClient(t, "anna")

	stats, err := f.stats.ClientStats(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AttendanceRate)
	assert.Zero(t, stats.Revenue)
}

func TestStatsService_ClientStats(t *testing.T) {
	f := newFixture(t)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")

	f.addAttendance(t, anna, model.AttendanceTypeBooking, model.AttendanceStatusVisited, 100, testNow)
	f.addAttendance(t, anna, model.AttendanceTypeBooking, model.AttendanceStatusCancelled, 50, testNow)
	f.addAttendance(t, anna, model.AttendanceTypeLesson, model.AttendanceStatusNoShow, 25, testNow)
	f.addAttendance(t, boris, model.AttendanceTypeLesson, model.AttendanceStatusVisited, 25, testNow)

	stats, err := f.stats.ClientStats(context.Background(), anna.ID)
	require.NoError(t, err)

	assert.Equal(t, anna.ID, stats.ClientID)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Visited)
	assert.Equal(t, 1, stats.Cancelled)
	assert.Equal(t, 1, stats.NoShow)
	assert.InDelta(t, 33.333, stats.AttendanceRate, 0.01)
	assert.InDelta(t, 95, stats.Revenue, 0.001)

	assert.Equal(t, StatusCounts{Visited: 1, Cancelled: 1}, stats.ByType[model.AttendanceTypeBooking])
	assert.Equal(t, StatusCounts{NoShow: 1}, stats.ByType[model.AttendanceTypeLesson])
}

func TestStatsService_StudioStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")

	march := time.Date(2030, time.March, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2030, time.April, 10, 12, 0, 0, 0, time.UTC)
	f.addAttendance(t, anna, model.AttendanceTypeBooking, model.AttendanceStatusVisited, 80, march)
	f.addAttendance(t, boris, model.AttendanceTypeLesson, model.AttendanceStatusVisited, 20, march)
	f.addAttendance(t, boris, model.AttendanceTypeLesson, model.AttendanceStatusVisited, 20, april)

	from := time.Date(2030, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2030, time.April, 1, 0, 0, 0, 0, time.UTC)
	stats, err := f.stats.StudioStats(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.UniqueClients)
	assert.InDelta(t, 100, stats.AttendanceRate, 0.001)
	assert.InDelta(t, 100, stats.Revenue, 0.001)

	all, err := f.stats.StudioStats(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.InDelta(t, 120, all.Revenue, 0.001)

	_, err = f.stats.StudioStats(ctx, to, from)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestStatsService_TopClients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	anna := f.addClient(t, "anna")
	boris := f.addClient(t, "boris")
	clara := f.addClient(t, "clara")
	dima := f.addClient(t, "dima")

	for i := 0; i < 3; i++ {
		f.addAttendance(t, clara, model.AttendanceTypeLesson, model.AttendanceStatusVisited, 20, testNow)
	}
	for i := 0; i < 2; i++ {
		f.addAttendance(t, boris, model.AttendanceTypeLesson, model.AttendanceStatusVisited, 20, testNow)
		f.addAttendance(t, anna, model.AttendanceTypeBooking, model.AttendanceStatusVisited, 40, testNow)
	}
	f.addAttendance(t, dima, model.AttendanceTypeBooking, model.AttendanceStatusCancelled, 40, testNow)

	top, err := f.stats.TopClients(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, ClientRanking{Rank: 1, ClientID: clara.ID, Name: "clara", Visits: 3}, top[0])
	assert.Equal(t, ClientRanking{Rank: 2, ClientID: anna.ID, Name: "anna", Visits: 2}, top[1])
	assert.Equal(t, ClientRanking{Rank: 3, ClientID: boris.ID, Name: "boris", Visits: 2}, top[2])

	top, err = f.stats.TopClients(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, clara.ID, top[0].ClientID)

	for _, n := range []int{0, -1} {
		_, err = f.stats.TopClients(ctx, n)
		assert.ErrorIs(t, err, model.ErrValidation)
	}
}

func TestStatsService_TopClientsEmpty(t *testing.T) {
	f := newFixture(t)

	top, err := f.stats.TopClients(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}
