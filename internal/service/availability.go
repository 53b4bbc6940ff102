package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hourly candidates offered by AvailableSlotsForDay: 09:00 through 21:00 local time.
const (
	firstCandidateHour = 9
	lastCandidateHour  = 21
	candidateMinutes   = 60
)

// Conflicts lists what already occupies a hall during a candidate slot.
type Conflicts struct {
	Bookings []*model.Booking
	Lessons  []*model.Lesson
}

func (c Conflicts) Empty() bool {
	return len(c.Bookings) == 0 && len(c.Lessons) == 0
}

// Err returns nil when the hall is free, a model.ErrHallBusy wrap otherwise.
func (c Conflicts) Err() error {
	if c.Empty() {
		return nil
	}
	return fmt.Errorf("%w: %d booking(s), %d lesson(s) overlap", model.ErrHallBusy, len(c.Bookings), len(c.Lessons))
}

type AvailabilityService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewAvailabilityService returns an AvailabilityService reading from store.
func NewAvailabilityService(store repository.Store, logger *zap.Logger) *AvailabilityService {
	return &AvailabilityService{
		store:  store,
		logger: logger,
	}
}

// ConflictsWithHall returns bookings and lessons of the hall overlapping candidate.
// excludeID drops one record from the result so an entity never conflicts with itself.
func (s *AvailabilityService) ConflictsWithHall(ctx context.Context, hallID uuid.UUID, candidate model.TimeSlot, excludeID *uuid.UUID) (Conflicts, error) {
	if err := candidate.Validate(); err != nil {
		return Conflicts{}, err
	}
	c, err := findConflicts(ctx, s.store, hallID, candidate, excludeID)
	if err != nil {
		return Conflicts{}, tagStorage("find conflicts", err)
	}
	return c, nil
}

// IsHallFree reports whether the hall exists and nothing overlaps candidate.
func (s *AvailabilityService) IsHallFree(ctx context.Context, hallID uuid.UUID, candidate model.TimeSlot) (bool, error) {
	if err := candidate.Validate(); err != nil {
		return false, err
	}

	exists, err := s.store.Halls().Exists(ctx, hallID)
	if err != nil {
		return false, tagStorage("check hall", err)
	}
	if !exists {
		return false, nil
	}

	c, err := findConflicts(ctx, s.store, hallID, candidate, nil)
	if err != nil {
		return false, tagStorage("find conflicts", err)
	}
	return c.Empty(), nil
}

// AvailableSlotsForDay returns the free hourly slots of the hall for the calendar day of day,
// in day's location, ordered by start.
func (s *AvailabilityService) AvailableSlotsForDay(ctx context.Context, hallID uuid.UUID, day time.Time) ([]model.TimeSlot, error) {
	exists, err := s.store.Halls().Exists(ctx, hallID)
	if err != nil {
		return nil, tagStorage("check hall", err)
	}
	if !exists {
		return nil, model.ErrHallNotFound
	}

	loc := day.Location()
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	busy, err := s.busySlots(ctx, hallID, dayStart, dayEnd)
	if err != nil {
		return nil, tagStorage("load hall schedule", err)
	}

	free := make([]model.TimeSlot, 0, lastCandidateHour-firstCandidateHour+1)
	for h := firstCandidateHour; h <= lastCandidateHour; h++ {
		candidate := model.NewTimeSlot(time.Date(y, m, d, h, 0, 0, 0, loc), candidateMinutes)
		if !overlapsAny(candidate, busy) {
			free = append(free, candidate)
		}
	}

	sort.Slice(free, func(i, j int) bool { return free[i].Start.Before(free[j].Start) })

	s.logger.Debug("Computed hall availability",
		zap.String("hall_id", hallID.String()),
		zap.String("day", dayStart.Format(time.DateOnly)),
		zap.Int("busy", len(busy)),
		zap.Int("free", len(free)),
	)

	return free, nil
}

func (s *AvailabilityService) busySlots(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]model.TimeSlot, error) {
	bookings, err := s.store.Bookings().ListByHallID(ctx, hallID, from, to)
	if err != nil {
		return nil, err
	}
	lessons, err := s.store.Lessons().ListByHallID(ctx, hallID, from, to)
	if err != nil {
		return nil, err
	}

	busy := make([]model.TimeSlot, 0, len(bookings)+len(lessons))
	for _, b := range bookings {
		if b.Status != model.BookingStatusCancelled {
			busy = append(busy, b.Slot)
		}
	}
	for _, l := range lessons {
		if l.OccupiesHall() {
			busy = append(busy, l.Slot)
		}
	}
	return busy, nil
}

// findConflicts runs against any repository set, so it also works inside a transaction.
func findConflicts(ctx context.Context, repos repository.Repositories, hallID uuid.UUID, candidate model.TimeSlot, excludeID *uuid.UUID) (Conflicts, error) {
	bookings, err := repos.Bookings().FindConflicting(ctx, hallID, candidate)
	if err != nil {
		return Conflicts{}, fmt.Errorf("find conflicting bookings: %w", err)
	}
	lessons, err := repos.Lessons().FindConflicting(ctx, hallID, candidate)
	if err != nil {
		return Conflicts{}, fmt.Errorf("find conflicting lessons: %w", err)
	}

	var c Conflicts
	for _, b := range bookings {
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		c.Bookings = append(c.Bookings, b)
	}
	for _, l := range lessons {
		if excludeID != nil && l.ID == *excludeID {
			continue
		}
		c.Lessons = append(c.Lessons, l)
	}
	return c, nil
}

func overlapsAny(candidate model.TimeSlot, busy []model.TimeSlot) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
