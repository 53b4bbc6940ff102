package model

import (
	"fmt"
	"time"
)

// TimeSlot is a half-open interval [Start, Start+Duration).
type TimeSlot struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

// NewTimeSlot builds a slot of durationMinutes starting at start.
func NewTimeSlot(start time.Time, durationMinutes int) TimeSlot {
	return TimeSlot{Start: start, DurationMinutes: durationMinutes}
}

// NewTimeSlotBetween builds a slot from two instants. The gap must be a whole number of minutes.
func NewTimeSlotBetween(start, end time.Time) (TimeSlot, error) {
	d := end.Sub(start)
	if d <= 0 || d%time.Minute != 0 {
		return TimeSlot{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidTimeSlot, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeSlot{Start: start, DurationMinutes: int(d / time.Minute)}, nil
}

func (s TimeSlot) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s TimeSlot) End() time.Time {
	return s.Start.Add(s.Duration())
}

// Validate rejects a zero start and non-positive durations.
func (s TimeSlot) Validate() error {
	if s.Start.IsZero() || s.DurationMinutes <= 0 {
		return ErrInvalidTimeSlot
	}
	return nil
}

// Overlaps reports whether two slots share any instant. Back-to-back slots do not overlap.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End()) && other.Start.Before(s.End())
}

// StartsAfter reports whether the slot begins strictly after t.
func (s TimeSlot) StartsAfter(t time.Time) bool {
	return s.Start.After(t)
}

// UTC returns the slot with its start normalized to UTC.
func (s TimeSlot) UTC() TimeSlot {
	return TimeSlot{Start: s.Start.UTC(), DurationMinutes: s.DurationMinutes}
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("[%s, %s)", s.Start.Format(time.RFC3339), s.End().Format(time.RFC3339))
}
