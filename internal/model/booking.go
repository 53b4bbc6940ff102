package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	// BookingStatusPending is never persisted by Create today, bookings are auto-confirmed.
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// ActiveBookingStatuses count against the client quota.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

func (s BookingStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

type Booking struct {
	ID        uuid.UUID     `json:"id"`
	ClientID  uuid.UUID     `json:"client_id"`
	HallID    uuid.UUID     `json:"hall_id"`
	Slot      TimeSlot      `json:"slot"`
	Purpose   string        `json:"purpose"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CanTransitionTo encodes PENDING -> CONFIRMED -> {CANCELLED, COMPLETED}.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	switch b.Status {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCancelled || next == BookingStatusCompleted
	default:
		return false
	}
}
