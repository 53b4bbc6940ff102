package model

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceType string

const (
	AttendanceTypeBooking AttendanceType = "BOOKING"
	AttendanceTypeLesson  AttendanceType = "LESSON"
)

type AttendanceStatus string

const (
	AttendanceStatusScheduled AttendanceStatus = "SCHEDULED"
	AttendanceStatusVisited   AttendanceStatus = "VISITED"
	AttendanceStatusCancelled AttendanceStatus = "CANCELLED"
	AttendanceStatusNoShow    AttendanceStatus = "NO_SHOW"
)

const MaxAttendanceNotes = 500

// Attendance is what really happened to a booking or an enrollment.
// EntityID is the booking ID for BOOKING rows and the lesson ID for LESSON rows.
type Attendance struct {
	ID              uuid.UUID        `json:"id"`
	ClientID        uuid.UUID        `json:"client_id"`
	EntityID        uuid.UUID        `json:"entity_id"`
	Type            AttendanceType   `json:"type"`
	Status          AttendanceStatus `json:"status"`
	ScheduledTime   time.Time        `json:"scheduled_time"`
	ActualTime      *time.Time       `json:"actual_time,omitempty"`
	Notes           string           `json:"notes"`
	AmountPaid      float64          `json:"amount_paid"`
	DurationMinutes int              `json:"duration_minutes"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TerminalStatus is implemented by source statuses that can end a lifecycle.
type TerminalStatus interface {
	~string
	IsTerminal() bool
}

// BookingAttendanceStatus maps a terminal booking status. ok is false for active statuses.
func BookingAttendanceStatus(s BookingStatus) (AttendanceStatus, bool) {
	switch s {
	case BookingStatusCompleted:
		return AttendanceStatusVisited, true
	case BookingStatusCancelled:
		return AttendanceStatusCancelled, true
	default:
		return "", false
	}
}

// EnrollmentAttendanceStatus maps a terminal enrollment status. ok is false for REGISTERED.
func EnrollmentAttendanceStatus(s EnrollmentStatus) (AttendanceStatus, bool) {
	switch s {
	case EnrollmentStatusAttended:
		return AttendanceStatusVisited, true
	case EnrollmentStatusCancelled:
		return AttendanceStatusCancelled, true
	case EnrollmentStatusMissed:
		return AttendanceStatusNoShow, true
	default:
		return "", false
	}
}
