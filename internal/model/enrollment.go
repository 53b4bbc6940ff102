package model

import (
	"time"

	"github.com/google/uuid"
)

type EnrollmentStatus string

const (
	EnrollmentStatusRegistered EnrollmentStatus = "REGISTERED"
	EnrollmentStatusCancelled  EnrollmentStatus = "CANCELLED"
	EnrollmentStatusAttended   EnrollmentStatus = "ATTENDED"
	EnrollmentStatusMissed     EnrollmentStatus = "MISSED"
)

func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCancelled || s == EnrollmentStatusAttended || s == EnrollmentStatusMissed
}

type Enrollment struct {
	ID             uuid.UUID        `json:"id"`
	ClientID       uuid.UUID        `json:"client_id"`
	LessonID       uuid.UUID        `json:"lesson_id"`
	Status         EnrollmentStatus `json:"status"`
	EnrollmentDate time.Time        `json:"enrollment_date"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CanTransitionTo allows leaving REGISTERED exactly once.
func (e *Enrollment) CanTransitionTo(next EnrollmentStatus) bool {
	return e.Status == EnrollmentStatusRegistered && next.IsTerminal()
}
