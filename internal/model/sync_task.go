package model

import (
	"time"

	"github.com/google/uuid"
)

type SyncSource string

const (
	SyncSourceBooking    SyncSource = "BOOKING"
	SyncSourceEnrollment SyncSource = "ENROLLMENT"
)

// SyncTask is an outbox entry asking for attendance to follow a terminal transition.
// It is written in the same transaction as the transition.
type SyncTask struct {
	ID          uuid.UUID  `json:"id"`
	Source      SyncSource `json:"source"`
	EntityID    uuid.UUID  `json:"entity_id"`
	OldStatus   string     `json:"old_status"`
	NewStatus   string     `json:"new_status"`
	Notes       string     `json:"notes"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func (t *SyncTask) Done() bool {
	return t.ProcessedAt != nil
}
