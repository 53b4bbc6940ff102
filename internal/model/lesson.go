package model

import (
	"time"

	"github.com/google/uuid"
)

type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "SCHEDULED"
	LessonStatusCancelled LessonStatus = "CANCELLED"
	LessonStatusCompleted LessonStatus = "COMPLETED"
)

type LessonType string

const (
	LessonTypeGroup       LessonType = "GROUP"
	LessonTypeIndividual  LessonType = "INDIVIDUAL"
	LessonTypeMasterclass LessonType = "MASTERCLASS"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
)

type Lesson struct {
	ID                  uuid.UUID    `json:"id"`
	Type                LessonType   `json:"type"`
	Name                string       `json:"name"`
	Slot                TimeSlot     `json:"slot"`
	Difficulty          Difficulty   `json:"difficulty"`
	MaxParticipants     int          `json:"max_participants"`
	CurrentParticipants int          `json:"current_participants"`
	Price               float64      `json:"price"`
	TrainerID           uuid.UUID    `json:"trainer_id"`
	HallID              uuid.UUID    `json:"hall_id"`
	Status              LessonStatus `json:"status"`
	CreatedAt           time.Time    `json:"created_at"`
}

func (l *Lesson) IsFull() bool {
	return l.CurrentParticipants >= l.MaxParticipants
}

// IsBookable reports whether a client may still enroll at instant now.
func (l *Lesson) IsBookable(now time.Time) bool {
	return l.Status == LessonStatusScheduled && !l.IsFull() && l.Slot.StartsAfter(now)
}

// OccupiesHall is false for cancelled lessons, which free their hall.
func (l *Lesson) OccupiesHall() bool {
	return l.Status != LessonStatusCancelled
}
