package model

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Hall struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Capacity     int       `json:"capacity"`
	PricePerHour float64   `json:"price_per_hour"`
	IsActive     bool      `json:"is_active"`
}

// PriceFor returns what renting the hall for the slot costs, rounded to cents.
func (h *Hall) PriceFor(slot TimeSlot) float64 {
	return RoundMoney(h.PricePerHour * slot.Duration().Hours())
}

type Trainer struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	IsActive       bool      `json:"is_active"`
}
