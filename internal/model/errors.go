package model

import (
	"errors"
	"fmt"
)

// Error kinds. Concrete errors wrap one of these so callers can branch with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrBusinessRule = errors.New("business rule violation")
	ErrConflict     = errors.New("time slot conflict")
	ErrNotFound     = errors.New("not found")
	ErrDataAccess   = errors.New("data access error")
)

var (
	ErrInvalidID       = fmt.Errorf("%w: malformed identifier", ErrValidation)
	ErrInvalidTimeSlot = fmt.Errorf("%w: time slot must have a start and a positive duration", ErrValidation)
	ErrSlotInPast      = fmt.Errorf("%w: time slot must start in the future", ErrValidation)
	ErrPurposeInvalid  = fmt.Errorf("%w: purpose must be 1..255 characters", ErrValidation)

	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid status transition", ErrBusinessRule)

	ErrClientNotFound     = fmt.Errorf("%w: client", ErrNotFound)
	ErrHallNotFound       = fmt.Errorf("%w: hall", ErrNotFound)
	ErrTrainerNotFound    = fmt.Errorf("%w: trainer", ErrNotFound)
	ErrBookingNotFound    = fmt.Errorf("%w: booking", ErrNotFound)
	ErrLessonNotFound     = fmt.Errorf("%w: lesson", ErrNotFound)
	ErrEnrollmentNotFound = fmt.Errorf("%w: enrollment", ErrNotFound)

	ErrClientInactive       = fmt.Errorf("%w: client is not active", ErrBusinessRule)
	ErrHallInactive         = fmt.Errorf("%w: hall is not active", ErrBusinessRule)
	ErrTrainerInactive      = fmt.Errorf("%w: trainer is not active", ErrBusinessRule)
	ErrBookingQuotaExceeded = fmt.Errorf("%w: active booking limit reached", ErrBusinessRule)
	ErrNotOwner             = fmt.Errorf("%w: entity belongs to another client", ErrBusinessRule)
	ErrLessonNotBookable    = fmt.Errorf("%w: lesson is not open for enrollment", ErrBusinessRule)
	ErrLessonFull           = fmt.Errorf("%w: lesson is full", ErrBusinessRule)
	ErrAlreadyEnrolled      = fmt.Errorf("%w: client is already registered for this lesson", ErrBusinessRule)

	ErrHallBusy = fmt.Errorf("%w: hall is occupied in the requested time slot", ErrConflict)
)

// DataAccess tags a storage failure so it is distinguishable from domain errors.
func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, errors.Join(ErrDataAccess, err))
}
