package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/go-playground/validator/v10"
)

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRequest runs struct tags and turns failures into a ValidationError naming field/tag pairs.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s(%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(parts, ", "))
}

// validateFutureSlot checks shape first, then that the slot starts strictly after now.
func validateFutureSlot(slot model.TimeSlot, now time.Time) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	if !slot.StartsAfter(now) {
		return fmt.Errorf("%w: starts at %s", model.ErrSlotInPast, slot.Start.Format(time.RFC3339))
	}
	return nil
}

// tagStorage leaves domain errors untouched and marks everything else as a data access failure.
func tagStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		model.ErrValidation,
		model.ErrBusinessRule,
		model.ErrConflict,
		model.ErrNotFound,
		model.ErrDataAccess,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return model.DataAccess(op, err)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
