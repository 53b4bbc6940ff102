package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

type bookingRepo struct{ h *handle }

func (r *bookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	return r.h.do(func(d *dataset) error {
		if booking.ID == uuid.Nil {
			booking.ID = model.NewID()
		}
		// mirrors the postgres exclusion constraint
		if booking.Status != model.BookingStatusCancelled {
			for _, b := range d.bookings {
				if b.HallID == booking.HallID && b.Status != model.BookingStatusCancelled && b.Slot.Overlaps(booking.Slot) {
					return fmt.Errorf("create booking: %w", model.ErrHallBusy)
				}
			}
		}
		now := r.h.now()
		if booking.CreatedAt.IsZero() {
			booking.CreatedAt = now
		}
		booking.UpdatedAt = now
		booking.Slot = booking.Slot.UTC()
		d.bookings[booking.ID] = *booking
		return nil
	})
}

func (r *bookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var out *model.Booking
	err := r.h.do(func(d *dataset) error {
		if b, ok := d.bookings[id]; ok {
			out = &b
		}
		return nil
	})
	return out, err
}

func (r *bookingRepo) collect(match func(b model.Booking) bool) ([]*model.Booking, error) {
	var out []*model.Booking
	err := r.h.do(func(d *dataset) error {
		for _, b := range d.bookings {
			if match(b) {
				out = append(out, &b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot.Start.Equal(out[j].Slot.Start) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Slot.Start.Before(out[j].Slot.Start)
	})
	return out, err
}

func (r *bookingRepo) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Booking, error) {
	return r.collect(func(b model.Booking) bool { return b.ClientID == clientID })
}

func (r *bookingRepo) ListByHallID(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]*model.Booking, error) {
	return r.collect(func(b model.Booking) bool {
		return b.HallID == hallID && b.Slot.Start.Before(to) && b.Slot.End().After(from)
	})
}

func (r *bookingRepo) FindConflicting(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) ([]*model.Booking, error) {
	return r.collect(func(b model.Booking) bool {
		return b.HallID == hallID && b.Status != model.BookingStatusCancelled && b.Slot.Overlaps(slot)
	})
}

func (r *bookingRepo) CountByClientAndStatus(ctx context.Context, clientID uuid.UUID, statuses []model.BookingStatus) (int, error) {
	var n int
	err := r.h.do(func(d *dataset) error {
		for _, b := range d.bookings {
			if b.ClientID == clientID && slices.Contains(statuses, b.Status) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	return r.h.do(func(d *dataset) error {
		b, ok := d.bookings[id]
		if !ok {
			return fmt.Errorf("update booking status: %w", model.ErrBookingNotFound)
		}
		b.Status = status
		b.UpdatedAt = r.h.now()
		d.bookings[id] = b
		return nil
	})
}

func (r *bookingRepo) ListAll(ctx context.Context) ([]*model.Booking, error) {
	return r.collect(func(model.Booking) bool { return true })
}
