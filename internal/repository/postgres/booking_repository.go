package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	q querier
}

const bookingColumns = `id, client_id, hall_id, start_time, duration_minutes, purpose, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.ClientID,
		&b.HallID,
		&b.Slot.Start,
		&b.Slot.DurationMinutes,
		&b.Purpose,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Slot.Start = b.Slot.Start.UTC()
	return &b, nil
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// Create inserts a booking. end_time is stored for the exclusion constraint.
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = model.NewID()
	}
	booking.Slot = booking.Slot.UTC()

	query := `
		INSERT INTO bookings (id, client_id, hall_id, start_time, end_time, duration_minutes, purpose, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx, query,
		booking.ID,
		booking.ClientID,
		booking.HallID,
		booking.Slot.Start,
		booking.Slot.End(),
		booking.Slot.DurationMinutes,
		booking.Purpose,
		booking.Status,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return translate("create booking", err)
	}

	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return b, nil
}

func (r *BookingRepository) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE client_id = $1
		ORDER BY start_time
	`
	return r.list(ctx, "get bookings by client", query, clientID)
}

// ListByHallID returns bookings of any status overlapping [from, to).
func (r *BookingRepository) ListByHallID(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE hall_id = $1
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`
	return r.list(ctx, "get bookings by hall", query, hallID, from.UTC(), to.UTC())
}

func (r *BookingRepository) FindConflicting(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE hall_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`
	return r.list(ctx, "find conflicting bookings", query, hallID, slot.Start.UTC(), slot.End().UTC())
}

func (r *BookingRepository) CountByClientAndStatus(ctx context.Context, clientID uuid.UUID, statuses []model.BookingStatus) (int, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE client_id = $1 AND status = ANY($2)
	`

	var n int
	if err := r.q.QueryRow(ctx, query, clientID, names).Scan(&n); err != nil {
		return 0, fmt.Errorf("count client bookings: %w", err)
	}
	return n, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE id = $2
	`
	return execAffected(ctx, r.q, "update booking status", model.ErrBookingNotFound, query, status, id)
}

func (r *BookingRepository) ListAll(ctx context.Context) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY start_time, id`
	return r.list(ctx, "list bookings", query)
}
