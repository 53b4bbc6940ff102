package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Freeeeeet/dance_studio/internal/metrics"
	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingPolicy struct {
	MaxActiveBookings int
}

type CreateBookingRequest struct {
	ClientID uuid.UUID      `validate:"required"`
	HallID   uuid.UUID      `validate:"required"`
	Slot     model.TimeSlot `validate:"-"`
	Purpose  string         `validate:"required,max=255"`
}

type BookingService struct {
	store        repository.Store
	availability *AvailabilityService
	attendance   *AttendanceService
	policy       BookingPolicy
	clock        Clock
	logger       *zap.Logger
}

// NewBookingService returns a BookingService enforcing policy.
func NewBookingService(
	store repository.Store,
	availability *AvailabilityService,
	attendance *AttendanceService,
	policy BookingPolicy,
	clock Clock,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		store:        store,
		availability: availability,
		attendance:   attendance,
		policy:       policy,
		clock:        clock,
		logger:       logger,
	}
}

// Create books a hall for a client. Bookings are confirmed right away.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	req.Purpose = strings.TrimSpace(req.Purpose)
	if err := validateRequest(req); err != nil {
		if req.Purpose == "" || utf8.RuneCountInString(req.Purpose) > 255 {
			return nil, fmt.Errorf("%w (%v)", model.ErrPurposeInvalid, err)
		}
		return nil, err
	}
	if err := validateFutureSlot(req.Slot, s.clock.now()); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		ID:       model.NewID(),
		ClientID: req.ClientID,
		HallID:   req.HallID,
		Slot:     req.Slot.UTC(),
		Purpose:  req.Purpose,
		Status:   model.BookingStatusConfirmed,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireActiveClient(ctx, tx, req.ClientID); err != nil {
			return err
		}
		if err := requireActiveHall(ctx, tx, req.HallID); err != nil {
			return err
		}

		// Client lock first, then hall: the same order everywhere.
		if err := tx.LockClient(ctx, req.ClientID); err != nil {
			return err
		}
		if err := tx.LockHall(ctx, req.HallID); err != nil {
			return err
		}

		active, err := tx.Bookings().CountByClientAndStatus(ctx, req.ClientID, model.ActiveBookingStatuses)
		if err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}
		if active >= s.policy.MaxActiveBookings {
			return fmt.Errorf("%w: %d of %d", model.ErrBookingQuotaExceeded, active, s.policy.MaxActiveBookings)
		}

		conflicts, err := findConflicts(ctx, tx, req.HallID, booking.Slot, nil)
		if err != nil {
			return err
		}
		if err := conflicts.Err(); err != nil {
			return err
		}

		if err := tx.Bookings().Create(ctx, booking); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			metrics.RecordHallConflict("booking")
			s.logger.Info("Booking rejected, hall busy",
				zap.String("hall_id", req.HallID.String()),
				zap.String("slot", req.Slot.String()),
			)
		}
		return nil, tagStorage("create booking", err)
	}

	metrics.RecordBooking(string(booking.Status))
	s.logger.Info("Hall booked",
		zap.String("booking_id", booking.ID.String()),
		zap.String("client_id", booking.ClientID.String()),
		zap.String("hall_id", booking.HallID.String()),
		zap.String("slot", booking.Slot.String()),
	)

	return booking, nil
}

// Cancel cancels an active booking on behalf of its owner.
func (s *BookingService) Cancel(ctx context.Context, bookingID, requestingClientID uuid.UUID, reason string) (*model.Booking, error) {
	booking, task, err := s.transition(ctx, bookingID, model.BookingStatusCancelled, reason, func(b *model.Booking) error {
		if b.ClientID != requestingClientID {
			return model.ErrNotOwner
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.String("client_id", requestingClientID.String()),
		zap.String("reason", reason),
	)

	s.attendance.processAfterCommit(ctx, task)
	return booking, nil
}

// Complete marks a confirmed booking as held.
func (s *BookingService) Complete(ctx context.Context, bookingID uuid.UUID, notes string) (*model.Booking, error) {
	booking, task, err := s.transition(ctx, bookingID, model.BookingStatusCompleted, notes, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Booking completed", zap.String("booking_id", booking.ID.String()))

	s.attendance.processAfterCommit(ctx, task)
	return booking, nil
}

// transition moves a booking to next and enqueues the attendance sync in the same transaction.
func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, next model.BookingStatus, notes string, check func(b *model.Booking) error) (*model.Booking, []*model.SyncTask, error) {
	var (
		booking *model.Booking
		tasks   []*model.SyncTask
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.Bookings().GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking: %w", err)
		}
		if b == nil {
			return model.ErrBookingNotFound
		}
		if check != nil {
			if err := check(b); err != nil {
				return err
			}
		}
		if !b.CanTransitionTo(next) {
			return fmt.Errorf("%w: booking %s -> %s", model.ErrInvalidStatusTransition, b.Status, next)
		}

		old := b.Status
		if err := tx.Bookings().UpdateStatus(ctx, b.ID, next); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		b.Status = next

		if ShouldCreateAttendance(old, next) {
			task := &model.SyncTask{
				ID:        model.NewID(),
				Source:    model.SyncSourceBooking,
				EntityID:  b.ID,
				OldStatus: string(old),
				NewStatus: string(next),
				Notes:     truncateRunes(notes, model.MaxAttendanceNotes),
			}
			if err := tx.SyncTasks().Enqueue(ctx, task); err != nil {
				return fmt.Errorf("enqueue attendance sync: %w", err)
			}
			tasks = append(tasks, task)
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, nil, tagStorage("update booking", err)
	}

	metrics.RecordBooking(string(next))
	return booking, tasks, nil
}

// IsTimeSlotAvailable is a yes/no view of the availability engine. Errors read as "not available".
func (s *BookingService) IsTimeSlotAvailable(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) bool {
	free, err := s.availability.IsHallFree(ctx, hallID, slot)
	if err != nil {
		s.logger.Warn("Availability check failed",
			zap.String("hall_id", hallID.String()),
			zap.String("slot", slot.String()),
			zap.Error(err),
		)
		return false
	}
	return free
}

// ClientActiveBookingsCount counts PENDING and CONFIRMED bookings of the client.
func (s *BookingService) ClientActiveBookingsCount(ctx context.Context, clientID uuid.UUID) (int, error) {
	n, err := s.store.Bookings().CountByClientAndStatus(ctx, clientID, model.ActiveBookingStatuses)
	if err != nil {
		return 0, tagStorage("count active bookings", err)
	}
	return n, nil
}

// GetByID returns model.ErrBookingNotFound for unknown ids.
func (s *BookingService) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := s.store.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, tagStorage("get booking", err)
	}
	if b == nil {
		return nil, model.ErrBookingNotFound
	}
	return b, nil
}

// ListClientBookings returns every booking of the client in any status.
func (s *BookingService) ListClientBookings(ctx context.Context, clientID uuid.UUID) ([]*model.Booking, error) {
	bookings, err := s.store.Bookings().ListByClientID(ctx, clientID)
	if err != nil {
		return nil, tagStorage("list client bookings", err)
	}
	return bookings, nil
}

func requireActiveClient(ctx context.Context, repos repository.Repositories, id uuid.UUID) error {
	client, err := repos.Clients().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return model.ErrClientNotFound
	}
	if !client.IsActive {
		return model.ErrClientInactive
	}
	return nil
}

func requireActiveHall(ctx context.Context, repos repository.Repositories, id uuid.UUID) error {
	hall, err := repos.Halls().GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get hall: %w", err)
	}
	if hall == nil {
		return model.ErrHallNotFound
	}
	if !hall.IsActive {
		return model.ErrHallInactive
	}
	return nil
}
