package app

import (
	"time"

	"github.com/Freeeeeet/dance_studio/internal/config"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/Freeeeeet/dance_studio/internal/service"
	"go.uber.org/zap"
)

// Services is the scheduling core bound to one store.
type Services struct {
	Availability *service.AvailabilityService
	Attendance   *service.AttendanceService
	Bookings     *service.BookingService
	Lessons      *service.LessonService
	Enrollments  *service.EnrollmentService
	Stats        *service.StatsService
}

// NewServices wires the domain services on top of store.
func NewServices(store repository.Store, cfg *config.Config, logger *zap.Logger) *Services {
	clock := service.Clock(time.Now)

	availability := service.NewAvailabilityService(store, logger.Named("availability"))
	attendance := service.NewAttendanceService(
		store,
		service.AttendancePolicy{
			PenaltyRate:     cfg.CancellationPenaltyRate,
			MaxSyncAttempts: cfg.MaxSyncAttempts,
		},
		clock,
		logger.Named("attendance"),
	)

	bookings := service.NewBookingService(
		store,
		availability,
		attendance,
		service.BookingPolicy{MaxActiveBookings: cfg.MaxActiveBookings},
		clock,
		logger.Named("booking"),
	)

	return &Services{
		Availability: availability,
		Attendance:   attendance,
		Bookings:     bookings,
		Lessons:      service.NewLessonService(store, attendance, clock, logger.Named("lesson")),
		Enrollments:  service.NewEnrollmentService(store, attendance, clock, logger.Named("enrollment")),
		Stats:        service.NewStatsService(store, attendance, logger.Named("stats")),
	}
}
