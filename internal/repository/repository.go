// Package repository declares the storage contracts the scheduling core runs against.
// Lookups by ID return (nil, nil) when the row does not exist.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

// ErrDuplicate is returned when a unique key is already taken. Overlapping hall occupation is
// reported as model.ErrHallBusy and a second active enrollment as model.ErrAlreadyEnrolled instead.
var ErrDuplicate = errors.New("duplicate row")

type ClientRepository interface {
	Create(ctx context.Context, client *model.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Client, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type HallRepository interface {
	Create(ctx context.Context, hall *model.Hall) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Hall, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type TrainerRepository interface {
	Create(ctx context.Context, trainer *model.Trainer) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Trainer, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Booking, error)
	ListByHallID(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]*model.Booking, error)
	// FindConflicting returns hall-occupying bookings (PENDING, CONFIRMED, COMPLETED) overlapping slot.
	FindConflicting(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) ([]*model.Booking, error)
	CountByClientAndStatus(ctx context.Context, clientID uuid.UUID, statuses []model.BookingStatus) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error
	ListAll(ctx context.Context) ([]*model.Booking, error)
}

type LessonRepository interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lesson, error)
	// GetForUpdate locks the lesson row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Lesson, error)
	ListByHallID(ctx context.Context, hallID uuid.UUID, from, to time.Time) ([]*model.Lesson, error)
	// FindConflicting returns non-cancelled lessons of the hall overlapping slot.
	FindConflicting(ctx context.Context, hallID uuid.UUID, slot model.TimeSlot) ([]*model.Lesson, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.LessonStatus) error
	// AdjustParticipants adds delta to the participant counter, refusing to leave [0, max].
	// It reports false when the bound would be violated.
	AdjustParticipants(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	SetParticipants(ctx context.Context, id uuid.UUID, n int) error
}

type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *model.Enrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Enrollment, error)
	ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Enrollment, error)
	ListByLessonID(ctx context.Context, lessonID uuid.UUID) ([]*model.Enrollment, error)
	// GetActive returns the REGISTERED enrollment for the pair, if any.
	GetActive(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error)
	// GetLatest returns the most recently created enrollment for the pair, whatever its status.
	GetLatest(ctx context.Context, clientID, lessonID uuid.UUID) (*model.Enrollment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.EnrollmentStatus) error
	ListAll(ctx context.Context) ([]*model.Enrollment, error)
}

// AttendanceFilter narrows List. Zero values mean "no bound".
type AttendanceFilter struct {
	ClientID *uuid.UUID
	From     time.Time
	To       time.Time
}

type AttendanceRepository interface {
	Create(ctx context.Context, attendance *model.Attendance) error
	Update(ctx context.Context, attendance *model.Attendance) error
	// FindByEntity returns the row for (entityID, type, clientID), if any.
	FindByEntity(ctx context.Context, entityID uuid.UUID, typ model.AttendanceType, clientID uuid.UUID) (*model.Attendance, error)
	ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*model.Attendance, error)
	List(ctx context.Context, filter AttendanceFilter) ([]*model.Attendance, error)
	Count(ctx context.Context) (int, error)
}

// SyncTaskRepository is the attendance outbox.
type SyncTaskRepository interface {
	Enqueue(ctx context.Context, task *model.SyncTask) error
	ListPending(ctx context.Context, maxAttempts, limit int) ([]*model.SyncTask, error)
	MarkDone(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	CountPending(ctx context.Context) (int, error)
}

// Repositories groups the per-entity contracts bound to one connection or transaction.
type Repositories interface {
	Clients() ClientRepository
	Halls() HallRepository
	Trainers() TrainerRepository
	Bookings() BookingRepository
	Lessons() LessonRepository
	Enrollments() EnrollmentRepository
	Attendance() AttendanceRepository
	SyncTasks() SyncTaskRepository
}

// Store is a storage engine. WithinTx runs fn against repositories bound to a single
// transaction; it commits when fn returns nil and rolls back otherwise.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}

// Tx is the transactional view handed to WithinTx callbacks.
type Tx interface {
	Repositories
	// LockClient serializes quota-checked writes for clientID until the transaction ends.
	// Callers taking both locks take the client lock first.
	LockClient(ctx context.Context, clientID uuid.UUID) error
	// LockHall serializes hall-occupying writes for hallID until the transaction ends.
	LockHall(ctx context.Context, hallID uuid.UUID) error
}
