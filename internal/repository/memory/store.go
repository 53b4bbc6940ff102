// Package memory is an in-process storage engine. A single mutex guards the whole dataset;
// transactions work on a copy that replaces the dataset on commit.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
)

type dataset struct {
	clients     map[uuid.UUID]model.Client
	halls       map[uuid.UUID]model.Hall
	trainers    map[uuid.UUID]model.Trainer
	bookings    map[uuid.UUID]model.Booking
	lessons     map[uuid.UUID]model.Lesson
	enrollments map[uuid.UUID]model.Enrollment
	attendance  map[uuid.UUID]model.Attendance
	tasks       map[uuid.UUID]model.SyncTask

	// insertion order, breaks ties between enrollments created at the same instant
	enrollmentOrder []uuid.UUID
}

func newDataset() *dataset {
	return &dataset{
		clients:     map[uuid.UUID]model.Client{},
		halls:       map[uuid.UUID]model.Hall{},
		trainers:    map[uuid.UUID]model.Trainer{},
		bookings:    map[uuid.UUID]model.Booking{},
		lessons:     map[uuid.UUID]model.Lesson{},
		enrollments: map[uuid.UUID]model.Enrollment{},
		attendance:  map[uuid.UUID]model.Attendance{},
		tasks:       map[uuid.UUID]model.SyncTask{},
	}
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	return &dataset{
		clients:     cloneMap(d.clients),
		halls:       cloneMap(d.halls),
		trainers:    cloneMap(d.trainers),
		bookings:    cloneMap(d.bookings),
		lessons:     cloneMap(d.lessons),
		enrollments: cloneMap(d.enrollments),
		attendance:  cloneMap(d.attendance),
		tasks:       cloneMap(d.tasks),

		enrollmentOrder: slices.Clone(d.enrollmentOrder),
	}
}

// Store implements repository.Store in memory.
type Store struct {
	mu   sync.Mutex
	data *dataset
	now  func() time.Time
	root *handle
}

type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{data: newDataset(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.root = &handle{store: s}
	return s
}

// handle runs a function against either the live dataset (under the store lock) or the
// private copy of a running transaction.
type handle struct {
	store *Store
	tx    *dataset
}

func (h *handle) do(fn func(d *dataset) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.data)
}

func (h *handle) now() time.Time {
	return h.store.now().UTC()
}

func (s *Store) Clients() repository.ClientRepository         { return &clientRepo{s.root} }
func (s *Store) Halls() repository.HallRepository             { return &hallRepo{s.root} }
func (s *Store) Trainers() repository.TrainerRepository       { return &trainerRepo{s.root} }
func (s *Store) Bookings() repository.BookingRepository       { return &bookingRepo{s.root} }
func (s *Store) Lessons() repository.LessonRepository         { return &lessonRepo{s.root} }
func (s *Store) Enrollments() repository.EnrollmentRepository { return &enrollmentRepo{s.root} }
func (s *Store) Attendance() repository.AttendanceRepository  { return &attendanceRepo{s.root} }
func (s *Store) SyncTasks() repository.SyncTaskRepository     { return &syncTaskRepo{s.root} }

// WithinTx holds the store lock for the whole callback, so transactions are fully serialized.
// The callback must only use tx; touching the Store itself from inside would deadlock.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &txView{h: &handle{store: s, tx: work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() {}

type txView struct {
	h *handle
}

func (t *txView) Clients() repository.ClientRepository         { return &clientRepo{t.h} }
func (t *txView) Halls() repository.HallRepository             { return &hallRepo{t.h} }
func (t *txView) Trainers() repository.TrainerRepository       { return &trainerRepo{t.h} }
func (t *txView) Bookings() repository.BookingRepository       { return &bookingRepo{t.h} }
func (t *txView) Lessons() repository.LessonRepository         { return &lessonRepo{t.h} }
func (t *txView) Enrollments() repository.EnrollmentRepository { return &enrollmentRepo{t.h} }
func (t *txView) Attendance() repository.AttendanceRepository  { return &attendanceRepo{t.h} }
func (t *txView) SyncTasks() repository.SyncTaskRepository     { return &syncTaskRepo{t.h} }

// LockClient and LockHall are no-ops: the store lock is already held for the whole transaction.
func (t *txView) LockClient(ctx context.Context, clientID uuid.UUID) error {
	return ctx.Err()
}

func (t *txView) LockHall(ctx context.Context, hallID uuid.UUID) error {
	return ctx.Err()
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txView)(nil)
)
