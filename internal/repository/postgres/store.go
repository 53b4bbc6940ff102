// Package postgres implements the storage contracts on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool. Close closes the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Clients() repository.ClientRepository         { return &ClientRepository{q: s.pool} }
func (s *Store) Halls() repository.HallRepository             { return &HallRepository{q: s.pool} }
func (s *Store) Trainers() repository.TrainerRepository       { return &TrainerRepository{q: s.pool} }
func (s *Store) Bookings() repository.BookingRepository       { return &BookingRepository{q: s.pool} }
func (s *Store) Lessons() repository.LessonRepository         { return &LessonRepository{q: s.pool} }
func (s *Store) Enrollments() repository.EnrollmentRepository { return &EnrollmentRepository{q: s.pool} }
func (s *Store) Attendance() repository.AttendanceRepository  { return &AttendanceRepository{q: s.pool} }
func (s *Store) SyncTasks() repository.SyncTaskRepository     { return &SyncTaskRepository{q: s.pool} }

// WithinTx runs fn in a READ COMMITTED transaction. Races on hall occupation are closed by
// LockHall plus the exclusion constraints, races on lesson seats by GetForUpdate.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, &txView{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return translate("commit transaction", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type txView struct {
	tx pgx.Tx
}

func (t *txView) Clients() repository.ClientRepository         { return &ClientRepository{q: t.tx} }
func (t *txView) Halls() repository.HallRepository             { return &HallRepository{q: t.tx} }
func (t *txView) Trainers() repository.TrainerRepository       { return &TrainerRepository{q: t.tx} }
func (t *txView) Bookings() repository.BookingRepository       { return &BookingRepository{q: t.tx} }
func (t *txView) Lessons() repository.LessonRepository         { return &LessonRepository{q: t.tx} }
func (t *txView) Enrollments() repository.EnrollmentRepository { return &EnrollmentRepository{q: t.tx} }
func (t *txView) Attendance() repository.AttendanceRepository  { return &AttendanceRepository{q: t.tx} }
func (t *txView) SyncTasks() repository.SyncTaskRepository     { return &SyncTaskRepository{q: t.tx} }

// LockClient and LockHall take transaction-scoped advisory locks keyed by a prefixed id.
func (t *txView) LockClient(ctx context.Context, clientID uuid.UUID) error {
	if err := t.advisoryLock(ctx, "client:"+clientID.String()); err != nil {
		return fmt.Errorf("lock client: %w", err)
	}
	return nil
}

func (t *txView) LockHall(ctx context.Context, hallID uuid.UUID) error {
	if err := t.advisoryLock(ctx, "hall:"+hallID.String()); err != nil {
		return fmt.Errorf("lock hall: %w", err)
	}
	return nil
}

func (t *txView) advisoryLock(ctx context.Context, key string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*txView)(nil)
)
