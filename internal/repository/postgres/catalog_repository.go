package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

type HallRepository struct {
	q querier
}

func (r *HallRepository) Create(ctx context.Context, hall *model.Hall) error {
	if hall.ID == uuid.Nil {
		hall.ID = model.NewID()
	}

	query := `
		INSERT INTO halls (id, name, capacity, price_per_hour, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.Exec(ctx, query, hall.ID, hall.Name, hall.Capacity, hall.PricePerHour, hall.IsActive)
	if err != nil {
		return translate("create hall", err)
	}

	return nil
}

func (r *HallRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Hall, error) {
	query := `
		SELECT id, name, capacity, price_per_hour, is_active
		FROM halls
		WHERE id = $1
	`

	var hall model.Hall
	err := r.q.QueryRow(ctx, query, id).Scan(
		&hall.ID,
		&hall.Name,
		&hall.Capacity,
		&hall.PricePerHour,
		&hall.IsActive,
	)

	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hall by id: %w", err)
	}

	return &hall, nil
}

func (r *HallRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM halls WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check hall exists: %w", err)
	}
	return exists, nil
}

type TrainerRepository struct {
	q querier
}

func (r *TrainerRepository) Create(ctx context.Context, trainer *model.Trainer) error {
	if trainer.ID == uuid.Nil {
		trainer.ID = model.NewID()
	}

	query := `
		INSERT INTO trainers (id, name, specialization, is_active)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.q.Exec(ctx, query, trainer.ID, trainer.Name, trainer.Specialization, trainer.IsActive)
	if err != nil {
		return translate("create trainer", err)
	}

	return nil
}

func (r *TrainerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Trainer, error) {
	query := `
		SELECT id, name, specialization, is_active
		FROM trainers
		WHERE id = $1
	`

	var trainer model.Trainer
	err := r.q.QueryRow(ctx, query, id).Scan(
		&trainer.ID,
		&trainer.Name,
		&trainer.Specialization,
		&trainer.IsActive,
	)

	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trainer by id: %w", err)
	}

	return &trainer, nil
}
