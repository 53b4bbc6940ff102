package memory

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/Freeeeeet/dance_studio/internal/repository"
	"github.com/google/uuid"
)

type clientRepo struct{ h *handle }

func (r *clientRepo) Create(ctx context.Context, client *model.Client) error {
	return r.h.do(func(d *dataset) error {
		if client.ID == uuid.Nil {
			client.ID = model.NewID()
		}
		if _, ok := d.clients[client.ID]; ok {
			return fmt.Errorf("create client: %w", repository.ErrDuplicate)
		}
		if client.CreatedAt.IsZero() {
			client.CreatedAt = r.h.now()
		}
		d.clients[client.ID] = *client
		return nil
	})
}

func (r *clientRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var out *model.Client
	err := r.h.do(func(d *dataset) error {
		if c, ok := d.clients[id]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *clientRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Client, error) {
	out := make(map[uuid.UUID]*model.Client, len(ids))
	err := r.h.do(func(d *dataset) error {
		for _, id := range ids {
			if c, ok := d.clients[id]; ok {
				out[id] = &c
			}
		}
		return nil
	})
	return out, err
}

func (r *clientRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.h.do(func(d *dataset) error {
		_, ok = d.clients[id]
		return nil
	})
	return ok, err
}

type hallRepo struct{ h *handle }

func (r *hallRepo) Create(ctx context.Context, hall *model.Hall) error {
	return r.h.do(func(d *dataset) error {
		if hall.ID == uuid.Nil {
			hall.ID = model.NewID()
		}
		if _, ok := d.halls[hall.ID]; ok {
			return fmt.Errorf("create hall: %w", repository.ErrDuplicate)
		}
		d.halls[hall.ID] = *hall
		return nil
	})
}

func (r *hallRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Hall, error) {
	var out *model.Hall
	err := r.h.do(func(d *dataset) error {
		if h, ok := d.halls[id]; ok {
			out = &h
		}
		return nil
	})
	return out, err
}

func (r *hallRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.h.do(func(d *dataset) error {
		_, ok = d.halls[id]
		return nil
	})
	return ok, err
}

type trainerRepo struct{ h *handle }

func (r *trainerRepo) Create(ctx context.Context, trainer *model.Trainer) error {
	return r.h.do(func(d *dataset) error {
		if trainer.ID == uuid.Nil {
			trainer.ID = model.NewID()
		}
		if _, ok := d.trainers[trainer.ID]; ok {
			return fmt.Errorf("create trainer: %w", repository.ErrDuplicate)
		}
		d.trainers[trainer.ID] = *trainer
		return nil
	})
}

func (r *trainerRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Trainer, error) {
	var out *model.Trainer
	err := r.h.do(func(d *dataset) error {
		if t, ok := d.trainers[id]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}
