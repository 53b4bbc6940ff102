package postgres

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/dance_studio/internal/model"
	"github.com/google/uuid"
)

type ClientRepository struct {
	q querier
}

// Create inserts a client. A zero ID is replaced by a fresh one.
func (r *ClientRepository) Create(ctx context.Context, client *model.Client) error {
	if client.ID == uuid.Nil {
		client.ID = model.NewID()
	}

	query := `
		INSERT INTO clients (id, name, email, phone, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.q.QueryRow(
		ctx, query,
		client.ID,
		client.Name,
		client.Email,
		client.Phone,
		client.IsActive,
	).Scan(&client.CreatedAt)

	if err != nil {
		return translate("create client", err)
	}

	return nil
}

// GetByID returns nil when the client does not exist.
func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	query := `
		SELECT id, name, email, phone, is_active, created_at
		FROM clients
		WHERE id = $1
	`

	var client model.Client
	err := r.q.QueryRow(ctx, query, id).Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.IsActive,
		&client.CreatedAt,
	)

	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client by id: %w", err)
	}

	return &client, nil
}

// GetByIDs loads several clients at once; missing ids are absent from the map.
func (r *ClientRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Client, error) {
	out := make(map[uuid.UUID]*model.Client, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT id, name, email, phone, is_active, created_at
		FROM clients
		WHERE id = ANY($1)
	`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get clients by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var client model.Client
		err := rows.Scan(
			&client.ID,
			&client.Name,
			&client.Email,
			&client.Phone,
			&client.IsActive,
			&client.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out[client.ID] = &client
	}

	return out, rows.Err()
}

func (r *ClientRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check client exists: %w", err)
	}
	return exists, nil
}
