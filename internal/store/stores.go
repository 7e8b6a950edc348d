package store

import (
	"context"
	"database/sql"
	"errors"

	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateStore creates a new store
func (s *Store) CreateStore(ctx context.Context, store *models.Store) error {
	query := `
		INSERT INTO stores (name, website_url)
		VALUES ($1, $2)
		RETURNING id`

	err := sqlx.GetContext(ctx, s.q, &store.ID, query, store.Name, store.WebsiteURL)
	return translateError(err)
}

// GetStoreByID retrieves a store by ID
func (s *Store) GetStoreByID(ctx context.Context, id int64) (*models.Store, error) {
	var store models.Store
	err := sqlx.GetContext(ctx, s.q, &store, "SELECT id, name, website_url FROM stores WHERE id = $1", id)
	if err != nil {
		return nil, translateError(err)
	}
	return &store, nil
}

// GetStoreByName retrieves a store by its exact name
func (s *Store) GetStoreByName(ctx context.Context, name string) (*models.Store, error) {
	var store models.Store
	err := sqlx.GetContext(ctx, s.q, &store, "SELECT id, name, website_url FROM stores WHERE name = $1", name)
	if err != nil {
		return nil, translateError(err)
	}
	return &store, nil
}

// GetOrCreateStore inserts the store unless the name is taken, then fetches it.
// The unique index on name makes concurrent callers converge on one row.
func (s *Store) GetOrCreateStore(ctx context.Context, name, websiteURL string) (*models.Store, error) {
	query := `
		INSERT INTO stores (name, website_url)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, website_url`

	var store models.Store
	err := sqlx.GetContext(ctx, s.q, &store, query, name, websiteURL)
	if err == nil {
		return &store, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translateError(err)
	}

	return s.GetStoreByName(ctx, name)
}

// ListStores retrieves all stores
func (s *Store) ListStores(ctx context.Context) ([]models.Store, error) {
	stores := []models.Store{}
	err := sqlx.SelectContext(ctx, s.q, &stores, "SELECT id, name, website_url FROM stores ORDER BY id")
	return stores, translateError(err)
}
