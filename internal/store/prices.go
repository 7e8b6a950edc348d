package store

import (
	"context"
	"time"

	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const priceWithStoreColumns = `
	p.id, p.product_id, p.price, p.url, p.scrapped_at,
	s.id AS "store.id", s.name AS "store.name", s.website_url AS "store.website_url"`

// AppendPrice inserts a price observation and ratchets the product's min price
// in the same transaction. The ratchet is a single conditional update so
// concurrent inserts for one product cannot lose a lower value.
func (s *Store) AppendPrice(ctx context.Context, price *models.Price) (bool, error) {
	var lowered bool

	err := s.InTx(ctx, func(repo Repository) error {
		tx := repo.(*Store)

		var scrappedAt interface{}
		if !price.ScrappedAt.IsZero() {
			scrappedAt = price.ScrappedAt
		}

		query := `
			INSERT INTO prices (product_id, store_id, price, url, scrapped_at)
			VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, NOW()))
			RETURNING id, scrapped_at`

		row := struct {
			ID         int64     `db:"id"`
			ScrappedAt time.Time `db:"scrapped_at"`
		}{}
		if err := sqlx.GetContext(ctx, tx.q, &row, query,
			price.ProductID, price.StoreID, price.Price, price.URL, scrappedAt); err != nil {
			return translateError(err)
		}
		price.ID = row.ID
		price.ScrappedAt = row.ScrappedAt

		res, err := tx.q.ExecContext(ctx,
			"UPDATE products SET min_price = $1 WHERE id = $2 AND (min_price IS NULL OR min_price > $1)",
			price.Price, price.ProductID)
		if err != nil {
			return translateError(err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		lowered = rows == 1
		return nil
	})

	return lowered, err
}

// ListPrices retrieves a product's price history, newest first, optionally for one store
func (s *Store) ListPrices(ctx context.Context, productID int64, storeID *int64) ([]models.PriceWithStore, error) {
	query := `SELECT ` + priceWithStoreColumns + `
		FROM prices p
		JOIN stores s ON s.id = p.store_id
		WHERE p.product_id = $1`
	args := []interface{}{productID}

	if storeID != nil {
		query += " AND p.store_id = $2"
		args = append(args, *storeID)
	}
	query += " ORDER BY p.scrapped_at DESC, p.id DESC"

	prices := []models.PriceWithStore{}
	err := sqlx.SelectContext(ctx, s.q, &prices, query, args...)
	return prices, translateError(err)
}

// LatestPrices retrieves the most recent price per store for a product
func (s *Store) LatestPrices(ctx context.Context, productID int64) ([]models.PriceWithStore, error) {
	query := `SELECT DISTINCT ON (p.store_id) ` + priceWithStoreColumns + `
		FROM prices p
		JOIN stores s ON s.id = p.store_id
		WHERE p.product_id = $1
		ORDER BY p.store_id, p.scrapped_at DESC, p.id DESC`

	prices := []models.PriceWithStore{}
	err := sqlx.SelectContext(ctx, s.q, &prices, query, productID)
	return prices, translateError(err)
}
