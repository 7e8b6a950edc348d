package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"catalog-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, img_url, min_price, game, edition, language, description, condition, product_type`

// CreateProduct creates a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, img_url, min_price, game, edition, language, description, condition, product_type)
		VALUES (:name, :img_url, :min_price, :game, :edition, :language, :description, :condition, :product_type)
		RETURNING id`

	bound, args, err := sqlx.Named(query, product)
	if err != nil {
		return err
	}

	err = sqlx.GetContext(ctx, s.q, &product.ID, sqlx.Rebind(sqlx.DOLLAR, bound), args...)
	return translateError(err)
}

// CreateProducts creates all products in one transaction
func (s *Store) CreateProducts(ctx context.Context, products []*models.Product) error {
	return s.InTx(ctx, func(repo Repository) error {
		for _, p := range products {
			if err := repo.CreateProduct(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

// GetProductByName retrieves a product by its exact name
func (s *Store) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, "SELECT "+productColumns+" FROM products WHERE name = $1", name)
	if err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

// GetOrCreateProduct inserts the product unless the name is taken, then fetches it
func (s *Store) GetOrCreateProduct(ctx context.Context, product *models.Product) (*models.Product, bool, error) {
	query := `
		INSERT INTO products (name, img_url, min_price, game, edition, language, description, condition, product_type)
		VALUES (:name, :img_url, :min_price, :game, :edition, :language, :description, :condition, :product_type)
		ON CONFLICT (name) DO NOTHING
		RETURNING ` + productColumns

	bound, args, err := sqlx.Named(query, product)
	if err != nil {
		return nil, false, err
	}

	var created models.Product
	err = sqlx.GetContext(ctx, s.q, &created, sqlx.Rebind(sqlx.DOLLAR, bound), args...)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, translateError(err)
	}

	existing, err := s.GetProductByName(ctx, product.Name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// ListProducts runs a filtered, paginated product search
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query, args := buildProductQuery(filter)

	bound, params, err := sqlx.Named(query, args)
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	err = sqlx.SelectContext(ctx, s.q, &products, sqlx.Rebind(sqlx.DOLLAR, bound), params...)
	return products, translateError(err)
}

// buildProductQuery turns the filter into a named query. All conditions are ANDed;
// the price bounds apply to the product's running min price.
func buildProductQuery(f models.ProductFilter) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.Name != "" {
		conditions = append(conditions, "name ILIKE :name")
		args["name"] = "%" + escapeLike(f.Name) + "%"
	}
	if f.MinPrice != nil {
		conditions = append(conditions, "min_price >= :min_price")
		args["min_price"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		conditions = append(conditions, "min_price <= :max_price")
		args["max_price"] = *f.MaxPrice
	}
	if f.Game != nil {
		conditions = append(conditions, "game = :game")
		args["game"] = string(*f.Game)
	}
	if f.ProductType != nil {
		conditions = append(conditions, "product_type = :product_type")
		args["product_type"] = string(*f.ProductType)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit, skip := pageBounds(f)
	args["limit"] = limit
	args["skip"] = skip

	query := "SELECT " + productColumns + " FROM products" + whereClause + " ORDER BY id LIMIT :limit OFFSET :skip"
	return query, args
}

// pageBounds applies the default and maximum page size
func pageBounds(f models.ProductFilter) (limit, skip int) {
	limit = f.Limit
	if limit <= 0 {
		limit = models.DefaultProductLimit
	}
	if limit > models.MaxProductLimit {
		limit = models.MaxProductLimit
	}
	skip = f.Skip
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
