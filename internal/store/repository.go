package store

import (
	"context"
	"errors"

	"catalog-service/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a natural key is already taken
	ErrConflict = errors.New("conflict")
)

// Repository is the persistence boundary for the catalog entities.
// Implemented by *Store (Postgres) and *MemoryStore.
type Repository interface {
	CreateStore(ctx context.Context, store *models.Store) error
	GetStoreByID(ctx context.Context, id int64) (*models.Store, error)
	GetStoreByName(ctx context.Context, name string) (*models.Store, error)
	// GetOrCreateStore is safe under concurrent calls with the same name.
	GetOrCreateStore(ctx context.Context, name, websiteURL string) (*models.Store, error)
	ListStores(ctx context.Context) ([]models.Store, error)

	CreateProduct(ctx context.Context, product *models.Product) error
	CreateProducts(ctx context.Context, products []*models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductByName(ctx context.Context, name string) (*models.Product, error)
	// GetOrCreateProduct inserts product unless one with the same name exists.
	// The bool reports whether a row was created.
	GetOrCreateProduct(ctx context.Context, product *models.Product) (*models.Product, bool, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)

	// AppendPrice inserts the observation and lowers the product's min price
	// when the new price is below it. Reports whether min price changed.
	AppendPrice(ctx context.Context, price *models.Price) (bool, error)
	ListPrices(ctx context.Context, productID int64, storeID *int64) ([]models.PriceWithStore, error)
	LatestPrices(ctx context.Context, productID int64) ([]models.PriceWithStore, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, productID int64) ([]models.Comment, error)

	// CreateReview inserts unless (store, user) already reviewed, in which
	// case the existing review is returned and the bool is false.
	CreateReview(ctx context.Context, review *models.Review) (*models.Review, bool, error)
	GetReview(ctx context.Context, storeID int64, user string) (*models.Review, error)
	ListReviews(ctx context.Context, storeID int64) ([]models.Review, error)

	// InTx runs fn in a single transaction; fn's error rolls it back.
	InTx(ctx context.Context, fn func(repo Repository) error) error
	Ping(ctx context.Context) error
}
