package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"catalog-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestBuildProductQuery(t *testing.T) {
	game := models.GamePokemon
	pt := models.ProductTypeBooster

	query, args := buildProductQuery(models.ProductFilter{
		Name:        "50%_off",
		MinPrice:    int64Ptr(1000),
		MaxPrice:    int64Ptr(5000),
		Game:        &game,
		ProductType: &pt,
		Skip:        20,
		Limit:       10,
	})

	assert.Contains(t, query, "name ILIKE :name")
	assert.Contains(t, query, "min_price >= :min_price")
	assert.Contains(t, query, "min_price <= :max_price")
	assert.Contains(t, query, "game = :game")
	assert.Contains(t, query, "product_type = :product_type")
	assert.Contains(t, query, "ORDER BY id LIMIT :limit OFFSET :skip")

	assert.Equal(t, `%50\%\_off%`, args["name"])
	assert.Equal(t, int64(1000), args["min_price"])
	assert.Equal(t, int64(5000), args["max_price"])
	assert.Equal(t, "pokemon", args["game"])
	assert.Equal(t, "booster", args["product_type"])
	assert.Equal(t, 10, args["limit"])
	assert.Equal(t, 20, args["skip"])
}

func TestBuildProductQuery_NoFilters(t *testing.T) {
	query, args := buildProductQuery(models.ProductFilter{})

	assert.NotContains(t, query, "WHERE")
	assert.Equal(t, models.DefaultProductLimit, args["limit"])
	assert.Equal(t, 0, args["skip"])
}

func TestBuildProductQuery_ClampsLimit(t *testing.T) {
	_, args := buildProductQuery(models.ProductFilter{Limit: 50000, Skip: -3})

	assert.Equal(t, models.MaxProductLimit, args["limit"])
	assert.Equal(t, 0, args["skip"])
}

// openTestStore connects to TEST_DATABASE_URL and migrates it
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	s, err := NewStore(url, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate())
	_, err = s.db.Exec("TRUNCATE reviews, comments, prices, products, stores RESTART IDENTITY")
	require.NoError(t, err)
	return s
}

func TestPostgres_GetOrCreateStoreConcurrent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store, err := s.GetOrCreateStore(ctx, "Race Shop", "https://race.example")
			if assert.NoError(t, err) {
				ids[i] = store.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	stores, err := s.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 1)
}

func TestPostgres_AppendPriceRatchetsMin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	shop, err := s.GetOrCreateStore(ctx, "Shop", "https://shop.example")
	require.NoError(t, err)
	product, created, err := s.GetOrCreateProduct(ctx, &models.Product{
		Name: "Booster X", Game: models.GamePokemon, ProductType: models.ProductTypeBooster,
	})
	require.NoError(t, err)
	assert.True(t, created)

	for _, p := range []int64{200, 150, 180} {
		_, err := s.AppendPrice(ctx, &models.Price{ProductID: product.ID, StoreID: shop.ID, Price: p, URL: "https://shop.example/x"})
		require.NoError(t, err)
	}

	got, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MinPrice)
	assert.Equal(t, int64(150), *got.MinPrice)

	prices, err := s.ListPrices(ctx, product.ID, nil)
	require.NoError(t, err)
	assert.Len(t, prices, 3)
	assert.Equal(t, "Shop", prices[0].Store.Name)
}

func TestPostgres_LatestPricesPerStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.GetOrCreateStore(ctx, "A", "https://a.example")
	require.NoError(t, err)
	b, err := s.GetOrCreateStore(ctx, "B", "https://b.example")
	require.NoError(t, err)
	product, _, err := s.GetOrCreateProduct(ctx, &models.Product{Name: "Deck", Game: models.GameMagic, ProductType: models.ProductTypeBundle})
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []int64{a.ID, a.ID, b.ID} {
		_, err := s.AppendPrice(ctx, &models.Price{
			ProductID: product.ID, StoreID: st, Price: int64(100 + i), URL: "u", ScrappedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	latest, err := s.LatestPrices(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, int64(101), latest[0].Price)
	assert.Equal(t, int64(102), latest[1].Price)
}

func TestPostgres_ReviewDeduplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	shop, err := s.GetOrCreateStore(ctx, "Shop", "https://shop.example")
	require.NoError(t, err)

	first, created, err := s.CreateReview(ctx, &models.Review{User: "ash", StoreID: shop.ID, Rating: 5})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.CreateReview(ctx, &models.Review{User: "ash", StoreID: shop.ID, Rating: 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Rating)
}

func TestPostgres_InTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(repo Repository) error {
		if _, err := repo.GetOrCreateStore(ctx, "Ghost", "https://ghost.example"); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	assert.EqualError(t, err, "boom")

	_, err = s.GetStoreByName(ctx, "Ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_DuplicateProductConflicts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: "Dup", Game: models.GameOther, ProductType: models.ProductTypeOther}))
	err := s.CreateProduct(ctx, &models.Product{Name: "Dup", Game: models.GameOther, ProductType: models.ProductTypeOther})
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, IsPersistenceError(err))
}
