package service

import (
	"context"
	"testing"

	"catalog-service/internal/models"
	"catalog-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) (*CatalogService, *store.MemoryStore, *recordingPublisher) {
	t.Helper()
	repo := store.NewMemoryStore()
	publisher := &recordingPublisher{}
	return NewCatalogService(repo, publisher), repo, publisher
}

func TestRecordPrice_LowersMinPrice(t *testing.T) {
	svc, _, publisher := newCatalog(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Booster Box", MinPrice: int64Ptr(200), Game: "pokemon", ProductType: "box"})
	require.NoError(t, err)
	st, err := svc.CreateStore(ctx, &CreateStoreRequest{Name: "Shop", WebsiteURL: "https://shop.example"})
	require.NoError(t, err)

	price, err := svc.RecordPrice(ctx, &CreatePriceRequest{ProductID: product.ID, StoreID: st.ID, Price: 150, URL: "https://shop.example/box"})
	require.NoError(t, err)
	assert.Equal(t, int64(150), price.Price)
	assert.NotZero(t, price.ID)

	detail, err := svc.GetProductDetail(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), *detail.MinPrice)
	require.Len(t, detail.Prices, 1)
	assert.Equal(t, "Shop", detail.Prices[0].Store.Name)

	require.Len(t, publisher.minLowered, 1)
	assert.Equal(t, int64(150), publisher.minLowered[0].MinPrice)

	_, err = svc.RecordPrice(ctx, &CreatePriceRequest{ProductID: product.ID, StoreID: st.ID, Price: 175, URL: "https://shop.example/box"})
	require.NoError(t, err)
	detail, err = svc.GetProductDetail(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), *detail.MinPrice)
	assert.Len(t, publisher.minLowered, 1)
	assert.Len(t, publisher.priceRecorded, 2)
}

func TestRecordPrice_UnknownReferences(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	_, err := svc.RecordPrice(ctx, &CreatePriceRequest{ProductID: 1, StoreID: 1, Price: 10, URL: "u"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	product, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "P"})
	require.NoError(t, err)
	_, err = svc.RecordPrice(ctx, &CreatePriceRequest{ProductID: product.ID, StoreID: 99, Price: 10, URL: "u"})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestCreateProduct_ClassifiesAndRejectsDuplicates(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Dark Magician", Game: "Yu-Gi-Oh!", ProductType: "carta"})
	require.NoError(t, err)
	assert.Equal(t, models.GameYugioh, product.Game)
	assert.Equal(t, models.ProductTypeSingles, product.ProductType)

	_, err = svc.CreateProduct(ctx, &CreateProductRequest{Name: "Dark Magician"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestCreateProductsBulk_AllOrNothing(t *testing.T) {
	svc, repo, _ := newCatalog(t)
	ctx := context.Background()

	products, err := svc.CreateProductsBulk(ctx, []CreateProductRequest{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = svc.CreateProductsBulk(ctx, []CreateProductRequest{{Name: "C"}, {Name: "A"}})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = repo.GetProductByName(ctx, "C")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListPrices_Shapes(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	product, _ := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Tin"})
	a, _ := svc.CreateStore(ctx, &CreateStoreRequest{Name: "A", WebsiteURL: "https://a.example"})
	b, _ := svc.CreateStore(ctx, &CreateStoreRequest{Name: "B", WebsiteURL: "https://b.example"})

	for _, req := range []CreatePriceRequest{
		{ProductID: product.ID, StoreID: a.ID, Price: 10, URL: "u"},
		{ProductID: product.ID, StoreID: a.ID, Price: 9, URL: "u"},
		{ProductID: product.ID, StoreID: b.ID, Price: 11, URL: "u"},
	} {
		req := req
		_, err := svc.RecordPrice(ctx, &req)
		require.NoError(t, err)
	}

	history, err := svc.ListPrices(ctx, product.ID, nil, false)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	latest, err := svc.ListPrices(ctx, product.ID, nil, true)
	require.NoError(t, err)
	assert.Len(t, latest, 2)

	onlyA, err := svc.ListPrices(ctx, product.ID, &a.ID, false)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	latestA, err := svc.ListPrices(ctx, product.ID, &a.ID, true)
	require.NoError(t, err)
	require.Len(t, latestA, 1)
	assert.Equal(t, int64(9), latestA[0].Price)

	_, err = svc.ListPrices(ctx, 999, nil, false)
	assert.ErrorIs(t, err, ErrProductNotFound)
	missing := int64(999)
	_, err = svc.ListPrices(ctx, product.ID, &missing, false)
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestCreateReview_Deduplicates(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	st, _ := svc.CreateStore(ctx, &CreateStoreRequest{Name: "Shop", WebsiteURL: "https://shop.example"})

	first, created, err := svc.CreateReview(ctx, &CreateReviewRequest{User: "ash", StoreID: st.ID, Rating: 5})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.CreateReview(ctx, &CreateReviewRequest{User: "ash", StoreID: st.ID, Rating: 1})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, *first, *second)

	reviews, err := svc.ListReviews(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	_, _, err = svc.CreateReview(ctx, &CreateReviewRequest{User: "ash", StoreID: 42, Rating: 3})
	assert.ErrorIs(t, err, ErrStoreNotFound)
	_, _, err = svc.CreateReview(ctx, &CreateReviewRequest{User: "ash", StoreID: st.ID, Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestComments(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	_, err := svc.CreateComment(ctx, &CreateCommentRequest{User: "misty", ProductID: 1, Text: "hi"})
	assert.ErrorIs(t, err, ErrProductNotFound)
	_, err = svc.ListComments(ctx, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	product, _ := svc.CreateProduct(ctx, &CreateProductRequest{Name: "Deck"})
	comment, err := svc.CreateComment(ctx, &CreateCommentRequest{User: "misty", ProductID: product.ID, Text: "great deck"})
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)

	detail, err := svc.GetProductDetail(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "great deck", detail.Comments[0].Text)
	assert.Empty(t, detail.Prices)
}

func TestListProducts_RejectsBadPaging(t *testing.T) {
	svc, _, _ := newCatalog(t)

	_, err := svc.ListProducts(context.Background(), models.ProductFilter{Limit: 1001})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.ListProducts(context.Background(), models.ProductFilter{Skip: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
