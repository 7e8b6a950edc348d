package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog-service/internal/models"
)

// MemoryStore is an in-process Repository used by tests and by
// DATABASE_URL=memory:// deployments. Transactions hold the store lock
// for their whole duration and restore a snapshot on error.
type MemoryStore struct {
	st   *memState
	inTx bool
}

type memState struct {
	mu sync.Mutex

	stores      map[int64]models.Store
	storeByName map[string]int64

	products      map[int64]models.Product
	productByName map[string]int64

	prices   []models.Price
	comments []models.Comment
	reviews  []models.Review

	nextStoreID   int64
	nextProductID int64
	nextPriceID   int64
	nextCommentID int64
	nextReviewID  int64

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: &memState{
		stores:        map[int64]models.Store{},
		storeByName:   map[string]int64{},
		products:      map[int64]models.Product{},
		productByName: map[string]int64{},
		now:           time.Now,
	}}
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.st.mu.Lock()
	return m.st.mu.Unlock
}

// snapshot copies everything a failed transaction may need to restore
func (s *memState) snapshot() *memState {
	c := &memState{
		stores:        make(map[int64]models.Store, len(s.stores)),
		storeByName:   make(map[string]int64, len(s.storeByName)),
		products:      make(map[int64]models.Product, len(s.products)),
		productByName: make(map[string]int64, len(s.productByName)),
		prices:        append([]models.Price(nil), s.prices...),
		comments:      append([]models.Comment(nil), s.comments...),
		reviews:       append([]models.Review(nil), s.reviews...),
		nextStoreID:   s.nextStoreID,
		nextProductID: s.nextProductID,
		nextPriceID:   s.nextPriceID,
		nextCommentID: s.nextCommentID,
		nextReviewID:  s.nextReviewID,
	}
	for k, v := range s.stores {
		c.stores[k] = v
	}
	for k, v := range s.storeByName {
		c.storeByName[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.productByName {
		c.productByName[k] = v
	}
	return c
}

func (s *memState) restore(c *memState) {
	s.stores = c.stores
	s.storeByName = c.storeByName
	s.products = c.products
	s.productByName = c.productByName
	s.prices = c.prices
	s.comments = c.comments
	s.reviews = c.reviews
	s.nextStoreID = c.nextStoreID
	s.nextProductID = c.nextProductID
	s.nextPriceID = c.nextPriceID
	s.nextCommentID = c.nextCommentID
	s.nextReviewID = c.nextReviewID
}

// InTx runs fn with the store locked, rolling back on error
func (m *MemoryStore) InTx(ctx context.Context, fn func(repo Repository) error) error {
	if m.inTx {
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	saved := m.st.snapshot()
	if err := fn(&MemoryStore{st: m.st, inTx: true}); err != nil {
		m.st.restore(saved)
		return err
	}
	return nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Stores

func (m *MemoryStore) CreateStore(ctx context.Context, store *models.Store) error {
	defer m.lock()()
	if _, ok := m.st.storeByName[store.Name]; ok {
		return ErrConflict
	}
	m.insertStore(store)
	return nil
}

func (m *MemoryStore) insertStore(store *models.Store) {
	m.st.nextStoreID++
	store.ID = m.st.nextStoreID
	m.st.stores[store.ID] = *store
	m.st.storeByName[store.Name] = store.ID
}

func (m *MemoryStore) GetStoreByID(ctx context.Context, id int64) (*models.Store, error) {
	defer m.lock()()
	store, ok := m.st.stores[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &store, nil
}

func (m *MemoryStore) GetStoreByName(ctx context.Context, name string) (*models.Store, error) {
	defer m.lock()()
	id, ok := m.st.storeByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	store := m.st.stores[id]
	return &store, nil
}

func (m *MemoryStore) GetOrCreateStore(ctx context.Context, name, websiteURL string) (*models.Store, error) {
	defer m.lock()()
	if id, ok := m.st.storeByName[name]; ok {
		store := m.st.stores[id]
		return &store, nil
	}
	store := &models.Store{Name: name, WebsiteURL: websiteURL}
	m.insertStore(store)
	return store, nil
}

func (m *MemoryStore) ListStores(ctx context.Context) ([]models.Store, error) {
	defer m.lock()()
	stores := make([]models.Store, 0, len(m.st.stores))
	for _, s := range m.st.stores {
		stores = append(stores, s)
	}
	sort.Slice(stores, func(i, j int) bool { return stores[i].ID < stores[j].ID })
	return stores, nil
}

// Products

func (m *MemoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	defer m.lock()()
	if _, ok := m.st.productByName[product.Name]; ok {
		return ErrConflict
	}
	m.insertProduct(product)
	return nil
}

func (m *MemoryStore) insertProduct(product *models.Product) {
	m.st.nextProductID++
	product.ID = m.st.nextProductID
	m.st.products[product.ID] = *product
	m.st.productByName[product.Name] = product.ID
}

func (m *MemoryStore) CreateProducts(ctx context.Context, products []*models.Product) error {
	return m.InTx(ctx, func(repo Repository) error {
		for _, p := range products {
			if err := repo.CreateProduct(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *MemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	defer m.lock()()
	product, ok := m.st.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &product, nil
}

func (m *MemoryStore) GetProductByName(ctx context.Context, name string) (*models.Product, error) {
	defer m.lock()()
	id, ok := m.st.productByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	product := m.st.products[id]
	return &product, nil
}

func (m *MemoryStore) GetOrCreateProduct(ctx context.Context, product *models.Product) (*models.Product, bool, error) {
	defer m.lock()()
	if id, ok := m.st.productByName[product.Name]; ok {
		existing := m.st.products[id]
		return &existing, false, nil
	}
	created := *product
	m.insertProduct(&created)
	return &created, true, nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	defer m.lock()()

	needle := strings.ToLower(filter.Name)
	matched := []models.Product{}
	for _, p := range m.st.products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		// NULL min_price never satisfies a price bound
		if filter.MinPrice != nil && (p.MinPrice == nil || *p.MinPrice < *filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && (p.MinPrice == nil || *p.MinPrice > *filter.MaxPrice) {
			continue
		}
		if filter.Game != nil && p.Game != *filter.Game {
			continue
		}
		if filter.ProductType != nil && p.ProductType != *filter.ProductType {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	limit, skip := pageBounds(filter)
	if skip >= len(matched) {
		return []models.Product{}, nil
	}
	end := skip + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], nil
}

// Prices

func (m *MemoryStore) AppendPrice(ctx context.Context, price *models.Price) (bool, error) {
	defer m.lock()()

	product, ok := m.st.products[price.ProductID]
	if !ok {
		return false, ErrNotFound
	}
	if _, ok := m.st.stores[price.StoreID]; !ok {
		return false, ErrNotFound
	}

	m.st.nextPriceID++
	price.ID = m.st.nextPriceID
	if price.ScrappedAt.IsZero() {
		price.ScrappedAt = m.st.now()
	}
	m.st.prices = append(m.st.prices, *price)

	if product.MinPrice != nil && *product.MinPrice <= price.Price {
		return false, nil
	}
	min := price.Price
	product.MinPrice = &min
	m.st.products[product.ID] = product
	return true, nil
}

func (m *MemoryStore) withStore(p models.Price) models.PriceWithStore {
	return models.PriceWithStore{
		ID:         p.ID,
		ProductID:  p.ProductID,
		Price:      p.Price,
		URL:        p.URL,
		ScrappedAt: p.ScrappedAt,
		Store:      m.st.stores[p.StoreID],
	}
}

func newestFirst(prices []models.PriceWithStore) {
	sort.Slice(prices, func(i, j int) bool {
		if !prices[i].ScrappedAt.Equal(prices[j].ScrappedAt) {
			return prices[i].ScrappedAt.After(prices[j].ScrappedAt)
		}
		return prices[i].ID > prices[j].ID
	})
}

func (m *MemoryStore) ListPrices(ctx context.Context, productID int64, storeID *int64) ([]models.PriceWithStore, error) {
	defer m.lock()()
	prices := []models.PriceWithStore{}
	for _, p := range m.st.prices {
		if p.ProductID != productID {
			continue
		}
		if storeID != nil && p.StoreID != *storeID {
			continue
		}
		prices = append(prices, m.withStore(p))
	}
	newestFirst(prices)
	return prices, nil
}

func (m *MemoryStore) LatestPrices(ctx context.Context, productID int64) ([]models.PriceWithStore, error) {
	defer m.lock()()
	latest := map[int64]models.PriceWithStore{}
	for _, p := range m.st.prices {
		if p.ProductID != productID {
			continue
		}
		cur, ok := latest[p.StoreID]
		if !ok || p.ScrappedAt.After(cur.ScrappedAt) || (p.ScrappedAt.Equal(cur.ScrappedAt) && p.ID > cur.ID) {
			latest[p.StoreID] = m.withStore(p)
		}
	}

	prices := make([]models.PriceWithStore, 0, len(latest))
	for _, p := range latest {
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Store.ID < prices[j].Store.ID })
	return prices, nil
}

// Comments and reviews

func (m *MemoryStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	defer m.lock()()
	if _, ok := m.st.products[comment.ProductID]; !ok {
		return ErrNotFound
	}
	m.st.nextCommentID++
	comment.ID = m.st.nextCommentID
	comment.Date = m.st.now()
	m.st.comments = append(m.st.comments, *comment)
	return nil
}

func (m *MemoryStore) ListComments(ctx context.Context, productID int64) ([]models.Comment, error) {
	defer m.lock()()
	comments := []models.Comment{}
	for _, c := range m.st.comments {
		if c.ProductID == productID {
			comments = append(comments, c)
		}
	}
	return comments, nil
}

func (m *MemoryStore) CreateReview(ctx context.Context, review *models.Review) (*models.Review, bool, error) {
	defer m.lock()()
	if _, ok := m.st.stores[review.StoreID]; !ok {
		return nil, false, ErrNotFound
	}
	if existing, ok := m.findReview(review.StoreID, review.User); ok {
		return &existing, false, nil
	}

	m.st.nextReviewID++
	created := *review
	created.ID = m.st.nextReviewID
	created.Date = m.st.now()
	m.st.reviews = append(m.st.reviews, created)
	return &created, true, nil
}

func (m *MemoryStore) findReview(storeID int64, user string) (models.Review, bool) {
	for _, r := range m.st.reviews {
		if r.StoreID == storeID && r.User == user {
			return r, true
		}
	}
	return models.Review{}, false
}

func (m *MemoryStore) GetReview(ctx context.Context, storeID int64, user string) (*models.Review, error) {
	defer m.lock()()
	review, ok := m.findReview(storeID, user)
	if !ok {
		return nil, ErrNotFound
	}
	return &review, nil
}

func (m *MemoryStore) ListReviews(ctx context.Context, storeID int64) ([]models.Review, error) {
	defer m.lock()()
	reviews := []models.Review{}
	for _, r := range m.st.reviews {
		if r.StoreID == storeID {
			reviews = append(reviews, r)
		}
	}
	return reviews, nil
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*MemoryStore)(nil)
)
