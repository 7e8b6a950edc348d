package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-service/internal/broker"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/taxonomy"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// CatalogService handles catalog queries and single-entity writes
type CatalogService struct {
	repo      store.Repository
	publisher broker.Publisher
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo store.Repository, publisher broker.Publisher) *CatalogService {
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}
	return &CatalogService{
		repo:      repo,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required,max=255"`
	ImgURL      *string `json:"img_url"`
	MinPrice    *int64  `json:"min_price" binding:"omitempty,min=0"`
	Game        string  `json:"game"`
	Edition     *string `json:"edition" binding:"omitempty,max=50"`
	Language    *string `json:"language" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Condition   *string `json:"condition" binding:"omitempty,max=20"`
	ProductType string  `json:"product_type"`
}

func (r *CreateProductRequest) toModel() *models.Product {
	return &models.Product{
		Name:        r.Name,
		ImgURL:      r.ImgURL,
		MinPrice:    r.MinPrice,
		Game:        taxonomy.ClassifyGame(r.Game),
		Edition:     r.Edition,
		Language:    r.Language,
		Description: r.Description,
		Condition:   r.Condition,
		ProductType: taxonomy.ClassifyProductType(r.ProductType),
	}
}

// CreateStoreRequest represents a request to create a store
type CreateStoreRequest struct {
	Name       string `json:"name" binding:"required,max=255"`
	WebsiteURL string `json:"website_url" binding:"required,max=255"`
}

// CreatePriceRequest represents a request to record a price
type CreatePriceRequest struct {
	ProductID  int64      `json:"product_id" binding:"required"`
	StoreID    int64      `json:"store_id" binding:"required"`
	Price      int64      `json:"price" binding:"min=0"`
	URL        string     `json:"url" binding:"required,max=255"`
	ScrappedAt *time.Time `json:"scrapped_at"`
}

// CreateCommentRequest represents a request to comment on a product
type CreateCommentRequest struct {
	User      string `json:"user" binding:"max=255"`
	ProductID int64  `json:"product_id" binding:"required"`
	Text      string `json:"text" binding:"required,max=500"`
}

// CreateReviewRequest represents a request to review a store
type CreateReviewRequest struct {
	User    string `json:"user" binding:"max=255"`
	StoreID int64  `json:"store_id" binding:"required"`
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
}

// ListProducts runs a filtered product search
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	if filter.Limit < 0 || filter.Limit > models.MaxProductLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, models.MaxProductLimit)
	}
	if filter.Skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", ErrInvalidInput)
	}

	return s.repo.ListProducts(ctx, filter)
}

// GetProductDetail returns a product with its current price board and comments
func (s *CatalogService) GetProductDetail(ctx context.Context, id int64) (*models.ProductDetail, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProductDetail")
	defer span.End()

	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	prices, err := s.repo.LatestPrices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	comments, err := s.repo.ListComments(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	return &models.ProductDetail{Product: *product, Prices: prices, Comments: comments}, nil
}

// CreateProduct creates a product, classifying its game and type
func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	product := req.toModel()
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product %q: %w", req.Name, err)
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// CreateProductsBulk creates all products or none
func (s *CatalogService) CreateProductsBulk(ctx context.Context, reqs []CreateProductRequest) ([]*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProductsBulk")
	defer span.End()

	products := make([]*models.Product, 0, len(reqs))
	for i := range reqs {
		products = append(products, reqs[i].toModel())
	}

	if err := s.repo.CreateProducts(ctx, products); err != nil {
		return nil, fmt.Errorf("failed to create products: %w", err)
	}

	s.logger.Info("Products created", zap.Int("count", len(products)))
	return products, nil
}

// CreateStore creates a store
func (s *CatalogService) CreateStore(ctx context.Context, req *CreateStoreRequest) (*models.Store, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateStore")
	defer span.End()

	st := &models.Store{Name: req.Name, WebsiteURL: req.WebsiteURL}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to create store %q: %w", req.Name, err)
	}
	return st, nil
}

// GetStore returns one store
func (s *CatalogService) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	return s.getStore(ctx, id)
}

// ListStores returns every store
func (s *CatalogService) ListStores(ctx context.Context) ([]models.Store, error) {
	return s.repo.ListStores(ctx)
}

// RecordPrice appends a price observation and ratchets the product's min price
func (s *CatalogService) RecordPrice(ctx context.Context, req *CreatePriceRequest) (*models.Price, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.RecordPrice")
	defer span.End()

	product, err := s.getProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getStore(ctx, req.StoreID); err != nil {
		return nil, err
	}

	price := &models.Price{
		ProductID: req.ProductID,
		StoreID:   req.StoreID,
		Price:     req.Price,
		URL:       req.URL,
	}
	if req.ScrappedAt != nil {
		price.ScrappedAt = *req.ScrappedAt
	}

	lowered, err := s.repo.AppendPrice(ctx, price)
	if err != nil {
		return nil, fmt.Errorf("failed to record price: %w", err)
	}

	publishPriceEvents(ctx, s.publisher, s.logger, product, price, lowered)
	return price, nil
}

// ListPrices returns a product's price history or, with latestOnly, its
// current price per store. storeID narrows either shape to one store.
func (s *CatalogService) ListPrices(ctx context.Context, productID int64, storeID *int64, latestOnly bool) ([]models.PriceWithStore, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListPrices")
	defer span.End()

	if _, err := s.getProduct(ctx, productID); err != nil {
		return nil, err
	}
	if storeID != nil {
		if _, err := s.getStore(ctx, *storeID); err != nil {
			return nil, err
		}
	}

	if !latestOnly {
		return s.repo.ListPrices(ctx, productID, storeID)
	}

	latest, err := s.repo.LatestPrices(ctx, productID)
	if err != nil || storeID == nil {
		return latest, err
	}
	filtered := []models.PriceWithStore{}
	for _, p := range latest {
		if p.Store.ID == *storeID {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// CreateComment attaches a comment to a product
func (s *CatalogService) CreateComment(ctx context.Context, req *CreateCommentRequest) (*models.Comment, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateComment")
	defer span.End()

	if _, err := s.getProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}

	comment := &models.Comment{User: req.User, ProductID: req.ProductID, Text: req.Text}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// ListComments returns a product's comments
func (s *CatalogService) ListComments(ctx context.Context, productID int64) ([]models.Comment, error) {
	if _, err := s.getProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, productID)
}

// CreateReview stores a review unless the user already reviewed the store,
// in which case the existing review is returned unchanged with created=false.
func (s *CatalogService) CreateReview(ctx context.Context, req *CreateReviewRequest) (*models.Review, bool, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateReview")
	defer span.End()

	if req.Rating < 1 || req.Rating > 5 {
		return nil, false, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if _, err := s.getStore(ctx, req.StoreID); err != nil {
		return nil, false, err
	}

	review, created, err := s.repo.CreateReview(ctx, &models.Review{User: req.User, StoreID: req.StoreID, Rating: req.Rating})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, ErrStoreNotFound
		}
		return nil, false, fmt.Errorf("failed to create review: %w", err)
	}

	if !created {
		s.logger.Info("Duplicate review ignored",
			zap.Int64("store_id", req.StoreID),
			zap.String("user", req.User),
			zap.Int64("review_id", review.ID))
	}
	return review, created, nil
}

// ListReviews returns a store's reviews
func (s *CatalogService) ListReviews(ctx context.Context, storeID int64) ([]models.Review, error) {
	if _, err := s.getStore(ctx, storeID); err != nil {
		return nil, err
	}
	return s.repo.ListReviews(ctx, storeID)
}

// Ping checks the catalog backend
func (s *CatalogService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *CatalogService) getProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *CatalogService) getStore(ctx context.Context, id int64) (*models.Store, error) {
	st, err := s.repo.GetStoreByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStoreNotFound
	}
	return st, err
}

// publishPriceEvents emits PriceRecorded and, when the ratchet fired,
// MinPriceLowered. Failures are logged only.
func publishPriceEvents(ctx context.Context, publisher broker.Publisher, logger *zap.Logger, product *models.Product, price *models.Price, lowered bool) {
	util.PricesRecordedTotal.Inc()

	if err := publisher.PublishPriceRecorded(ctx, &models.PriceRecordedEvent{
		BaseEvent:  broker.NewBaseEvent(models.EventTypePriceRecorded),
		PriceID:    price.ID,
		ProductID:  price.ProductID,
		StoreID:    price.StoreID,
		Price:      price.Price,
		URL:        price.URL,
		ScrappedAt: price.ScrappedAt,
	}); err != nil {
		logger.Warn("Failed to publish PriceRecorded event", zap.Int64("price_id", price.ID), zap.Error(err))
	}

	if !lowered {
		return
	}
	util.MinPriceLoweredTotal.Inc()

	if err := publisher.PublishMinPriceLowered(ctx, &models.MinPriceLoweredEvent{
		BaseEvent:   broker.NewBaseEvent(models.EventTypeMinPriceLowered),
		ProductID:   product.ID,
		ProductName: product.Name,
		StoreID:     price.StoreID,
		MinPrice:    price.Price,
	}); err != nil {
		logger.Warn("Failed to publish MinPriceLowered event", zap.Int64("product_id", product.ID), zap.Error(err))
	}
}
