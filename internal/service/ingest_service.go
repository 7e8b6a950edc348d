package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"catalog-service/internal/broker"
	"catalog-service/internal/models"
	"catalog-service/internal/store"
	"catalog-service/internal/taxonomy"
	"catalog-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Batch sources
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// ImageStager copies an external image into object storage and returns its URL
type ImageStager interface {
	Stage(ctx context.Context, imageURL, productName, game string) (string, error)
}

// DefaultStageTimeout bounds one item's image staging, retries included
const DefaultStageTimeout = 45 * time.Second

// IngestService reconciles scraped batches into the catalog
type IngestService struct {
	repo         store.Repository
	stager       ImageStager
	publisher    broker.Publisher
	stageTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// IngestOption customises an IngestService
type IngestOption func(*IngestService)

// WithStageTimeout sets the per-item image staging budget
func WithStageTimeout(d time.Duration) IngestOption {
	return func(s *IngestService) {
		if d > 0 {
			s.stageTimeout = d
		}
	}
}

// NewIngestService creates a new ingest service. A nil stager keeps the
// scraped image URL as-is.
func NewIngestService(repo store.Repository, stager ImageStager, publisher broker.Publisher, opts ...IngestOption) *IngestService {
	if publisher == nil {
		publisher = broker.NopPublisher{}
	}
	s := &IngestService{
		repo:         repo,
		stager:       stager,
		publisher:    publisher,
		stageTimeout: DefaultStageTimeout,
		logger:       util.GetLogger(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// itemResult is the outcome of one item: either the committed rows or an error
type itemResult struct {
	product *models.Product
	price   *models.Price
	lowered bool
	err     error
}

// ProcessBatch ingests items received over HTTP
func (s *IngestService) ProcessBatch(ctx context.Context, items []models.ScrapperItem) *models.BatchReport {
	return s.ProcessBatchFrom(ctx, SourceHTTP, items)
}

// ProcessBatchFrom ingests items in order, each in its own transaction.
// A failing item is reported and never affects the others.
func (s *IngestService) ProcessBatchFrom(ctx context.Context, source string, items []models.ScrapperItem) *models.BatchReport {
	ctx, span := util.StartSpan(ctx, "IngestService.ProcessBatch",
		attribute.String("source", source),
		attribute.Int("items", len(items)))
	defer span.End()

	start := time.Now()
	report := &models.BatchReport{TotalItems: len(items)}

	for i := range items {
		item := &items[i]
		res := s.processItem(ctx, item)

		if res.err != nil {
			msg := formatItemError(item.Name, res.err)
			report.Errors = append(report.Errors, msg)
			util.IngestItemsTotal.WithLabelValues(util.OutcomeError).Inc()
			s.logger.Warn("Item ingestion failed",
				zap.String("item", item.Name),
				zap.String("store", item.Store),
				zap.Error(res.err))
			continue
		}

		report.ProcessedCount++
		util.IngestItemsTotal.WithLabelValues(util.OutcomeOK).Inc()
		publishPriceEvents(ctx, s.publisher, s.logger, res.product, res.price, res.lowered)
	}

	report.ErrorCount = len(report.Errors)
	report.Message = fmt.Sprintf("Successfully processed %d items", report.ProcessedCount)

	util.IngestBatchesTotal.WithLabelValues(source).Inc()
	util.IngestBatchDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("Batch ingested",
		zap.String("source", source),
		zap.Int("processed", report.ProcessedCount),
		zap.Int("total", report.TotalItems),
		zap.Int("errors", report.ErrorCount))

	if err := s.publisher.PublishBatchIngested(ctx, &models.BatchIngestedEvent{
		BaseEvent:      broker.NewBaseEvent(models.EventTypeBatchIngested),
		Source:         source,
		ProcessedCount: report.ProcessedCount,
		TotalItems:     report.TotalItems,
		ErrorCount:     report.ErrorCount,
	}); err != nil {
		s.logger.Warn("Failed to publish BatchIngested event", zap.Error(err))
	}

	return report
}

func formatItemError(name string, err error) string {
	if store.IsPersistenceError(err) {
		return fmt.Sprintf("Error processing item '%s': %v", name, err)
	}
	return fmt.Sprintf("Unexpected error processing item '%s': %v", name, err)
}

func (s *IngestService) processItem(ctx context.Context, item *models.ScrapperItem) itemResult {
	if err := validateItem(item); err != nil {
		return itemResult{err: err}
	}

	baseURL, err := extractBaseURL(item.URL)
	if err != nil {
		return itemResult{err: err}
	}

	imgURL, err := s.stageImageIfNew(ctx, item)
	if err != nil {
		return itemResult{err: err}
	}

	var res itemResult
	err = s.repo.InTx(ctx, func(repo store.Repository) error {
		st, err := repo.GetOrCreateStore(ctx, item.Store, baseURL)
		if err != nil {
			return fmt.Errorf("store %q: %w", item.Store, err)
		}

		product, _, err := repo.GetOrCreateProduct(ctx, &models.Product{
			Name:        item.Name,
			ImgURL:      imgURL,
			Game:        taxonomy.ClassifyGame(item.Game),
			Language:    item.Language,
			Description: item.Description,
			ProductType: taxonomy.ClassifyProductType(item.ProductType),
		})
		if err != nil {
			return fmt.Errorf("product %q: %w", item.Name, err)
		}

		price := &models.Price{
			ProductID:  product.ID,
			StoreID:    st.ID,
			Price:      item.Price,
			URL:        item.URL,
			ScrappedAt: s.parseTimestamp(item.Timestamp),
		}
		lowered, err := repo.AppendPrice(ctx, price)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}

		res = itemResult{product: product, price: price, lowered: lowered}
		return nil
	})
	if err != nil {
		return itemResult{err: err}
	}
	return res
}

// stageImageIfNew stages the item's image only for products not yet in the
// catalog. Staging runs on its own context, detached from the caller's
// deadline and bounded by stageTimeout. Failures degrade to a nil image URL.
func (s *IngestService) stageImageIfNew(ctx context.Context, item *models.ScrapperItem) (*string, error) {
	if item.ImgURL == nil || strings.TrimSpace(*item.ImgURL) == "" {
		return nil, nil
	}

	_, err := s.repo.GetProductByName(ctx, item.Name)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("product lookup %q: %w", item.Name, err)
	}

	if s.stager == nil {
		return item.ImgURL, nil
	}

	stageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.stageTimeout)
	defer cancel()

	staged, err := s.stager.Stage(stageCtx, *item.ImgURL, item.Name, item.Game)
	if err != nil {
		s.logger.Warn("Image staging failed, continuing without image",
			zap.String("item", item.Name),
			zap.String("img_url", *item.ImgURL),
			zap.Error(err))
		return nil, nil
	}
	return &staged, nil
}

var errInvalidItem = errors.New("invalid item")

func validateItem(item *models.ScrapperItem) error {
	switch {
	case strings.TrimSpace(item.Name) == "":
		return fmt.Errorf("%w: name is required", errInvalidItem)
	case strings.TrimSpace(item.Store) == "":
		return fmt.Errorf("%w: store is required", errInvalidItem)
	case item.Price < 0:
		return fmt.Errorf("%w: price must not be negative", errInvalidItem)
	}
	return nil
}

// extractBaseURL reduces a listing URL to scheme://host
func extractBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: url %q: %v", errInvalidItem, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: url %q is not absolute", errInvalidItem, raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts the scraper's timestamp formats; anything else is now
func (s *IngestService) parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.now().UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	s.logger.Debug("Unparseable item timestamp, using now", zap.String("timestamp", raw))
	return s.now().UTC()
}
