package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// ErrKnownFailure is returned for image URLs that recently failed permanently
var ErrKnownFailure = errors.New("image previously failed")

// ImageFetcher downloads an image by URL
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*Image, error)
}

// FailureCache remembers image URLs that cannot be fetched
type FailureCache interface {
	IsImageFailed(ctx context.Context, url string) (bool, error)
	MarkImageFailed(ctx context.Context, url, reason string, ttl time.Duration) error
}

// Stager copies external product images into object storage
type Stager struct {
	fetcher   ImageFetcher
	storage   ObjectStorage
	failures  FailureCache
	failedTTL time.Duration
	logger    *zap.Logger
}

// NewStager creates a stager. failures may be nil.
func NewStager(fetcher ImageFetcher, storage ObjectStorage, failures FailureCache, failedTTL time.Duration, logger *zap.Logger) *Stager {
	if failedTTL <= 0 {
		failedTTL = 24 * time.Hour
	}
	return &Stager{
		fetcher:   fetcher,
		storage:   storage,
		failures:  failures,
		failedTTL: failedTTL,
		logger:    logger,
	}
}

// ObjectKey builds the storage key for a product image
func ObjectKey(productName, game string) string {
	name := SanitizeFilename(productName)
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}
	return SanitizeFilename(game) + "/" + name
}

// Stage uploads the image at imageURL and returns its storage URL
func (s *Stager) Stage(ctx context.Context, imageURL, productName, game string) (string, error) {
	ctx, span := util.StartSpan(ctx, "Stager.Stage")
	defer span.End()

	key := ObjectKey(productName, game)

	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		s.logger.Warn("Object existence check failed", zap.String("key", key), zap.Error(err))
	} else if exists {
		util.ImageStageTotal.WithLabelValues(util.OutcomeExisting).Inc()
		return s.storage.URL(key), nil
	}

	if s.failures != nil {
		failed, err := s.failures.IsImageFailed(ctx, imageURL)
		if err != nil {
			s.logger.Warn("Failed image lookup failed", zap.String("url", imageURL), zap.Error(err))
		} else if failed {
			util.ImageStageTotal.WithLabelValues(util.OutcomeSkipped).Inc()
			return "", fmt.Errorf("%w: %s", ErrKnownFailure, imageURL)
		}
	}

	img, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		util.ImageStageTotal.WithLabelValues(util.OutcomeError).Inc()
		if errors.Is(err, ErrPermanent) && s.failures != nil {
			if markErr := s.failures.MarkImageFailed(ctx, imageURL, err.Error(), s.failedTTL); markErr != nil {
				s.logger.Warn("Failed to cache image failure", zap.String("url", imageURL), zap.Error(markErr))
			}
		}
		return "", fmt.Errorf("download %s: %w", imageURL, err)
	}

	contentType := img.ContentType
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}

	result, err := s.storage.Upload(ctx, key, contentType, img.Data)
	if err != nil {
		util.ImageStageTotal.WithLabelValues(util.OutcomeError).Inc()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	util.ImageStageTotal.WithLabelValues(util.OutcomeOK).Inc()
	s.logger.Info("Image staged", zap.String("key", result.Key), zap.Int("size", result.Size))
	return result.URL, nil
}
