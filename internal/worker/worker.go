package worker

import (
	"context"
	"fmt"
	"time"

	"catalog-service/internal/broker"
	"catalog-service/internal/models"
	"catalog-service/internal/service"
	"catalog-service/internal/util"

	"go.uber.org/zap"
)

// BatchClaimer records which scrape batches have already been ingested so
// that a redelivered event is not applied twice.
type BatchClaimer interface {
	ClaimBatch(ctx context.Context, id string, ttl time.Duration) (bool, error)
	ReleaseBatch(ctx context.Context, id string) error
}

// BatchWorker ingests scrape batches published on Kafka
type BatchWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	ingest       *service.IngestService
	claimer      BatchClaimer
	claimTTL     time.Duration
	logger       *zap.Logger
}

// NewBatchWorker creates a new batch worker. claimer may be nil, in which
// case every delivery is ingested.
func NewBatchWorker(
	consumer *broker.Consumer,
	ingest *service.IngestService,
	claimer BatchClaimer,
	claimTTL time.Duration,
) *BatchWorker {
	if claimTTL <= 0 {
		claimTTL = 24 * time.Hour
	}

	w := &BatchWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ingest:       ingest,
		claimer:      claimer,
		claimTTL:     claimTTL,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnScrapeBatch(w.handleScrapeBatch)
	return w
}

// Start consumes until ctx is done
func (w *BatchWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting batch worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *BatchWorker) Stop() error {
	w.logger.Info("Stopping batch worker")
	return w.consumer.Close()
}

func (w *BatchWorker) handleScrapeBatch(ctx context.Context, event *models.ScrapeBatchEvent) error {
	ctx, span := util.StartSpan(ctx, "BatchWorker.handleScrapeBatch")
	defer span.End()

	if w.claimer != nil && event.EventID != "" {
		claimed, err := w.claimer.ClaimBatch(ctx, event.EventID, w.claimTTL)
		if err != nil {
			// A duplicate delivery only appends prices.
			w.logger.Warn("Failed to claim batch, ingesting anyway",
				zap.String("event_id", event.EventID),
				zap.Error(err))
		} else if !claimed {
			w.logger.Info("Skipping already ingested batch", zap.String("event_id", event.EventID))
			return nil
		}
	}

	report := w.ingest.ProcessBatchFrom(ctx, service.SourceKafka, event.Results)

	if ctx.Err() != nil && report.ProcessedCount < report.TotalItems {
		// Let the message be redelivered after shutdown.
		if w.claimer != nil && event.EventID != "" {
			if err := w.claimer.ReleaseBatch(context.Background(), event.EventID); err != nil {
				w.logger.Warn("Failed to release batch claim",
					zap.String("event_id", event.EventID),
					zap.Error(err))
			}
		}
		return fmt.Errorf("batch %s interrupted: %w", event.EventID, ctx.Err())
	}

	w.logger.Info("Scrape batch consumed",
		zap.String("event_id", event.EventID),
		zap.Int("processed", report.ProcessedCount),
		zap.Int("errors", report.ErrorCount))
	return nil
}
