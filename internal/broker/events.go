package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-service/internal/models"
	"catalog-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher emits catalog domain events
type Publisher interface {
	PublishPriceRecorded(ctx context.Context, event *models.PriceRecordedEvent) error
	PublishMinPriceLowered(ctx context.Context, event *models.MinPriceLoweredEvent) error
	PublishBatchIngested(ctx context.Context, event *models.BatchIngestedEvent) error
}

// NewBaseEvent stamps a fresh event id and time
func NewBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func productKey(productID int64) string {
	return fmt.Sprintf("product-%d", productID)
}

// PublishPriceRecorded publishes PriceRecorded event
func (ep *EventPublisher) PublishPriceRecorded(ctx context.Context, event *models.PriceRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishMinPriceLowered publishes MinPriceLowered event
func (ep *EventPublisher) PublishMinPriceLowered(ctx context.Context, event *models.MinPriceLoweredEvent) error {
	return ep.producer.PublishEvent(ctx, productKey(event.ProductID), event)
}

// PublishBatchIngested publishes BatchIngested event
func (ep *EventPublisher) PublishBatchIngested(ctx context.Context, event *models.BatchIngestedEvent) error {
	return ep.producer.PublishEvent(ctx, "batch-"+event.EventID, event)
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishPriceRecorded(context.Context, *models.PriceRecordedEvent) error {
	return nil
}

func (NopPublisher) PublishMinPriceLowered(context.Context, *models.MinPriceLoweredEvent) error {
	return nil
}

func (NopPublisher) PublishBatchIngested(context.Context, *models.BatchIngestedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onScrapeBatch func(context.Context, *models.ScrapeBatchEvent) error
	logger        *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnScrapeBatch registers a handler for ScrapeBatch events
func (eh *EventHandler) OnScrapeBatch(handler func(context.Context, *models.ScrapeBatchEvent) error) {
	eh.onScrapeBatch = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeScrapeBatch:
		if eh.onScrapeBatch != nil {
			var event models.ScrapeBatchEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ScrapeBatch event: %w", err)
			}
			return eh.onScrapeBatch(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

var (
	_ Publisher = (*EventPublisher)(nil)
	_ Publisher = NopPublisher{}
)
