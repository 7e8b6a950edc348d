package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"catalog-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestEventPublisher_KeysByProduct(t *testing.T) {
	writer := &recordingWriter{}
	publisher := NewEventPublisher(NewProducerWithWriter(writer))

	event := &models.MinPriceLoweredEvent{
		BaseEvent:   NewBaseEvent(models.EventTypeMinPriceLowered),
		ProductID:   42,
		ProductName: "Booster",
		StoreID:     7,
		MinPrice:    990,
	}
	require.NoError(t, publisher.PublishMinPriceLowered(context.Background(), event))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "product-42", string(writer.messages[0].Key))

	var decoded models.MinPriceLoweredEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, models.EventTypeMinPriceLowered, decoded.EventType)
	assert.Equal(t, int64(990), decoded.MinPrice)
	assert.NotEmpty(t, decoded.EventID)
}

func TestEventPublisher_WriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	publisher := NewEventPublisher(NewProducerWithWriter(writer))

	err := publisher.PublishPriceRecorded(context.Background(), &models.PriceRecordedEvent{ProductID: 1})
	assert.ErrorContains(t, err, "broker down")
}

func TestEventHandler_RoutesScrapeBatch(t *testing.T) {
	handler := NewEventHandler()

	var got *models.ScrapeBatchEvent
	handler.OnScrapeBatch(func(ctx context.Context, event *models.ScrapeBatchEvent) error {
		got = event
		return nil
	})

	body := `{"event_id":"b-1","event_type":"SCRAPE_BATCH","results":[{"name":"Box","store":"Shop","url":"https://shop.example/box","price":1000,"game":"pokemon","product_type":"booster","timestamp":""}]}`
	require.NoError(t, handler.HandleMessage(context.Background(), kafka.Message{Value: []byte(body)}))

	require.NotNil(t, got)
	assert.Equal(t, "b-1", got.EventID)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "Box", got.Results[0].Name)
}

func TestEventHandler_IgnoresUnknownAndRejectsGarbage(t *testing.T) {
	handler := NewEventHandler()

	assert.NoError(t, handler.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)}))
	assert.Error(t, handler.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)}))
}
