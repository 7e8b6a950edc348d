package models

import "time"

// Event types
const (
	EventTypePriceRecorded   = "PRICE_RECORDED"
	EventTypeMinPriceLowered = "MIN_PRICE_LOWERED"
	EventTypeBatchIngested   = "BATCH_INGESTED"
	EventTypeScrapeBatch     = "SCRAPE_BATCH"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceRecordedEvent published after a price observation is committed
type PriceRecordedEvent struct {
	BaseEvent
	PriceID    int64     `json:"price_id"`
	ProductID  int64     `json:"product_id"`
	StoreID    int64     `json:"store_id"`
	Price      int64     `json:"price"`
	URL        string    `json:"url"`
	ScrappedAt time.Time `json:"scrapped_at"`
}

// MinPriceLoweredEvent published when a product's running minimum drops
type MinPriceLoweredEvent struct {
	BaseEvent
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	StoreID     int64  `json:"store_id"`
	MinPrice    int64  `json:"min_price"`
}

// BatchIngestedEvent summarizes a finished ingestion batch
type BatchIngestedEvent struct {
	BaseEvent
	Source         string `json:"source"`
	ProcessedCount int    `json:"processed_count"`
	TotalItems     int    `json:"total_items"`
	ErrorCount     int    `json:"error_count"`
}

// ScrapeBatchEvent carries a scraper batch through the broker
type ScrapeBatchEvent struct {
	BaseEvent
	Results []ScrapperItem `json:"results"`
}
