package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for ingestion metrics
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeExisting = "existing"
)

var (
	IngestItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_items_total",
		Help: "Total number of scraped items processed by outcome",
	}, []string{"outcome"})

	IngestBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_batches_total",
		Help: "Total number of ingested batches by source",
	}, []string{"source"})

	IngestBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_batch_duration_seconds",
		Help:    "Time taken to reconcile a batch",
		Buckets: prometheus.DefBuckets,
	})

	ImageStageTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_stage_total",
		Help: "Total number of image staging attempts by outcome",
	}, []string{"outcome"})

	ImageFetchAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "image_fetch_attempts_total",
		Help: "Total number of outbound image download attempts",
	})

	MinPriceLoweredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "min_price_lowered_total",
		Help: "Total number of times a product min price was lowered",
	})

	PricesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prices_recorded_total",
		Help: "Total number of price observations recorded",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
