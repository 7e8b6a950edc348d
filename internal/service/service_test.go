package service

import (
	"context"
	"sync"

	"catalog-service/internal/models"
	"catalog-service/internal/store"
)

type recordingPublisher struct {
	mu            sync.Mutex
	priceRecorded []*models.PriceRecordedEvent
	minLowered    []*models.MinPriceLoweredEvent
	batches       []*models.BatchIngestedEvent
}

func (p *recordingPublisher) PublishPriceRecorded(ctx context.Context, event *models.PriceRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priceRecorded = append(p.priceRecorded, event)
	return nil
}

func (p *recordingPublisher) PublishMinPriceLowered(ctx context.Context, event *models.MinPriceLoweredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minLowered = append(p.minLowered, event)
	return nil
}

func (p *recordingPublisher) PublishBatchIngested(ctx context.Context, event *models.BatchIngestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, event)
	return nil
}

// faultyRepo fails AppendPrice for one price value, inside the transaction
type faultyRepo struct {
	store.Repository
	failPrice int64
	err       error
}

func (f *faultyRepo) InTx(ctx context.Context, fn func(repo store.Repository) error) error {
	return f.Repository.InTx(ctx, func(repo store.Repository) error {
		return fn(&faultyRepo{Repository: repo, failPrice: f.failPrice, err: f.err})
	})
}

func (f *faultyRepo) AppendPrice(ctx context.Context, price *models.Price) (bool, error) {
	if price.Price == f.failPrice {
		return false, f.err
	}
	return f.Repository.AppendPrice(ctx, price)
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
