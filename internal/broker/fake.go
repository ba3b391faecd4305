package broker

import (
	"context"
	"sync"

	"github.com/webhookhub/webhookhub/internal/domain"
)

// FakePublisher is an in-memory Publisher for tests that don't need a real
// broker connection — it just records what was published.
type FakePublisher struct {
	mu       sync.Mutex
	Delivery []domain.DeliveryJob
	Retry    []RetryCall
	Dead     []domain.DeliveryJob
}

type RetryCall struct {
	Job     domain.DeliveryJob
	DelayMs int64
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishDelivery(ctx context.Context, job domain.DeliveryJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Delivery = append(f.Delivery, job)
	return nil
}

func (f *FakePublisher) PublishRetry(ctx context.Context, job domain.DeliveryJob, delayMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Retry = append(f.Retry, RetryCall{Job: job, DelayMs: delayMs})
	return nil
}

func (f *FakePublisher) PublishDead(ctx context.Context, job domain.DeliveryJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Dead = append(f.Dead, job)
	return nil
}
