package blobstore

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig bounds the load a Throttled store puts on its backend.
type ThrottleConfig struct {
	// BytesPerSec limits transferred bytes. Zero means unlimited.
	BytesPerSec int

	// MaxConcurrent limits in-flight requests. Zero means unlimited.
	MaxConcurrent int64
}

// Throttled wraps a Store with a byte rate limit and a concurrency cap.
type Throttled struct {
	store   Store
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// NewThrottled creates a throttled view of store.
func NewThrottled(store Store, cfg ThrottleConfig) *Throttled {
	t := &Throttled{store: store}
	if cfg.BytesPerSec > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), cfg.BytesPerSec)
	}
	if cfg.MaxConcurrent > 0 {
		t.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return t
}

func (t *Throttled) acquire(ctx context.Context) (func(), error) {
	if t.sem == nil {
		return func() {}, nil
	}
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { t.sem.Release(1) }, nil
}

// wait blocks until n bytes may be transferred. Requests larger than the
// burst are admitted in burst-sized steps.
func (t *Throttled) wait(ctx context.Context, n int) error {
	if t.limiter == nil {
		return nil
	}
	burst := t.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := t.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func (t *Throttled) Put(ctx context.Context, name string, data []byte) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := t.wait(ctx, len(data)); err != nil {
		return err
	}
	return t.store.Put(ctx, name, data)
}

func (t *Throttled) Get(ctx context.Context, name string) ([]byte, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	data, err := t.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := t.wait(ctx, len(data)); err != nil {
		return nil, err
	}
	return data, nil
}

func (t *Throttled) Exists(ctx context.Context, name string) (bool, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	return t.store.Exists(ctx, name)
}

func (t *Throttled) List(ctx context.Context, prefix string) ([]string, error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return t.store.List(ctx, prefix)
}

func (t *Throttled) Delete(ctx context.Context, name string) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return t.store.Delete(ctx, name)
}
