package services

import (
	"context"
	"sync"
)

// enrichLimiter bounds concurrent enrichment work within a sync run.
// Embedding calls go to an external API, so the fan-out stays small.
type enrichLimiter struct {
	sem chan struct{}

	mu     sync.Mutex
	active int
	peak   int
}

func newEnrichLimiter(size int) *enrichLimiter {
	if size < 1 {
		size = 1
	}
	return &enrichLimiter{sem: make(chan struct{}, size)}
}

// acquire blocks until a slot is free or ctx is cancelled. The returned
// release function must be called exactly once.
func (l *enrichLimiter) acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	l.active++
	if l.active > l.peak {
		l.peak = l.active
	}
	l.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			l.active--
			l.mu.Unlock()
			<-l.sem
		})
	}
	return release, nil
}

// Active returns the number of slots currently held
func (l *enrichLimiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Peak returns the highest concurrent slot count seen
func (l *enrichLimiter) Peak() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}
