// Package urlpool maintains a FIFO of presigned object-storage PUT URLs and
// coalesces concurrent refills so that many Take() misses in flight at once
// result in a single fetch, not one per caller.
package urlpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

// Fetcher fetches count fresh presigned URLs from the catalog service.
type Fetcher interface {
	FetchPresignedURLs(ctx context.Context, count int) ([]models.PresignedURL, error)
}

// Pool is safe for concurrent use.
type Pool struct {
	fetcher Fetcher

	mu   sync.Mutex
	urls []models.PresignedURL

	group singleflight.Group
}

// New returns an empty pool backed by fetcher.
func New(fetcher Fetcher) *Pool {
	return &Pool{fetcher: fetcher}
}

// Take pops one URL, refilling first if the pool is empty. queueSize sizes
// the refill request: min(MaxPresignedURLFetch, 2*queueSize).
func (p *Pool) Take(ctx context.Context, queueSize int) (models.PresignedURL, error) {
	p.mu.Lock()
	if len(p.urls) > 0 {
		u := p.urls[0]
		p.urls = p.urls[1:]
		p.mu.Unlock()
		return u, nil
	}
	p.mu.Unlock()

	if err := p.refill(ctx, queueSize); err != nil {
		return models.PresignedURL{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.urls) == 0 {
		return models.PresignedURL{}, fmt.Errorf("urlpool: refill returned no urls")
	}
	u := p.urls[0]
	p.urls = p.urls[1:]
	return u, nil
}

func (p *Pool) refill(ctx context.Context, queueSize int) error {
	count := 2 * queueSize
	if count <= 0 {
		count = 1
	}
	if count > constants.MaxPresignedURLFetch {
		count = constants.MaxPresignedURLFetch
	}

	// Concurrent callers share one in-flight fetch; the group key is
	// constant because there is only ever one refill operation meaningful
	// for this pool at a time.
	_, err, _ := p.group.Do("refill", func() (interface{}, error) {
		urls, ferr := p.fetcher.FetchPresignedURLs(ctx, count)
		if ferr != nil {
			return nil, ferr
		}
		p.mu.Lock()
		p.urls = append(p.urls, urls...)
		p.mu.Unlock()
		return nil, nil
	})
	return err
}

// ResetCoalescing clears any remembered in-flight/failed refill state so
// the next Take() attempts a fresh fetch. Called when a
// SubscriptionPurchased event arrives, since the prior session-terminal
// state (no active plan) no longer applies.
func (p *Pool) ResetCoalescing() {
	p.group = singleflight.Group{}
}

// Clear empties the pool, used when the queue is cleared session-wide.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = nil
}

// IsSessionTerminal reports whether err from a refill should clear the
// entire upload queue rather than just fail the current Take().
func IsSessionTerminal(err error) bool {
	return errors.Is(err, uploaderrors.ErrNoActiveSubscription) || errors.Is(err, uploaderrors.ErrStorageLimitExceeded)
}
