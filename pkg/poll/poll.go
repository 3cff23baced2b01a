// Package poll implements the conditional-GET polling cache used for live
// prediction data.
//
// A Cache wraps one endpoint. Each Tick performs a fetch carrying the
// previous response's Last-Modified value as If-Modified-Since; a 304 leaves
// the cached data untouched, a 200 replaces it and bumps LastUpdated. The
// caller owns the interval (the TUI drives Tick from a tea.Tick command).
//
// Overlap between a timer tick and a manual Refetch is resolved by skipping:
// at most one fetch is in flight per Cache, and a Tick arriving while one is
// outstanding is dropped rather than racing it.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/risksurface/surf/internal/respcache"
	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/debug"
)

// RateLimitMessage is the user-facing text for a 429 answer.
const RateLimitMessage = "rate limited, backing off"

// UnavailableMessage is the user-facing text for any other failure.
const UnavailableMessage = "predictions unavailable, will retry"

// Fetch performs one conditional request. ifModifiedSince is empty for an
// unconditional fetch. Implementations return the body and the response's
// Last-Modified header on 200, api.ErrNotModified on 304, api.ErrRateLimited
// on 429, and api.ErrUnavailable otherwise.
type Fetch func(ctx context.Context, ifModifiedSince string) (body []byte, lastModified string, err error)

// Result is a point-in-time view of the cache state.
type Result struct {
	Data        []byte
	LastUpdated time.Time
	Loading     bool
	ErrMessage  string // "" when healthy
	RateLimited bool
}

// Cache holds the polled state for one endpoint.
type Cache struct {
	endpoint string
	fetch    Fetch
	store    *respcache.Store // optional persistence, may be nil

	mu           sync.Mutex
	inFlight     bool
	loading      bool
	data         []byte
	lastModified string
	lastUpdated  time.Time
	errMessage   string
	rateLimited  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore persists responses so a restart starts warm.
func WithStore(store *respcache.Store) Option {
	return func(c *Cache) { c.store = store }
}

// New creates a cache for endpoint backed by fetch. When a store is
// configured and holds a previous response, the cache starts warm: the old
// body is served immediately and the stored validator makes the first poll
// conditional.
func New(endpoint string, fetch Fetch, opts ...Option) *Cache {
	c := &Cache{endpoint: endpoint, fetch: fetch}
	for _, opt := range opts {
		opt(c)
	}
	if c.store != nil {
		if entry, ok, err := c.store.Get(endpoint); err == nil && ok {
			c.data = entry.Body
			c.lastModified = entry.LastModified
			c.lastUpdated = entry.FetchedAt
		}
	}
	return c
}

// Snapshot returns the current cache state.
func (c *Cache) Snapshot() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Result{
		Data:        c.data,
		LastUpdated: c.lastUpdated,
		Loading:     c.loading,
		ErrMessage:  c.errMessage,
		RateLimited: c.rateLimited,
	}
}

// Tick performs one conditional fetch. It reports whether the fetch ran; a
// tick that would overlap an in-flight fetch is skipped.
func (c *Cache) Tick(ctx context.Context) bool {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		debug.Log("poll: %s tick skipped, fetch in flight", c.endpoint)
		return false
	}
	c.inFlight = true
	validator := c.lastModified
	c.mu.Unlock()

	c.run(ctx, validator)
	return true
}

// Refetch clears the validator and forces an unconditional fetch, flipping
// Loading for its duration. Like Tick, it is skipped while a fetch is
// outstanding.
func (c *Cache) Refetch(ctx context.Context) bool {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return false
	}
	c.inFlight = true
	c.loading = true
	c.lastModified = ""
	c.mu.Unlock()

	c.run(ctx, "")
	return true
}

func (c *Cache) run(ctx context.Context, validator string) {
	body, lastModified, err := c.fetch(ctx, validator)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	c.loading = false

	switch {
	case err == nil:
		c.data = body
		c.lastModified = lastModified
		c.lastUpdated = time.Now()
		c.errMessage = ""
		c.rateLimited = false
		if c.store != nil {
			entry := respcache.Entry{Body: body, LastModified: lastModified, FetchedAt: c.lastUpdated}
			if perr := c.store.Put(c.endpoint, entry); perr != nil {
				debug.Log("poll: persisting %s: %v", c.endpoint, perr)
			}
		}
	case errors.Is(err, api.ErrNotModified):
		// Existing data retained; no state change at all.
	case errors.Is(err, api.ErrRateLimited):
		c.errMessage = RateLimitMessage
		c.rateLimited = true
	default:
		c.errMessage = UnavailableMessage
		c.rateLimited = false
	}
}
