// Package engine owns the fetch → extract → reconcile → persist cycle and
// the cached read paths the API serves from.
package engine

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"hnjobs-engine/internal/cache"
	"hnjobs-engine/internal/config"
	"hnjobs-engine/internal/events"
	"hnjobs-engine/internal/extract"
	"hnjobs-engine/internal/fetch"
	"hnjobs-engine/internal/reconcile"
	"hnjobs-engine/internal/store"
)

// ErrRefreshRunning is returned when a refresh cycle is requested while one
// is already in flight. The cycle is not reentrant-safe against the same
// store, so overlapping runs are refused rather than serialized.
var ErrRefreshRunning = errors.New("refresh cycle already running")

const snapshotKey = "postings"

// snapshotLimit bounds the materialized result set held by the cache.
const snapshotLimit = 1000

type Summary struct {
	Scraped int `json:"total_scraped"`
	New     int `json:"new_postings"`
}

type RefreshStatus struct {
	LastRunAt   string `json:"last_run_at"`
	LastOkAt    string `json:"last_ok_at"`
	LastError   string `json:"last_error"`
	LastScraped int    `json:"last_scraped"`
	LastNew     int    `json:"last_new"`
	Running     bool   `json:"running"`
}

type Engine struct {
	cfg     config.Config
	db      *store.DB
	fetcher *fetch.Client
	cache   *cache.Cache
	hub     *events.Hub

	mu      sync.Mutex
	running bool
	status  atomic.Value // RefreshStatus
}

func New(cfg config.Config, db *store.DB, fetcher *fetch.Client, c *cache.Cache, hub *events.Hub) *Engine {
	e := &Engine{cfg: cfg, db: db, fetcher: fetcher, cache: c, hub: hub}
	e.status.Store(RefreshStatus{})
	return e
}

// RunRefreshCycle performs one full reconciliation pass. A fetch or store
// failure aborts the whole cycle before anything is committed; per-title
// extraction trouble degrades to nil fields instead. Only one cycle may run
// at a time.
func (e *Engine) RunRefreshCycle(ctx context.Context) (Summary, error) {
	if err := e.begin(); err != nil {
		return Summary{}, err
	}

	summary, err := e.runLocked(ctx)
	e.finish(summary, err)

	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (e *Engine) runLocked(ctx context.Context) (Summary, error) {
	raws, err := e.fetchListings(ctx)
	if err != nil {
		return Summary{}, err
	}

	ids := make([]string, 0, len(raws))
	for _, r := range raws {
		ids = append(ids, r.ExternalID)
	}
	seen, err := e.db.ExistingIDs(ctx, ids)
	if err != nil {
		return Summary{}, err
	}

	classified := reconcile.Classify(raws, seen)

	inserted, err := e.db.UpsertNew(ctx, classified)
	if err != nil {
		return Summary{}, err
	}

	e.cache.Invalidate(snapshotKey)

	if e.hub != nil {
		for _, p := range classified {
			if p.IsNew {
				e.hub.Publish("posting_created", map[string]any{
					"external_id": p.ExternalID,
					"title":       p.Title,
				})
			}
		}
		e.hub.Publish("refresh_completed", Summary{Scraped: len(classified), New: inserted})
	}

	log.Printf("[refresh] ok scraped=%d new=%d", len(classified), inserted)
	return Summary{Scraped: len(classified), New: inserted}, nil
}

// fetchListings walks the listing pages by following the source's "More"
// cursor, up to the configured page count, and returns the postings in the
// source's display order. The walk is sequential; each page's cursor is only
// known after parsing it. Any page failure fails the cycle; nothing is
// committed on partials.
func (e *Engine) fetchListings(ctx context.Context) ([]extract.RawPosting, error) {
	pageURL := e.cfg.Source.URL
	var out []extract.RawPosting

	for page := 0; page < e.cfg.Source.Pages; page++ {
		body, err := e.fetcher.Get(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		listing, err := extract.ParseListing(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		out = append(out, listing.Postings...)

		if listing.NextHref == "" {
			break
		}
		next, err := resolveRef(pageURL, listing.NextHref)
		if err != nil {
			break
		}
		pageURL = next
	}
	return out, nil
}

// resolveRef makes the site-relative More href absolute against the page it
// came from.
func resolveRef(current, href string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRefreshRunning
	}
	e.running = true

	st := e.status.Load().(RefreshStatus)
	st.Running = true
	st.LastRunAt = time.Now().UTC().Format(time.RFC3339)
	e.status.Store(st)
	return nil
}

func (e *Engine) finish(summary Summary, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false

	st := e.status.Load().(RefreshStatus)
	st.Running = false
	st.LastScraped = summary.Scraped
	st.LastNew = summary.New
	if err != nil {
		st.LastError = err.Error()
	} else {
		st.LastError = ""
		st.LastOkAt = time.Now().UTC().Format(time.RFC3339)
	}
	e.status.Store(st)
}

func (e *Engine) Status() RefreshStatus {
	return e.status.Load().(RefreshStatus)
}

type listingSnapshot struct {
	postings []store.Posting
	total    int
}

// Snapshot serves the recent result set through the TTL cache, so read
// bursts between refreshes hit the store once. The cached rows are capped at
// snapshotLimit; total is the true store count, so callers can tell when a
// requested window runs past the cached tail.
func (e *Engine) Snapshot(ctx context.Context) ([]store.Posting, int, error) {
	v, err := e.cache.GetOrCompute(snapshotKey, func() (any, error) {
		postings, total, err := e.db.Query(ctx, store.QueryOpts{
			Page:     1,
			Limit:    snapshotLimit,
			MaxLimit: snapshotLimit,
		})
		if err != nil {
			return nil, err
		}
		return listingSnapshot{postings: postings, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	snap := v.(listingSnapshot)
	return snap.postings, snap.total, nil
}

func (e *Engine) Query(ctx context.Context, opts store.QueryOpts) ([]store.Posting, int, error) {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = e.cfg.API.MaxPageSize
	}
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.API.DefaultPageSize
	}
	return e.db.Query(ctx, opts)
}

func (e *Engine) Stats(ctx context.Context) (store.Stats, error) {
	return e.db.Stats(ctx)
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.db.Ping(ctx)
}

// CacheAgeSeconds reports the snapshot's age, nil when nothing is cached.
func (e *Engine) CacheAgeSeconds() *float64 {
	age, ok := e.cache.Age(snapshotKey)
	if !ok {
		return nil
	}
	s := age.Seconds()
	return &s
}
