package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hnjobs-engine/internal/cache"
	"hnjobs-engine/internal/config"
	"hnjobs-engine/internal/events"
	"hnjobs-engine/internal/fetch"
	"hnjobs-engine/internal/store"
)

const listingFixture = `
<html><body><table>
<tr class="athing" id="41000001">
  <td class="title"><span class="titleline"><a href="item?id=41000001">Acme Corp is hiring Backend Engineer (Remote)</a></span></td>
</tr>
<tr>
  <td class="subtext"><span class="age" title="2024-01-15T12:34:56"><a href="item?id=41000001">5 hours ago</a></span></td>
</tr>
<tr class="athing" id="41000002">
  <td class="title"><span class="titleline"><a href="item?id=41000002">Widgets Inc seeks Platform Engineer (Berlin)</a></span></td>
</tr>
</table></body></html>`

func testConfig(sourceURL string) config.Config {
	var cfg config.Config
	cfg.Source.URL = sourceURL
	cfg.Source.Pages = 1
	cfg.API.DefaultPageSize = 30
	cfg.API.MaxPageSize = 100
	return cfg
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *store.DB) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	e := New(
		testConfig(srv.URL),
		db,
		fetch.New(5*time.Second, nil),
		cache.New(5*time.Minute),
		events.NewHub(),
	)
	return e, db
}

func TestRunRefreshCycle(t *testing.T) {
	e, db := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingFixture))
	}))
	ctx := context.Background()

	sum, err := e.RunRefreshCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scraped)
	assert.Equal(t, 2, sum.New)

	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 2, st.NewCount)

	status := e.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 2, status.LastScraped)
	assert.NotEmpty(t, status.LastOkAt)
}

func TestRunRefreshCycleSecondPassFindsNothingNew(t *testing.T) {
	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingFixture))
	}))
	ctx := context.Background()

	_, err := e.RunRefreshCycle(ctx)
	require.NoError(t, err)

	sum, err := e.RunRefreshCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scraped)
	assert.Zero(t, sum.New)
}

func TestRunRefreshCycleFetchFailure(t *testing.T) {
	e, db := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	ctx := context.Background()

	_, err := e.RunRefreshCycle(ctx)
	require.Error(t, err)

	var fe *fetch.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.Status)

	// nothing committed on a failed cycle
	st, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)

	status := e.Status()
	assert.False(t, status.Running)
	assert.NotEmpty(t, status.LastError)
	assert.Empty(t, status.LastOkAt)
}

func TestRunRefreshCycleRefusesOverlap(t *testing.T) {
	release := make(chan struct{})
	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(listingFixture))
	}))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.RunRefreshCycle(ctx)
		done <- err
	}()

	// wait until the first cycle holds the lock
	require.Eventually(t, func() bool { return e.Status().Running }, time.Second, 5*time.Millisecond)

	_, err := e.RunRefreshCycle(ctx)
	assert.ErrorIs(t, err, ErrRefreshRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestSnapshotServesFromCache(t *testing.T) {
	var hits atomic.Int32
	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(listingFixture))
	}))
	ctx := context.Background()

	_, err := e.RunRefreshCycle(ctx)
	require.NoError(t, err)

	first, total, err := e.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 2, total)

	second, _, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	age := e.CacheAgeSeconds()
	require.NotNil(t, age)
	assert.GreaterOrEqual(t, *age, 0.0)

	// one fetch for the cycle, none for the snapshot reads
	assert.Equal(t, int32(1), hits.Load())
}

func TestSnapshotReportsTrueTotalBeyondCap(t *testing.T) {
	e, db := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingFixture))
	}))
	ctx := context.Background()

	batch := make([]store.Posting, 0, 1050)
	for i := 0; i < 1050; i++ {
		batch = append(batch, store.Posting{
			ExternalID: fmt.Sprintf("id-%04d", i),
			Title:      "Posting",
			URL:        "u",
			IsNew:      true,
		})
	}
	_, err := db.UpsertNew(ctx, batch)
	require.NoError(t, err)

	postings, total, err := e.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, postings, 1000)
	assert.Equal(t, 1050, total)
}

const pagedListingFixture = `
<html><body><table>
<tr class="athing" id="41000001">
  <td class="title"><span class="titleline"><a href="item?id=41000001">Acme Corp is hiring Backend Engineer (Remote)</a></span></td>
</tr>
<tr class="athing" id="41000002">
  <td class="title"><span class="titleline"><a href="item?id=41000002">Widgets Inc seeks Platform Engineer (Berlin)</a></span></td>
</tr>
</table>
<a class="morelink" href="jobs?next=41000002">More</a>
</body></html>`

const lastListingFixture = `
<html><body><table>
<tr class="athing" id="41000003">
  <td class="title"><span class="titleline"><a href="item?id=41000003">Examplesoft - Site Reliability Engineer</a></span></td>
</tr>
</table></body></html>`

func TestRunRefreshCycleFollowsMoreCursor(t *testing.T) {
	var paths []string
	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		if r.URL.Query().Get("next") != "" {
			_, _ = w.Write([]byte(lastListingFixture))
			return
		}
		_, _ = w.Write([]byte(pagedListingFixture))
	}))
	e.cfg.Source.Pages = 3

	sum, err := e.RunRefreshCycle(context.Background())
	require.NoError(t, err)

	// two pages: the second has no More link, so the walk stops early even
	// though three pages are allowed
	assert.Equal(t, 3, sum.Scraped)
	assert.Equal(t, 3, sum.New)
	require.Len(t, paths, 2)
	assert.Equal(t, "/jobs?next=41000002", paths[1])
}

func TestRunRefreshCycleStopsAtPageBudget(t *testing.T) {
	var hits int
	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(pagedListingFixture))
	}))
	e.cfg.Source.Pages = 2

	sum, err := e.RunRefreshCycle(context.Background())
	require.NoError(t, err)

	// every page advertises a cursor; the configured page count caps the walk
	assert.Equal(t, 2, hits)
	assert.Equal(t, 2, sum.Scraped)
}

func TestQueryAppliesConfiguredPageSizes(t *testing.T) {
	e, db := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listingFixture))
	}))
	ctx := context.Background()

	batch := make([]store.Posting, 0, 40)
	for i := 0; i < 40; i++ {
		batch = append(batch, store.Posting{
			ExternalID: string(rune('a' + i/26)) + string(rune('a'+i%26)),
			Title:      "Posting",
			URL:        "u",
			IsNew:      true,
		})
	}
	_, err := db.UpsertNew(ctx, batch)
	require.NoError(t, err)

	got, total, err := e.Query(ctx, store.QueryOpts{})
	require.NoError(t, err)
	assert.Equal(t, 40, total)
	assert.Len(t, got, 30)
}
