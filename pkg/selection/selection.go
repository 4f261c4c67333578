// Package selection owns the user's region selection and the per-region
// series cache that drives the chart. It is the only stateful component:
// everything it exposes beyond Toggle is derived fresh from its state.
package selection

import (
	"context"
	"sort"
	"sync"

	"github.com/aonuma/popscope/pkg/series"
)

// Fetcher is the collaborator that resolves a region's series. It is
// transport-agnostic; pkg/upstream provides the HTTP implementation.
type Fetcher interface {
	FetchRegionSeries(ctx context.Context, code int, name string) (series.RegionSeries, error)
}

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// entry is the full per-region state. Keeping selected/fetching/series in
// one record behind one mutex means the three can never drift apart.
type entry struct {
	name     string
	selected bool
	fetching bool
	series   *series.RegionSeries

	// epoch is bumped on every toggle that changes what an in-flight fetch
	// would mean: a deselect and a fetch-starting select. A settling fetch
	// compares the epoch it captured at launch; on mismatch its result is
	// stale and must not be written. Deduplicated re-selects leave it
	// untouched so the fetch they ride on stays valid.
	epoch uint64
}

// Status is one region's catalog entry plus its current cache state, for
// list views.
type Status struct {
	series.Region
	Selected bool `json:"selected"`
	Fetching bool `json:"fetching"`
	Cached   bool `json:"cached"`
}

// Config holds everything a Cache needs.
type Config struct {
	Fetcher Fetcher
	// Catalog is the full region list, fetched once at startup. CatalogErr
	// records a failed catalog fetch; the cache then serves an empty
	// catalog and nothing can be selected.
	Catalog    []series.Region
	CatalogErr error
	Log        Logger // optional; nil = no logging
}

// Cache tracks selection, in-flight fetches and resolved series per region
// code. Safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	log     Logger

	mu         sync.Mutex
	catalog    []series.Region
	catalogErr error
	entries    map[int]*entry
	wg         sync.WaitGroup
}

func New(cfg Config) *Cache {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Cache{
		fetcher:    cfg.Fetcher,
		log:        log,
		catalog:    cfg.Catalog,
		catalogErr: cfg.CatalogErr,
		entries:    make(map[int]*entry),
	}
}

// Catalog returns the region list and the error from the startup catalog
// fetch, if any.
func (c *Cache) Catalog() ([]series.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog, c.catalogErr
}

// Toggle sets the selection state for a region and, when turning it on,
// resolves its series through the fetcher in the background.
//
// The selection flip is applied before this function returns, so callers
// see the new state immediately regardless of fetch outcome (optimistic
// update). Turning a region off evicts its cached series right away, even
// if a fetch for it is still in flight; the late result is discarded by the
// epoch check when it settles. Turning a region on is a no-op when its
// series is already cached or a fetch for it is already outstanding.
//
// A fetch that settles with an error or an empty series rolls the selection
// back to off; the fetcher's errors never propagate past Toggle.
func (c *Cache) Toggle(ctx context.Context, code int, checked bool, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[code]
	if e == nil {
		e = &entry{}
		c.entries[code] = e
	}
	if name != "" {
		e.name = name
	}
	e.selected = checked

	if !checked {
		// Eager eviction: the entry goes away now, not when a fetch or
		// timer says so. The epoch bump marks any in-flight fetch stale.
		e.epoch++
		e.series = nil
		return
	}
	// The skips must not touch the epoch: a deduplicated toggle-on rides on
	// the outstanding fetch, so invalidating it here would discard its
	// perfectly good result when it settles.
	if e.series != nil {
		c.log.Debugf("region %d already cached, skipping fetch", code)
		return
	}
	if e.fetching {
		c.log.Debugf("fetch for region %d already in flight, skipping", code)
		return
	}
	e.epoch++
	c.startFetchLocked(ctx, code, e)
}

// startFetchLocked launches the background fetch for e. Caller holds c.mu.
func (c *Cache) startFetchLocked(ctx context.Context, code int, e *entry) {
	e.fetching = true
	captured := e.epoch
	name := e.name
	c.wg.Add(1)
	go c.runFetch(ctx, code, name, captured)
}

func (c *Cache) runFetch(ctx context.Context, code int, name string, captured uint64) {
	defer c.wg.Done()

	rs, err := c.fetcher.FetchRegionSeries(ctx, code, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[code]
	if e == nil {
		return
	}

	if e.epoch != captured {
		// The user toggled this code while we were fetching; whatever we
		// got belongs to a state that no longer exists.
		c.log.Debugf("discarding stale fetch result for region %d", code)
		if e.selected && e.series == nil {
			// Toggled off and back on faster than the fetch settled. The
			// re-toggle was deduplicated against us, so without a relaunch
			// the region would stay pending forever.
			c.startFetchLocked(ctx, code, e)
			return
		}
		e.fetching = false
		return
	}

	e.fetching = false

	if err != nil {
		c.log.Warnf("fetch for region %d (%s) failed, reverting selection: %v", code, name, err)
		e.selected = false
		return
	}
	if len(rs.Points) == 0 {
		c.log.Warnf("no data points for region %d (%s), reverting selection", code, name)
		e.selected = false
		return
	}
	e.series = &rs
}

// Wait blocks until every launched fetch has settled. The browser host this
// design comes from settles on its event loop; CLI callers and tests need an
// explicit settle point instead.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// SelectedRegions returns the catalog entries currently selected, in
// catalog order.
func (c *Cache) SelectedRegions() []series.Region {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []series.Region
	for _, r := range c.catalog {
		if e := c.entries[r.Code]; e != nil && e.selected {
			out = append(out, r)
		}
	}
	return out
}

// Regions returns the full catalog with per-region selection state, in
// catalog order.
func (c *Cache) Regions() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Status, 0, len(c.catalog))
	for _, r := range c.catalog {
		s := Status{Region: r}
		if e := c.entries[r.Code]; e != nil {
			s.Selected = e.selected
			s.Fetching = e.fetching
			s.Cached = e.series != nil
		}
		out = append(out, s)
	}
	return out
}

// RegionStatus returns the current state for a single code, false if the
// code has never been toggled.
func (c *Cache) RegionStatus(code int) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[code]
	if e == nil {
		return Status{}, false
	}
	return Status{
		Region:   series.Region{Code: code, Name: e.name},
		Selected: e.selected,
		Fetching: e.fetching,
		Cached:   e.series != nil,
	}, true
}

// ChartSeries derives the plottable lines from the current selection and
// cache: one series per selected region with resolved data, ascending by
// region code. Regions still fetching or rolled back are simply absent.
// The output is a pure function of the current state, never cached.
func (c *Cache) ChartSeries() []series.ChartSeries {
	c.mu.Lock()
	defer c.mu.Unlock()

	codes := make([]int, 0, len(c.entries))
	for code, e := range c.entries {
		if e.selected && e.series != nil {
			codes = append(codes, code)
		}
	}
	sort.Ints(codes)

	out := make([]series.ChartSeries, 0, len(codes))
	for _, code := range codes {
		rs := c.entries[code].series
		points := make([]series.Point, len(rs.Points))
		copy(points, rs.Points)
		out = append(out, series.ChartSeries{
			Name:   rs.Name,
			Points: points,
			Color:  series.ColorFor(code),
		})
	}
	return out
}
