// Package cache memoizes judge reads for the lifetime of the process.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/sync/singleflight"

	"lcterm/internal/common"
	"lcterm/internal/judge"
	"lcterm/internal/telemetry"
)

const defaultFetchTimeout = 45 * time.Second

type Fetcher interface {
	FetchProblemList(ctx context.Context, filter judge.ListFilter) (judge.ProblemPage, error)
	FetchProblemDetail(ctx context.Context, slug string) (judge.Problem, error)
}

// Store persists list pages so the next run can show something before the
// network answers.
type Store interface {
	LoadSnapshot(ctx context.Context, key string) (judge.ProblemPage, time.Time, bool, error)
	SaveSnapshot(ctx context.Context, key string, page judge.ProblemPage) error
}

type Stats struct {
	ListFetches   int
	DetailFetches int
	Hits          int
	Shared        int
	Failures      int
}

type Options struct {
	Store        Store
	Logger       *telemetry.Logger
	FetchTimeout time.Duration
}

// Cache holds list pages keyed by filter and problems keyed by id. Each key
// has at most one fetch in flight; callers asking for a key that is already
// being fetched wait on the same result.
type Cache struct {
	fetcher      Fetcher
	store        Store
	logger       *telemetry.Logger
	fetchTimeout time.Duration
	group        singleflight.Group

	mu      sync.Mutex
	lists   map[string]judge.ProblemPage
	details map[string]judge.Problem
	slugs   map[string]string
	gens    map[string]uint64
	stats   Stats
}

// fetched is what a shared fetch hands its waiters: the value and the key
// generation it was started under.
type fetched struct {
	val any
	gen uint64
}

func New(f Fetcher, opts Options) *Cache {
	c := &Cache{
		fetcher:      f,
		store:        opts.Store,
		logger:       opts.Logger,
		fetchTimeout: opts.FetchTimeout,
		lists:        map[string]judge.ProblemPage{},
		details:      map[string]judge.Problem{},
		slugs:        map[string]string{},
		gens:         map[string]uint64{},
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	return c
}

// ListKey is the cache and snapshot key for a filter.
func ListKey(filter judge.ListFilter) string {
	filter = filter.Normalize()
	h, err := hashstructure.Hash(filter, hashstructure.FormatV2, nil)
	if err != nil {
		return fmt.Sprintf("list:%v", filter)
	}
	return fmt.Sprintf("list:%016x", h)
}

func detailKey(id string) string { return "detail:" + id }

func (c *Cache) GetList(ctx context.Context, filter judge.ListFilter) (judge.ProblemPage, error) {
	filter = filter.Normalize()
	key := ListKey(filter)
	if page, ok := c.cachedList(key); ok {
		return page, nil
	}
	v, err := c.await(ctx, key, func(fctx context.Context, gen uint64) (any, error) {
		if page, ok := c.peekList(key); ok {
			return page, nil
		}
		c.count(func(s *Stats) { s.ListFetches++ })
		page, err := c.fetcher.FetchProblemList(fctx, filter)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		current := c.gens[key] == gen
		if current {
			c.lists[key] = page
		}
		for _, p := range page.Problems {
			c.slugs[p.ID] = p.Slug
		}
		c.mu.Unlock()
		if current && c.store != nil {
			if err := c.store.SaveSnapshot(fctx, key, page); err != nil {
				c.logger.Warn("cache.snapshot_save_failed", map[string]any{"key": key, "error": err.Error()})
			}
		}
		return page, nil
	})
	if err != nil {
		return judge.ProblemPage{}, err
	}
	return clonePage(v.(judge.ProblemPage)), nil
}

// GetDetail returns the full problem for an id seen in an earlier list.
func (c *Cache) GetDetail(ctx context.Context, id string) (judge.Problem, error) {
	key := detailKey(id)
	c.mu.Lock()
	p, ok := c.details[id]
	slug, known := c.slugs[id]
	if ok {
		c.stats.Hits++
	}
	c.mu.Unlock()
	if ok {
		return p, nil
	}
	if !known {
		return judge.Problem{}, common.Errorf(common.ErrNotFound, "cache.detail", "%s", id)
	}
	v, err := c.await(ctx, key, func(fctx context.Context, gen uint64) (any, error) {
		c.mu.Lock()
		p, ok := c.details[id]
		c.mu.Unlock()
		if ok {
			return p, nil
		}
		c.count(func(s *Stats) { s.DetailFetches++ })
		p, err := c.fetcher.FetchProblemDetail(fctx, slug)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.gens[key] == gen {
			c.details[id] = p
		}
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return judge.Problem{}, err
	}
	return v.(judge.Problem), nil
}

// Lookup returns a cached problem without fetching.
func (c *Cache) Lookup(id string) (judge.Problem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.details[id]
	return p, ok
}

// InvalidateStatus drops everything that shows the solved status of id so
// the next read refetches it.
func (c *Cache) InvalidateStatus(id string) {
	c.mu.Lock()
	delete(c.details, id)
	c.gens[detailKey(id)]++
	var dropped int
	for key, page := range c.lists {
		if slices.ContainsFunc(page.Problems, func(p judge.ProblemSummary) bool { return p.ID == id }) {
			delete(c.lists, key)
			c.gens[key]++
			dropped++
		}
	}
	c.mu.Unlock()
	c.logger.Info("cache.invalidate", map[string]any{"id": id, "lists": dropped})
}

// InvalidateList forgets one page so the next GetList goes to the judge.
func (c *Cache) InvalidateList(filter judge.ListFilter) {
	key := ListKey(filter)
	c.mu.Lock()
	delete(c.lists, key)
	c.gens[key]++
	c.mu.Unlock()
}

// Snapshot returns the last persisted page for filter, if any.
func (c *Cache) Snapshot(ctx context.Context, filter judge.ListFilter) (judge.ProblemPage, time.Time, bool) {
	if c.store == nil {
		return judge.ProblemPage{}, time.Time{}, false
	}
	key := ListKey(filter)
	page, at, ok, err := c.store.LoadSnapshot(ctx, key)
	if err != nil {
		c.logger.Warn("cache.snapshot_load_failed", map[string]any{"key": key, "error": err.Error()})
		return judge.ProblemPage{}, time.Time{}, false
	}
	if ok {
		c.mu.Lock()
		for _, p := range page.Problems {
			if _, seen := c.slugs[p.ID]; !seen {
				c.slugs[p.ID] = p.Slug
			}
		}
		c.mu.Unlock()
	}
	return page, at, ok
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// await joins the in-flight fetch for key or starts one. The fetch runs on a
// context detached from the caller so one caller giving up does not fail the
// others; the caller stops waiting when its own ctx ends.
//
// Invalidating a key bumps its generation instead of forgetting the flight,
// so a key never has two fetches running. A fetch that finishes under an old
// generation does not store its result, and its waiters fetch once more.
func (c *Cache) await(ctx context.Context, key string, fetch func(context.Context, uint64) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	var res fetched
	for attempt := 0; attempt < 2; attempt++ {
		ch := c.group.DoChan(key, func() (any, error) {
			gen := c.generation(key)
			fctx, cancel := context.WithTimeout(detached, c.fetchTimeout)
			defer cancel()
			v, err := fetch(fctx, gen)
			if err != nil {
				c.count(func(s *Stats) { s.Failures++ })
				c.logger.Warn("cache.fetch_failed", map[string]any{"key": key, "error": err.Error()})
			}
			return fetched{val: v, gen: gen}, err
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if r.Shared {
				c.count(func(s *Stats) { s.Shared++ })
			}
			if r.Err != nil {
				return nil, r.Err
			}
			res = r.Val.(fetched)
		}
		if res.gen == c.generation(key) {
			break
		}
	}
	return res.val, nil
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *Cache) cachedList(key string) (judge.ProblemPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.lists[key]
	if ok {
		c.stats.Hits++
		return clonePage(page), true
	}
	return judge.ProblemPage{}, false
}

func (c *Cache) peekList(key string) (judge.ProblemPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.lists[key]
	return page, ok
}

func (c *Cache) count(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func clonePage(p judge.ProblemPage) judge.ProblemPage {
	return judge.ProblemPage{Problems: slices.Clone(p.Problems), Total: p.Total}
}
