// Package proxy is the caching fan-out core: it maps route types to
// upstream locations, decides cache keys and freshness per response
// variant, fans out item fetches for full-mode pages, and classifies
// failures into the client-facing error contract.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/raidtools/gamedata-api/internal/cache"
	"github.com/raidtools/gamedata-api/internal/jobs"
	"github.com/raidtools/gamedata-api/internal/metrics"
	"github.com/raidtools/gamedata-api/internal/registry"
	"github.com/raidtools/gamedata-api/internal/upstream"
)

const (
	contentType = "application/json; charset=utf-8"

	// storeTimeout bounds detached cache writes.
	storeTimeout = 10 * time.Second

	// refreshTimeout bounds in-process background refreshes.
	refreshTimeout = 2 * time.Minute
)

// Fetcher is the upstream surface the service consumes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	List(ctx context.Context, url string) ([]string, error)
	FileURL(path string) string
	ListingURL(dir string) string
}

var _ Fetcher = (*upstream.Client)(nil)

// Options configures a Service.
type Options struct {
	Registry *registry.Registry
	Fetcher  Fetcher
	Store    cache.Store

	// Enqueuer dispatches stale-entry refreshes. When nil, refreshes
	// run in-process on a background goroutine.
	Enqueuer jobs.Enqueuer

	// FreshTTL is how long a cached entry is served without any
	// upstream contact. StaleTTL extends that window: within it an
	// expired entry is still served while a refresh runs behind the
	// response.
	FreshTTL time.Duration
	StaleTTL time.Duration

	Logger zerolog.Logger
}

// Service serves dataset responses out of the cache, falling back to
// upstream on miss. It is safe for concurrent use.
type Service struct {
	registry *registry.Registry
	fetcher  Fetcher
	store    cache.Store
	enqueuer jobs.Enqueuer
	freshTTL time.Duration
	staleTTL time.Duration
	log      zerolog.Logger

	bg     cache.Background
	flight singleflight.Group
}

// New assembles the proxy service.
func New(opts Options) *Service {
	if opts.FreshTTL <= 0 {
		opts.FreshTTL = 5 * time.Minute
	}
	if opts.StaleTTL < 0 {
		opts.StaleTTL = 0
	}
	return &Service{
		registry: opts.Registry,
		fetcher:  opts.Fetcher,
		store:    opts.Store,
		enqueuer: opts.Enqueuer,
		freshTTL: opts.FreshTTL,
		staleTTL: opts.StaleTTL,
		log:      opts.Logger,
	}
}

// File serves a single-file dataset type, passing the upstream payload
// through untouched.
func (s *Service) File(ctx context.Context, typeName string) (*cache.Entry, error) {
	return s.serve(ctx, jobs.RefreshPayload{Mode: jobs.ModeFile, Type: typeName})
}

// Item serves one item of a collection type, passing the upstream
// payload through untouched.
func (s *Service) Item(ctx context.Context, typeName, id string) (*cache.Entry, error) {
	return s.serve(ctx, jobs.RefreshPayload{Mode: jobs.ModeItem, Type: typeName, ID: id})
}

// Collection serves a collection listing: id stubs by default, or one
// page of full payloads when q.Full is set. List-only mode ignores
// paging, so the payload is normalized before it becomes a cache key.
func (s *Service) Collection(ctx context.Context, typeName string, q ListQuery) (*cache.Entry, error) {
	if !q.Full {
		q.Limit, q.Offset = 0, 0
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.serve(ctx, jobs.RefreshPayload{
		Mode:   jobs.ModeList,
		Type:   typeName,
		Full:   q.Full,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
}

// Drain waits for in-flight background cache writes and refreshes.
func (s *Service) Drain() {
	s.bg.Wait()
}

// serve answers one request descriptor from the cache when possible.
// A fresh entry is returned as-is. A stale entry inside the serve
// window is returned immediately with a refresh dispatched behind it.
// A miss fetches upstream on the request path and stores the result
// without blocking the response.
func (s *Service) serve(ctx context.Context, p jobs.RefreshPayload) (*cache.Entry, error) {
	key, fill, err := s.plan(p)
	if err != nil {
		return nil, err
	}

	if entry, ok := s.store.Get(ctx, key); ok {
		if entry.Age(time.Now()) <= s.freshTTL {
			metrics.CacheReads.WithLabelValues("fresh").Inc()
			return entry, nil
		}
		metrics.CacheReads.WithLabelValues("stale").Inc()
		s.revalidate(key, p)
		return entry, nil
	}

	metrics.CacheReads.WithLabelValues("miss").Inc()
	// Renders are detached from the inbound context: a disconnecting
	// client must not cut a fan-out short and leave a truncated page
	// cached for everyone else.
	entry, err := fill(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	s.storeAsync(key, entry)
	return entry, nil
}

// Refresh re-renders the response for p and stores it, bypassing any
// cached copy. The worker and the stale-serve path both land here.
func (s *Service) Refresh(ctx context.Context, p jobs.RefreshPayload) error {
	key, fill, err := s.plan(p)
	if err != nil {
		return err
	}
	entry, err := fill(ctx)
	if err != nil {
		metrics.RefreshTasks.WithLabelValues("failed").Inc()
		return err
	}
	if err := s.store.Set(ctx, key, entry, s.hardTTL()); err != nil {
		metrics.RefreshTasks.WithLabelValues("failed").Inc()
		return fmt.Errorf("store %s: %w", key, err)
	}
	metrics.RefreshTasks.WithLabelValues("processed").Inc()
	return nil
}

type fillFunc func(ctx context.Context) (*cache.Entry, error)

// plan resolves a request descriptor into its cache key and the fill
// that renders it. Alias and canonical type names resolve to the same
// upstream URL and therefore the same key.
func (s *Service) plan(p jobs.RefreshPayload) (string, fillFunc, error) {
	rt, ok := s.registry.Resolve(p.Type)
	if !ok {
		if p.Mode == jobs.ModeItem {
			return "", nil, NewUnknownCollection(p.Type)
		}
		return "", nil, NewUnknownType(p.Type)
	}

	switch p.Mode {
	case jobs.ModeFile:
		if rt.IsCollection() {
			return "", nil, NewInternal(fmt.Errorf("file mode on collection type %q", rt.Name))
		}
		url := s.fetcher.FileURL(rt.Path)
		return cache.KeyForURL(url), s.fillFile(url), nil

	case jobs.ModeItem:
		if !rt.IsCollection() {
			return "", nil, NewUnknownCollection(p.Type)
		}
		url := s.fetcher.FileURL(rt.Path + "/" + p.ID)
		return cache.KeyForURL(url), s.fillItem(rt, p.ID, url), nil

	case jobs.ModeList:
		if !rt.IsCollection() {
			return "", nil, NewInternal(fmt.Errorf("list mode on single-file type %q", rt.Name))
		}
		q := ListQuery{Full: p.Full, Limit: p.Limit, Offset: p.Offset}
		// Payloads come off the queue too, not only the query parser,
		// so the offset is clamped here as well.
		if q.Offset < 0 {
			q.Offset = 0
		}
		url := s.fetcher.ListingURL(rt.Path)
		key := cache.KeyForListing(url, q.Full, q.EffectiveLimit(), q.Offset)
		return key, s.fillListing(rt, url, q), nil

	default:
		return "", nil, NewInternal(fmt.Errorf("unknown refresh mode %q", p.Mode))
	}
}

// fillFile fetches a single-file payload. The upstream JSON passes
// through byte for byte; an upstream 404 on a registered file means
// the dataset itself is broken, so it reports as an upstream failure
// rather than a client-facing not-found.
func (s *Service) fillFile(url string) fillFunc {
	return func(ctx context.Context) (*cache.Entry, error) {
		body, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, NewUpstreamFailure(err)
		}
		return s.newEntry(body), nil
	}
}

func (s *Service) fillItem(rt registry.RouteType, id, url string) fillFunc {
	return func(ctx context.Context) (*cache.Entry, error) {
		body, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			if errors.Is(err, upstream.ErrNotFound) {
				return nil, NewItemNotFound(rt.Name, id)
			}
			return nil, NewUpstreamFailure(err)
		}
		return s.newEntry(body), nil
	}
}

func (s *Service) fillListing(rt registry.RouteType, url string, q ListQuery) fillFunc {
	return func(ctx context.Context) (*cache.Entry, error) {
		ids, err := s.fetcher.List(ctx, url)
		if err != nil {
			return nil, NewListFailure(rt.Name, err)
		}
		var payload any
		if q.Full {
			agg, err := s.aggregate(ctx, rt, ids, q)
			if err != nil {
				return nil, NewUpstreamFailure(err)
			}
			payload = agg
		} else {
			payload = newListing(rt.Name, ids)
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, NewInternal(fmt.Errorf("marshal %s listing: %w", rt.Name, err))
		}
		return s.newEntry(body), nil
	}
}

// revalidate dispatches a refresh for a stale entry. With a queue wired
// the task goes to the worker; otherwise it runs in-process, with
// singleflight collapsing concurrent stale readers of one key into a
// single upstream pass.
func (s *Service) revalidate(key string, p jobs.RefreshPayload) {
	metrics.RefreshTasks.WithLabelValues("enqueued").Inc()
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueRefresh(p); err != nil {
			s.log.Error().Err(err).Str("type", p.Type).Msg("enqueue refresh failed")
		}
		return
	}
	s.bg.Go(func() {
		_, _, _ = s.flight.Do(key, func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			if err := s.Refresh(ctx, p); err != nil {
				s.log.Error().Err(err).Str("type", p.Type).Msg("background refresh failed")
			}
			return nil, nil
		})
	})
}

// storeAsync writes an entry behind the response. A slow or failing
// store must never delay or fail the request, so errors only log.
func (s *Service) storeAsync(key string, entry *cache.Entry) {
	s.bg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.store.Set(ctx, key, entry, s.hardTTL()); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("cache store failed")
		}
	})
}

func (s *Service) newEntry(body []byte) *cache.Entry {
	return &cache.Entry{
		FetchedAt: time.Now(),
		Header: map[string]string{
			"Content-Type":  contentType,
			"Cache-Control": s.cacheControl(),
		},
		Body: body,
	}
}

// cacheControl advertises the same freshness policy the server itself
// applies, so downstream caches and browsers follow suit.
func (s *Service) cacheControl() string {
	cc := fmt.Sprintf("public, max-age=%d", int(s.freshTTL.Seconds()))
	if s.staleTTL > 0 {
		cc += fmt.Sprintf(", stale-while-revalidate=%d", int(s.staleTTL.Seconds()))
	}
	return cc
}

// hardTTL is the absolute lifetime of a stored entry: the fresh window
// plus the stale serve window. Past it the store drops the entry.
func (s *Service) hardTTL() time.Duration {
	return s.freshTTL + s.staleTTL
}
