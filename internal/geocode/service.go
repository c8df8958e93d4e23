package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultFlushEvery is how many new cache entries trigger an intermediate save.
const DefaultFlushEvery = 20

// Observer receives one call per address looked up.
type Observer interface {
	ObserveGeocode(stage string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveGeocode(string, time.Duration) {}

// Config configures a Service.
type Config struct {
	CachePath  string
	FlushEvery int           // Defaults to DefaultFlushEvery
	Delay      time.Duration // Pause after each address not served from cache

	// CacheOnly disables network lookups; only cached addresses resolve.
	CacheOnly bool
}

// Service resolves addresses through the cache and, for misses, the resolver.
// The cache file is loaded on every Locate so edits made between runs apply.
type Service struct {
	cfg      Config
	resolver *Resolver
	observer Observer
	sleep    func(context.Context, time.Duration) error

	mu sync.Mutex
}

// NewService creates a geocoding service. resolver may be nil when
// cfg.CacheOnly is set.
func NewService(cfg Config, resolver *Resolver, observer Observer) (*Service, error) {
	if cfg.CachePath == "" {
		return nil, fmt.Errorf("geocode: cache path is required")
	}
	if resolver == nil && !cfg.CacheOnly {
		return nil, fmt.Errorf("geocode: resolver is required unless cache-only")
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		observer: observer,
		sleep:    sleepContext,
	}, nil
}

// Locate returns coordinates for every address it could resolve. Addresses
// are looked up in sorted order; unresolved ones are absent from the result.
func (s *Service) Locate(ctx context.Context, addresses []string) (map[string]Coordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := LoadCache(s.cfg.CachePath)
	if err != nil {
		return nil, err
	}

	uniq := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if a != "" {
			uniq[a] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(uniq))
	for a := range uniq {
		sorted = append(sorted, a)
	}
	sort.Strings(sorted)

	found := make(map[string]Coordinate, len(sorted))
	added, pending, misses := 0, 0, 0

	for _, addr := range sorted {
		if c, ok := cache[addr]; ok {
			found[addr] = c
			s.observer.ObserveGeocode(string(StageCache), 0)
			continue
		}
		if s.cfg.CacheOnly {
			misses++
			s.observer.ObserveGeocode(string(StageMiss), 0)
			continue
		}

		start := time.Now()
		c, stage, err := s.resolver.Resolve(ctx, addr)
		if err != nil {
			s.flush(cache, pending)
			return found, err
		}
		s.observer.ObserveGeocode(string(stage), time.Since(start))

		if stage == StageMiss {
			misses++
			slog.DebugContext(ctx, "address not resolved", "address", addr)
		} else {
			cache[addr] = c
			found[addr] = c
			added++
			pending++
			if pending >= s.cfg.FlushEvery {
				s.flush(cache, pending)
				pending = 0
			}
		}

		if err := s.sleep(ctx, s.cfg.Delay); err != nil {
			s.flush(cache, pending)
			return found, err
		}
	}

	if added > 0 {
		if err := SaveCache(s.cfg.CachePath, cache); err != nil {
			return found, err
		}
	}

	slog.InfoContext(ctx, "geocoding finished",
		"addresses", len(sorted),
		"resolved", len(found),
		"new", added,
		"missed", misses,
	)
	return found, nil
}

// flush saves intermediate progress. A failed intermediate save is only
// logged; the final save reports errors.
func (s *Service) flush(cache Cache, pending int) {
	if pending == 0 {
		return
	}
	if err := SaveCache(s.cfg.CachePath, cache); err != nil {
		slog.Warn("geocode cache flush failed", "error", err)
	}
}
