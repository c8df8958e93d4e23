package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Stage names the lookup that produced a coordinate.
type Stage string

const (
	StageCache   Stage = "cache"
	StageGeocode Stage = "geocode"
	StagePOI     Stage = "poi"
	StageMiss    Stage = "miss"
)

const (
	// DefaultRetries is the number of retries after the first attempt of each stage.
	DefaultRetries = 2

	// DefaultDelay is the pause after a failed attempt and between addresses.
	DefaultDelay = 250 * time.Millisecond
)

// Lookup is the AMap surface the resolver needs.
type Lookup interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
	SearchPOI(ctx context.Context, keywords string) (Coordinate, error)
}

// Resolver resolves one address: forward geocoding first, then place search
// with the city prefix removed. Each stage is retried independently.
type Resolver struct {
	lookup     Lookup
	cityPrefix string
	retries    int
	delay      time.Duration
	sleep      func(context.Context, time.Duration) error
}

// NewResolver creates a resolver. A negative retry count means none.
func NewResolver(lookup Lookup, cityPrefix string, retries int, delay time.Duration) *Resolver {
	if retries < 0 {
		retries = 0
	}
	return &Resolver{
		lookup:     lookup,
		cityPrefix: cityPrefix,
		retries:    retries,
		delay:      delay,
		sleep:      sleepContext,
	}
}

// Resolve returns the coordinate and the stage that found it. A miss is
// not an error; err is only set when ctx ends.
func (r *Resolver) Resolve(ctx context.Context, address string) (Coordinate, Stage, error) {
	if c, ok, err := r.attempt(ctx, address, r.lookup.Geocode); ok || err != nil {
		return c, StageGeocode, err
	}

	keywords := strings.TrimSpace(strings.TrimPrefix(address, r.cityPrefix))
	if keywords == "" {
		keywords = address
	}
	if c, ok, err := r.attempt(ctx, keywords, r.lookup.SearchPOI); ok || err != nil {
		return c, StagePOI, err
	}
	return Coordinate{}, StageMiss, nil
}

func (r *Resolver) attempt(ctx context.Context, q string, fn func(context.Context, string) (Coordinate, error)) (Coordinate, bool, error) {
	for i := 0; i <= r.retries; i++ {
		c, err := fn(ctx, q)
		if err == nil {
			return c, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Coordinate{}, false, ctxErr
		}
		if !errors.Is(err, ErrNoResult) {
			slog.DebugContext(ctx, "amap request failed", "query", q, "attempt", i+1, "error", err)
		}
		if err := r.sleep(ctx, r.delay); err != nil {
			return Coordinate{}, false, err
		}
	}
	return Coordinate{}, false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
