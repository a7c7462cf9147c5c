// Package location resolves where an entry is being recorded.
//
// Everything here is best effort: failures are logged and reported as
// "no value" rather than as errors.
package location

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Source is what entry capture needs from location services.
type Source interface {
	// BestEffortLocation returns the cached fix if still fresh, otherwise
	// asks for a new one. Nil when no position is available.
	BestEffortLocation(ctx context.Context) *Coordinates

	// ReverseGeocode returns a human-readable address, or nil.
	ReverseGeocode(ctx context.Context, lat, lng float64) *string
}

// FixProvider produces a fresh position.
type FixProvider interface {
	Fix(ctx context.Context) (Coordinates, error)
}

// Geocoder turns coordinates into an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// DefaultCacheTTL is how long a fix and a geocoded address are reused.
const DefaultCacheTTL = 10 * time.Minute

const lastFixKey = "last-fix"

// Locator combines a fix provider and a geocoder, caching both. Either may
// be nil.
type Locator struct {
	fixes    FixProvider
	geocoder Geocoder
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewLocator creates a Locator. A non-positive ttl uses DefaultCacheTTL.
func NewLocator(fixes FixProvider, geocoder Geocoder, ttl time.Duration, logger *slog.Logger) *Locator {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	// No janitor goroutine: expired items are skipped on read.
	return &Locator{
		fixes:    fixes,
		geocoder: geocoder,
		cache:    cache.New(ttl, 0),
		logger:   logger,
	}
}

func (l *Locator) BestEffortLocation(ctx context.Context) *Coordinates {
	if v, ok := l.cache.Get(lastFixKey); ok {
		c := v.(Coordinates)
		return &c
	}
	if l.fixes == nil {
		return nil
	}
	c, err := l.fixes.Fix(ctx)
	if err != nil {
		l.logger.Debug("no location fix", "error", err)
		return nil
	}
	l.cache.SetDefault(lastFixKey, c)
	return &c
}

func (l *Locator) ReverseGeocode(ctx context.Context, lat, lng float64) *string {
	if l.geocoder == nil {
		return nil
	}
	key := geocodeKey(lat, lng)
	if v, ok := l.cache.Get(key); ok {
		s := v.(string)
		return &s
	}
	addr, err := l.geocoder.Reverse(ctx, lat, lng)
	if err != nil || addr == "" {
		l.logger.Debug("reverse geocoding failed", "lat", lat, "lng", lng, "error", err)
		return nil
	}
	l.cache.SetDefault(key, addr)
	return &addr
}

// Forget drops the cached fix so the next call asks for a new one.
func (l *Locator) Forget() {
	l.cache.Delete(lastFixKey)
}

// FixedPosition is a FixProvider for a stationary installation.
type FixedPosition Coordinates

func (p FixedPosition) Fix(context.Context) (Coordinates, error) {
	return Coordinates(p), nil
}
