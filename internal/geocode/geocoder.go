package geocode

import (
	"context"
	"strings"
	"time"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
)

// Options configures New.
type Options struct {
	LocationIQKey string
	LocationIQURL string
	NominatimURL  string
	UserAgent     string
	Timeout       time.Duration
	Bounds        event.Bounds

	// Request spacing per service. Zero values use the services' usage policies.
	LocationIQInterval time.Duration
	NominatimInterval  time.Duration
	// NoThrottle disables request spacing entirely.
	NoThrottle bool

	Cache *Cache
}

const (
	defaultLocationIQInterval = 500 * time.Millisecond
	defaultNominatimInterval  = 1100 * time.Millisecond
)

// Geocoder tries each provider in order and caches every answer for the run.
type Geocoder struct {
	providers []Provider
	cache     *Cache
	log       *logger.Logger
}

// New builds the LocationIQ -> Nominatim chain. LocationIQ is skipped when no key is set.
func New(opts Options) *Geocoder {
	liqInterval, nomInterval := opts.LocationIQInterval, opts.NominatimInterval
	if liqInterval == 0 {
		liqInterval = defaultLocationIQInterval
	}
	if nomInterval == 0 {
		nomInterval = defaultNominatimInterval
	}
	if opts.NoThrottle {
		liqInterval, nomInterval = 0, 0
	}

	var providers []Provider
	if strings.TrimSpace(opts.LocationIQKey) != "" {
		providers = append(providers, NewLocationIQ(opts.LocationIQKey, ProviderConfig{
			BaseURL:     opts.LocationIQURL,
			UserAgent:   opts.UserAgent,
			Timeout:     opts.Timeout,
			MinInterval: liqInterval,
			Bounds:      opts.Bounds,
		}))
	}
	providers = append(providers, NewNominatim(ProviderConfig{
		BaseURL:     opts.NominatimURL,
		UserAgent:   opts.UserAgent,
		Timeout:     opts.Timeout,
		MinInterval: nomInterval,
		Bounds:      opts.Bounds,
	}))

	return NewWithProviders(opts.Cache, providers...)
}

// NewWithProviders creates a Geocoder over an explicit provider chain.
func NewWithProviders(c *Cache, providers ...Provider) *Geocoder {
	if c == nil {
		c = NewCache(nil, 0)
	}
	return &Geocoder{
		providers: providers,
		cache:     c,
		log:       logger.ForGeocoder(),
	}
}

// Providers returns the provider names in the order they are tried.
func (g *Geocoder) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// Geocode resolves address. Failures are logged and reported as ok == false;
// they are cached too, so an address is sent to the services at most once per run.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*event.Coordinates, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, false
	}

	if coords, found := g.cache.Lookup(address); found {
		g.log.Debug().Str("address", address).Bool("hit", coords != nil).Msg("Geocode cache hit")
		return coords, coords != nil
	}

	for _, p := range g.providers {
		if ctx.Err() != nil {
			// Not cached: a cancelled run says nothing about the address
			return nil, false
		}

		coords, err := p.Lookup(ctx, address)
		if err == nil {
			g.log.Debug().
				Str("provider", p.Name()).
				Str("address", address).
				Str("coordinates", coords.String()).
				Msg("Geocoded address")
			g.cache.Store(address, coords)
			return coords, true
		}

		ev := g.log.Warn()
		if errors.Is(err, errors.ErrorTypeNotFound) {
			ev = g.log.Debug()
		}
		ev.Err(err).
			Str("provider", p.Name()).
			Str("error_type", string(errors.TypeOf(err))).
			Str("address", address).
			Msg("Geocoding failed, trying next provider")
	}

	if ctx.Err() != nil {
		return nil, false
	}

	g.log.Info().Str("address", address).Msg("No provider could geocode address")
	g.cache.Store(address, nil)
	return nil, false
}
