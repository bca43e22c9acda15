package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/pkg/errors"
)

// Provider resolves a free-text address to a point.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, address string) (*event.Coordinates, error)
}

// ProviderConfig holds the settings shared by both services.
type ProviderConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// MinInterval is the minimum spacing between requests. Zero disables throttling.
	MinInterval time.Duration
	Bounds      event.Bounds
}

// place is one search result. Both services send lat/lon as strings.
type place struct {
	Lat         json.Number `json:"lat"`
	Lon         json.Number `json:"lon"`
	DisplayName string      `json:"display_name"`
}

func (p place) coordinates() (*event.Coordinates, error) {
	lat, err := strconv.ParseFloat(p.Lat.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon.String(), 64)
	if err != nil {
		return nil, fmt.Errorf("lon %q: %w", p.Lon, err)
	}
	return &event.Coordinates{Lat: lat, Lon: lon}, nil
}

type httpProvider struct {
	name    string
	client  *resty.Client
	limiter *rate.Limiter
	bounds  event.Bounds
}

func newHTTPProvider(name string, cfg ProviderConfig) httpProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	bounds := cfg.Bounds
	if bounds == (event.Bounds{}) {
		bounds = event.UKBounds
	}

	return httpProvider{
		name:    name,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		bounds:  bounds,
	}
}

func (p httpProvider) get(ctx context.Context, path string, params map[string]string) (*resty.Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.NewNetwork(p.name, "throttle wait cancelled", err)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, errors.NewNetwork(p.name, "request failed", err)
	}
	return resp, nil
}

// first picks the first result and checks it against the provider's bounds.
func (p httpProvider) first(places []place) (*event.Coordinates, error) {
	if len(places) == 0 {
		return nil, errors.NewNotFound(p.name, "no results")
	}
	coords, err := places[0].coordinates()
	if err != nil {
		return nil, errors.NewParsing(p.name, "invalid coordinates in response", err)
	}
	if !p.bounds.Contains(*coords) {
		return nil, errors.NewValidation(p.name, fmt.Sprintf("result %s is outside the accepted area", coords))
	}
	return coords, nil
}

// LocationIQ is the keyed, primary geocoding service.
type LocationIQ struct {
	httpProvider
	apiKey string
}

// NewLocationIQ creates a LocationIQ provider
func NewLocationIQ(apiKey string, cfg ProviderConfig) *LocationIQ {
	return &LocationIQ{
		httpProvider: newHTTPProvider("locationiq", cfg),
		apiKey:       apiKey,
	}
}

// Name returns the provider name
func (l *LocationIQ) Name() string { return l.name }

// Lookup queries /v1/search.php restricted to Great Britain.
func (l *LocationIQ) Lookup(ctx context.Context, address string) (*event.Coordinates, error) {
	resp, err := l.get(ctx, "/v1/search.php", map[string]string{
		"key":            l.apiKey,
		"q":              address,
		"format":         "json",
		"limit":          "1",
		"countrycodes":   "gb",
		"addressdetails": "1",
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.NewAuth(l.name, resp.StatusCode())
	case http.StatusTooManyRequests:
		return nil, errors.NewRateLimit(l.name, resp.Header().Get("Retry-After"))
	case http.StatusNotFound:
		// LocationIQ answers 404 {"error":"Unable to geocode"} for unknown addresses
		return nil, errors.NewNotFound(l.name, "unable to geocode")
	default:
		return nil, errors.NewNetwork(l.name, fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil)
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error != "" {
		return nil, errors.NewParsing(l.name, "api error: "+apiErr.Error, nil)
	}

	var places []place
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		return nil, errors.NewParsing(l.name, "invalid response body", err)
	}
	return l.first(places)
}

// Nominatim is the free OpenStreetMap fallback.
type Nominatim struct {
	httpProvider
}

// NewNominatim creates a Nominatim provider. OSM policy requires a User-Agent.
func NewNominatim(cfg ProviderConfig) *Nominatim {
	return &Nominatim{httpProvider: newHTTPProvider("nominatim", cfg)}
}

// Name returns the provider name
func (n *Nominatim) Name() string { return n.name }

// Lookup queries /search.
func (n *Nominatim) Lookup(ctx context.Context, address string) (*event.Coordinates, error) {
	resp, err := n.get(ctx, "/search", map[string]string{
		"q":            address,
		"format":       "json",
		"limit":        "1",
		"countrycodes": "gb",
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, errors.NewRateLimit(n.name, resp.Header().Get("Retry-After"))
	default:
		return nil, errors.NewNetwork(n.name, fmt.Sprintf("unexpected status %d", resp.StatusCode()), nil)
	}

	var places []place
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		return nil, errors.NewParsing(n.name, "invalid response body", err)
	}
	return n.first(places)
}
