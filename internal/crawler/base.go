package crawler

import (
	"context"
	"fmt"
	"io"
	neturl "net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"sjsage522/eventworker/helpers"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/extract"
	"sjsage522/eventworker/internal/normalize"
	"sjsage522/eventworker/internal/store"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/cache"
)

// Spider crawls one site and returns the events it found.
type Spider interface {
	Name() string
	Crawl(ctx context.Context) ([]event.Event, error)
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*event.Coordinates, bool)
}

// CommunityGroup is the spider group whose events are all charity events.
const CommunityGroup = "community_social"

const (
	charityCategory = "Charity Events"
	maxLoggedInput  = 200
)

// BaseSpider holds the helpers shared by every spider. Concrete spiders
// embed it and override what they need.
type BaseSpider struct {
	SpiderName string
	Group      string
	Site       string
	StartURLs  []string
	Keywords   extract.Keywords

	// CheckDBBeforeGeocoding skips geocoding and processing of events the
	// Finder already knows.
	CheckDBBeforeGeocoding bool

	Geocoder Geocoder
	Finder   store.Finder
	ErrorLog *helpers.ErrorFileLogger

	// Cache blocks requests to the site for BlockTime after it rate limits us.
	Cache     cache.CacheService
	BlockTime time.Duration

	log *logger.Logger
}

// Name returns the spider name
func (b *BaseSpider) Name() string {
	return b.SpiderName
}

func (b *BaseSpider) logger() *logger.Logger {
	if b.log == nil {
		b.log = logger.ForSpider(b.SpiderName)
	}
	return b.log
}

// guard runs fn and turns errors and panics into a logged fallback.
func guard[T any](b *BaseSpider, method, input string, fallback T, fn func() (T, error)) (result T) {
	fields := logger.Fields{"function": method, "input": helpers.Truncate(input, maxLoggedInput)}
	defer func() {
		if r := recover(); r != nil {
			b.LogError("error", "Error in "+method, fmt.Errorf("panic: %v", r), fields)
			result = fallback
		}
	}()

	v, err := fn()
	if err != nil {
		b.LogError("warning", "Error in "+method, err, fields)
		return fallback
	}
	return v
}

// LogError logs at the given level ("debug", "info", "warning", "error") and
// appends the same line to the error log file.
func (b *BaseSpider) LogError(level, msg string, err error, fields logger.Fields) {
	l := b.logger()
	var evt *zerolog.Event
	switch level {
	case "debug":
		evt = l.Debug()
	case "info":
		evt = l.Info()
	case "warning", "warn":
		evt = l.Warn()
	default:
		evt = l.Error()
	}
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Fields(map[string]interface{}(fields)).Msg(msg)

	line := fmt.Sprintf("[%s] %s", b.SpiderName, msg)
	if err != nil {
		line += ": " + err.Error()
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
		}
		line += " | Context: " + strings.Join(parts, ", ")
	}
	if ferr := b.ErrorLog.Append(line); ferr != nil {
		l.Debug().Err(ferr).Msg("Failed to append to error log")
	}
}

// CleanText collapses whitespace
func (b *BaseSpider) CleanText(s string) string {
	return guard(b, "CleanText", s, s, func() (string, error) {
		return normalize.CleanText(s), nil
	})
}

// AbsoluteURL resolves ref against the first start URL.
func (b *BaseSpider) AbsoluteURL(ref string) string {
	return guard(b, "AbsoluteURL", ref, ref, func() (string, error) {
		if len(b.StartURLs) == 0 {
			return ref, nil
		}
		return normalize.AbsoluteURL(b.StartURLs[0], ref), nil
	})
}

// ConvertDateFormat returns the date as MM/DD/YYYY, or s unchanged when it
// cannot be parsed.
func (b *BaseSpider) ConvertDateFormat(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	return guard(b, "ConvertDateFormat", s, s, func() (string, error) {
		d, err := normalize.ParseDate(s)
		if err != nil {
			return "", err
		}
		return d.Format(normalize.OutputDateLayout), nil
	})
}

// RemoveLocationText strips "Location:" style labels from an address.
func (b *BaseSpider) RemoveLocationText(address string) string {
	return guard(b, "RemoveLocationText", address, address, func() (string, error) {
		return normalize.RemoveLocationText(address), nil
	})
}

// ExtractAddress runs the address heuristics over a page.
func (b *BaseSpider) ExtractAddress(doc *goquery.Document) string {
	return guard(b, "ExtractAddress", documentURL(doc), "", func() (string, error) {
		return extract.Address(doc), nil
	})
}

// ExtractCoordinates runs the coordinate heuristics over a page.
func (b *BaseSpider) ExtractCoordinates(doc *goquery.Document) *event.Coordinates {
	return guard(b, "ExtractCoordinates", documentURL(doc), nil, func() (*event.Coordinates, error) {
		return extract.Coordinates(doc), nil
	})
}

// GeocodeAddress geocodes an address. When e is given and the DB check is
// enabled, events that already exist are not geocoded. Coordinates outside
// the UK are dropped.
func (b *BaseSpider) GeocodeAddress(ctx context.Context, address string, e *event.Event) *event.Coordinates {
	if strings.TrimSpace(address) == "" || b.Geocoder == nil {
		return nil
	}
	return guard(b, "GeocodeAddress", address, nil, func() (*event.Coordinates, error) {
		if e != nil && b.CheckDBBeforeGeocoding && b.Finder != nil {
			if id, found := b.existingPost(ctx, *e); found {
				b.logger().Debug().Int64("post_id", id).Str("address", address).
					Msg("Skipping geocoding, event already in database")
				return nil, nil
			}
		}

		coords, ok := b.Geocoder.Geocode(ctx, address)
		if !ok {
			return nil, nil
		}
		if valid, reason := event.ValidateUKCoordinates(coords); !valid {
			b.LogError("warning", "Geocoded coordinates are invalid: "+reason, nil, logger.Fields{
				"address": helpers.Truncate(address, 100),
				"coords":  coords.String(),
			})
			return nil, nil
		}
		return coords, nil
	})
}

// EventCategory categorises an event with the spider's keyword table.
// Community spiders always report "Charity Events".
func (b *BaseSpider) EventCategory(title string, description []string) (string, string) {
	type pair struct{ category, subcategory string }

	if b.Group == CommunityGroup {
		p := guard(b, "EventCategory", title, pair{charityCategory, extract.GeneralSubcategory}, func() (pair, error) {
			_, sub := extract.Category(title, description, b.Keywords)
			if sub == "" {
				sub = extract.GeneralSubcategory
			}
			return pair{charityCategory, sub}, nil
		})
		return p.category, p.subcategory
	}

	p := guard(b, "EventCategory", title, pair{}, func() (pair, error) {
		category, sub := extract.Category(title, description, b.Keywords)
		return pair{category, sub}, nil
	})
	return p.category, p.subcategory
}

// ShouldProcessEvent reports whether an event is new. A failed lookup
// never blocks processing.
func (b *BaseSpider) ShouldProcessEvent(ctx context.Context, title, date, url string) bool {
	if !b.CheckDBBeforeGeocoding || b.Finder == nil {
		return true
	}
	id, found := b.existingPost(ctx, event.Event{Title: title, Date: date, URL: url})
	if found {
		b.logger().Info().Int64("post_id", id).Str("title", helpers.Truncate(title, 50)).
			Msg("Skipping duplicate event")
		return false
	}
	return true
}

func (b *BaseSpider) existingPost(ctx context.Context, e event.Event) (int64, bool) {
	id, found, err := store.Exists(ctx, b.Finder, e)
	if err != nil {
		b.LogError("debug", "Error checking if event exists in database", err, logger.Fields{"url": e.URL})
		return 0, false
	}
	return id, found
}

func (b *BaseSpider) rateLimitKey() string {
	return b.SpiderName + "_rate_limited"
}

// fetchDocument downloads and parses a page. After a rate-limit answer the
// site is not contacted again until BlockTime has passed.
func (b *BaseSpider) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if b.Cache != nil {
		if _, err := b.Cache.Get(b.rateLimitKey()); err == nil {
			return nil, errors.NewRateLimit(b.SpiderName, fmt.Sprintf("%d", int(b.BlockTime/time.Second)))
		}
	}

	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		if b.Cache != nil && b.BlockTime > 0 && errors.Is(err, errors.ErrorTypeRateLimit) {
			if cerr := b.Cache.Set(b.rateLimitKey(), []byte(url), b.BlockTime); cerr != nil {
				b.logger().Warn().Err(cerr).Msg("Failed to record rate limit")
			}
		}
		return nil, err
	}
	return parseDocument(body, url)
}

func parseDocument(r io.Reader, url string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.NewParsing(url, "HTML parsing failed", err)
	}
	if parsed, perr := neturl.Parse(url); perr == nil {
		doc.Url = parsed
	}
	return doc, nil
}

func documentURL(doc *goquery.Document) string {
	if doc == nil || doc.Url == nil {
		return ""
	}
	return doc.Url.String()
}
