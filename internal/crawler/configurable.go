package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"sjsage522/eventworker/helpers"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/internal/extract"
	"sjsage522/eventworker/internal/normalize"
	"sjsage522/eventworker/logger"
)

const (
	shortDescriptionLength = 200
	defaultMaxPages        = 1
)

// Selectors are CSS selectors tried in order; the first one yielding text
// wins. A selector may end in "@attr" to read an attribute instead of text.
type Selectors struct {
	// EventLinks find links to event detail pages on a listing page.
	EventLinks []string
	// Card selects one event per element on the listing page. When set,
	// events are read from the listing and detail pages are not visited.
	Card        string
	CardLink    string
	NextPage    string
	Title       []string
	Date        []string
	Description []string
	Address     []string
}

// SpiderConfig describes a site crawled by a ConfigurableSpider.
type SpiderConfig struct {
	Name      string
	Group     string
	Site      string
	StartURLs []string
	Selectors Selectors

	// LinkInclude keeps only links containing one of these substrings.
	LinkInclude []string
	// LinkExclude drops links containing any of these substrings.
	LinkExclude []string

	MaxPages      int
	DownloadDelay time.Duration
	BlockTime     time.Duration

	Keywords extract.Keywords
	// RequireKeyword drops events that match no keyword.
	RequireKeyword bool

	// Refine adjusts an event after the generic extraction.
	Refine func(e *event.Event, doc *goquery.Document)
}

// ConfigurableSpider crawls a site described by a SpiderConfig.
type ConfigurableSpider struct {
	BaseSpider
	Config  SpiderConfig
	limiter *rate.Limiter
}

// NewConfigurableSpider creates a spider. Shared collaborators come from base.
func NewConfigurableSpider(cfg SpiderConfig, base BaseSpider) *ConfigurableSpider {
	base.SpiderName = cfg.Name
	base.Group = cfg.Group
	base.Site = cfg.Site
	if base.Site == "" {
		base.Site = cfg.Name
	}
	base.StartURLs = cfg.StartURLs
	base.Keywords = cfg.Keywords
	if cfg.BlockTime > 0 {
		base.BlockTime = cfg.BlockTime
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}

	limit := rate.Inf
	if cfg.DownloadDelay > 0 {
		limit = rate.Every(cfg.DownloadDelay)
	}
	return &ConfigurableSpider{
		BaseSpider: base,
		Config:     cfg,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Crawl visits the listing pages and returns the events found. It fails only
// when no listing page could be fetched or ctx is cancelled.
func (s *ConfigurableSpider) Crawl(ctx context.Context) ([]event.Event, error) {
	log := s.logger()
	start := time.Now()

	var (
		events     []event.Event
		seenEvents = make(map[string]bool)
		seenLinks  = make(map[string]bool)
		visited    = make(map[string]bool)
		queue      = append([]string(nil), s.Config.StartURLs...)
		fetched    int
		lastErr    error
	)

	add := func(e *event.Event) {
		if e == nil {
			return
		}
		key := e.Title + "_" + e.Date
		if seenEvents[key] {
			log.Debug().Str("title", e.Title).Msg("Skipping duplicate item")
			return
		}
		seenEvents[key] = true
		events = append(events, *e)
		log.Info().Str("title", helpers.Truncate(e.Title, 50)).Int("total", len(events)).Msg("Event extracted")
	}

	for len(queue) > 0 && len(visited) < s.Config.MaxPages {
		page := queue[0]
		queue = queue[1:]
		if visited[page] {
			continue
		}
		visited[page] = true

		doc, err := s.fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			lastErr = err
			s.LogError("warning", "Request failed", err, logger.Fields{"url": page})
			continue
		}
		fetched++
		log.Info().Str("url", page).Msg("Parsing page")

		if s.Config.Selectors.Card != "" {
			doc.Find(s.Config.Selectors.Card).Each(func(_ int, card *goquery.Selection) {
				add(s.parseCard(ctx, page, card))
			})
		} else {
			for _, link := range s.eventLinks(doc, page) {
				if seenLinks[link] {
					continue
				}
				seenLinks[link] = true

				detail, err := s.fetch(ctx, link)
				if err != nil {
					if ctx.Err() != nil {
						return events, ctx.Err()
					}
					s.LogError("warning", "Request failed", err, logger.Fields{"url": link})
					continue
				}
				add(s.ParseEvent(ctx, link, detail))
			}
		}

		if next := s.nextPage(doc, page); next != "" && !visited[next] {
			queue = append(queue, next)
		}
	}

	if fetched == 0 && lastErr != nil {
		return nil, fmt.Errorf("%s: no listing page could be fetched: %w", s.SpiderName, lastErr)
	}

	log.Info().
		Int("events", len(events)).
		Int("pages", len(visited)).
		Dur("elapsed", time.Since(start)).
		Msg("Crawl finished")
	return events, nil
}

func (s *ConfigurableSpider) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.fetchDocument(ctx, url)
}

// eventLinks returns the absolute, filtered event links of a listing page
// in document order.
func (s *ConfigurableSpider) eventLinks(doc *goquery.Document, page string) []string {
	seen := make(map[string]bool)
	var links []string
	for _, sel := range s.Config.Selectors.EventLinks {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "#") {
				return
			}
			link := resolve(page, href)
			if link == page || seen[link] || !s.keepLink(link) {
				return
			}
			seen[link] = true
			links = append(links, link)
		})
	}
	return links
}

func (s *ConfigurableSpider) keepLink(link string) bool {
	for _, ex := range s.Config.LinkExclude {
		if strings.Contains(link, ex) {
			return false
		}
	}
	if len(s.Config.LinkInclude) == 0 {
		return true
	}
	for _, in := range s.Config.LinkInclude {
		if strings.Contains(link, in) {
			return true
		}
	}
	return false
}

func (s *ConfigurableSpider) nextPage(doc *goquery.Document, page string) string {
	if s.Config.Selectors.NextPage == "" {
		return ""
	}
	href, ok := doc.Find(s.Config.Selectors.NextPage).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return resolve(page, href)
}

// parseCard reads one event from a listing card.
func (s *ConfigurableSpider) parseCard(ctx context.Context, page string, card *goquery.Selection) *event.Event {
	link := page
	if s.Config.Selectors.CardLink != "" {
		if href, ok := card.Find(s.Config.Selectors.CardLink).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
			link = resolve(page, href)
		}
	}
	// detached copy, so page-wide heuristics only see the card
	doc := goquery.NewDocumentFromNode(card.Clone().Get(0))
	return s.ParseEvent(ctx, link, doc)
}

var descriptionDateRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,2}(?:st|nd|rd|th)?\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})`),
	regexp.MustCompile(`(?i)(\d{1,2}(?:st|nd|rd|th)?\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{4})`),
	regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
	regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{4})`),
	regexp.MustCompile(`(\d{4}-\d{1,2}-\d{1,2})`),
}

// ParseEvent extracts one event from a detail page (or a listing card).
// It returns nil for pages without a title, events outside the keyword
// table when RequireKeyword is set, and events already in the database.
func (s *ConfigurableSpider) ParseEvent(ctx context.Context, url string, doc *goquery.Document) *event.Event {
	sel := s.Config.Selectors
	log := s.logger()

	title := s.CleanText(firstText(doc.Selection, sel.Title))
	if title == "" {
		log.Debug().Str("url", url).Msg("No title found, skipping")
		return nil
	}

	descParts := allTexts(doc.Selection, sel.Description, s.CleanText)

	rawDate := s.CleanText(firstText(doc.Selection, sel.Date))
	if rawDate == "" && len(descParts) > 0 {
		joined := strings.Join(descParts, " ")
		for _, re := range descriptionDateRegexes {
			if m := re.FindStringSubmatch(joined); m != nil {
				rawDate = m[1]
				break
			}
		}
	}
	date := s.ConvertDateFormat(rawDate)

	if s.Config.RequireKeyword && !s.matchesKeyword(title, descParts) {
		log.Info().Str("title", title).Msg("Event does not match target keywords, skipping")
		return nil
	}

	if !s.ShouldProcessEvent(ctx, title, date, url) {
		return nil
	}

	e := &event.Event{
		Title:            title,
		Date:             date,
		RawDate:          rawDate,
		ShortDescription: shortDescription(descParts),
		FullDescription:  strings.Join(descParts, " "),
		URL:              url,
		Site:             s.Site,
	}

	address := s.CleanText(firstText(doc.Selection, sel.Address))
	if address == "" {
		address = s.ExtractAddress(doc)
	}
	if address != "" {
		address = s.RemoveLocationText(address)
	}
	e.Address = address

	e.Coordinates = s.ExtractCoordinates(doc)
	if e.Coordinates == nil && address != "" {
		// existence was checked above
		e.Coordinates = s.GeocodeAddress(ctx, address, nil)
	}

	e.Category, e.Subcategory = s.EventCategory(title, descParts)

	if s.Config.Refine != nil {
		s.Config.Refine(e, doc)
	}
	return e
}

func (s *ConfigurableSpider) matchesKeyword(title string, descParts []string) bool {
	text := strings.ToLower(title + " " + strings.Join(descParts, " "))
	for _, kw := range s.Keywords.All() {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// shortDescription is the first line of the description, cut on a word
// boundary.
func shortDescription(parts []string) string {
	joined := strings.TrimSpace(strings.Join(parts, "\n"))
	if joined == "" {
		return ""
	}
	first := strings.SplitN(joined, "\n", 2)[0]
	runes := []rune(first)
	if len(runes) <= shortDescriptionLength {
		return first
	}
	cut := string(runes[:shortDescriptionLength])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// firstText returns the first non-empty value produced by the selectors.
func firstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		css, attr := splitSelector(sel)
		var found string
		root.Find(css).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if attr != "" {
				found, _ = s.Attr(attr)
			} else {
				found = s.Text()
			}
			found = strings.TrimSpace(found)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// allTexts returns the texts of the first selector that matches anything.
func allTexts(root *goquery.Selection, selectors []string, clean func(string) string) []string {
	for _, sel := range selectors {
		css, attr := splitSelector(sel)
		var parts []string
		root.Find(css).Each(func(_ int, s *goquery.Selection) {
			var v string
			if attr != "" {
				v, _ = s.Attr(attr)
			} else {
				v = s.Text()
			}
			if v = clean(v); v != "" {
				parts = append(parts, v)
			}
		})
		if len(parts) > 0 {
			return parts
		}
	}
	return nil
}

func splitSelector(sel string) (css, attr string) {
	if i := strings.LastIndex(sel, "@"); i > 0 && !strings.ContainsAny(sel[i:], "]) ") {
		return sel[:i], sel[i+1:]
	}
	return sel, ""
}

func resolve(base, ref string) string {
	return normalize.AbsoluteURL(base, ref)
}
