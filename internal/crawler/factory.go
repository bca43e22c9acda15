package crawler

import (
	"sort"
	"strings"
	"time"

	"sjsage522/eventworker/helpers"
	"sjsage522/eventworker/internal/store"
	"sjsage522/eventworker/logger"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/cache"
)

// Spider groups
const (
	FitnessGroup  = "fitness_training"
	WellnessGroup = "wellness_mind"
)

const defaultBlockTime = 10 * time.Minute

// Options carries the collaborators shared by all spiders.
type Options struct {
	Geocoder               Geocoder
	Finder                 store.Finder
	ErrorLog               *helpers.ErrorFileLogger
	Cache                  cache.CacheService
	CheckDBBeforeGeocoding bool
	// DownloadDelay is the minimum delay between requests of one spider.
	// A site config may ask for more.
	DownloadDelay time.Duration
}

// Configs returns the site configurations.
func Configs() []SpiderConfig {
	return []SpiderConfig{
		{
			Name:      "bhf",
			Group:     CommunityGroup,
			StartURLs: []string{"https://www.bhf.org.uk/how-you-can-help/events"},
			Selectors: Selectors{
				EventLinks: []string{
					`a[href*="/how-you-can-help/events/"]`,
					`[class*="event-card"] a`,
				},
				NextPage: `a[rel="next"]`,
				Title:    []string{"h1", ".event-title", `[class*="event-title"]`, "h2"},
				Date: []string{
					".event-sidebar-info__details__item--info time@datetime",
					"time@datetime",
					"time",
					".event-date",
					`[class*="date"]`,
				},
				Description: []string{
					"main .rich-text p",
					"main p",
					"article p",
				},
				Address: []string{
					".bhfi-event-location ~ .event-sidebar-info__details__item--info",
				},
			},
			LinkExclude: []string{"/search", "/filter", "?page="},
			MaxPages:    5,
			Keywords:    FitnessKeywords,
		},
		{
			Name:      "findarace",
			Group:     FitnessGroup,
			StartURLs: []string{"https://findarace.com/events"},
			Selectors: Selectors{
				EventLinks: []string{
					`a[href*="/events/"]`,
					`a[href*="/race/"]`,
					`[class*="event-card"] a`,
					"article a",
				},
				NextPage: `a[rel="next"]`,
				Title:    []string{"h1", ".event-title", ".title"},
				Date: []string{
					`[class*="w-24"][class*="text-gray-700"] + *`,
					".date",
					"time@datetime",
					".event-date",
					`[class*="date"]`,
				},
				Description: []string{
					`[class*="inline-block"][class*="mb-4"][class*="text-gray-700"] + *`,
					".description p, .event-description p",
					"article p",
					"p",
				},
			},
			LinkExclude:    findaraceExcluded,
			MaxPages:       10,
			Keywords:       FitnessKeywords,
			RequireKeyword: true,
		},
		{
			Name:  "runthrough",
			Group: FitnessGroup,
			StartURLs: []string{
				"https://www.runthrough.co.uk/events/",
				"https://www.runthrough.co.uk/all-events/",
			},
			Selectors: Selectors{
				EventLinks: []string{`a[href*="/events/"]`, ".event a", "article a"},
				Title:      []string{"h1", ".event-title"},
				Date:       []string{"time@datetime", ".event-date", `[class*="date"]`},
				Description: []string{
					".event-description p",
					".entry-content p",
					"main p",
				},
			},
			LinkInclude: []string{"runthrough.co.uk"},
			LinkExclude: []string{"/results", "/photos", "/category/", "/tag/"},
			MaxPages:    2,
			Keywords:    FitnessKeywords,
		},
		{
			Name:      "mindspace",
			Group:     WellnessGroup,
			StartURLs: []string{"https://www.mindspace.org.uk/retreats/"},
			Selectors: Selectors{
				Card:        "article, .retreat, .event",
				CardLink:    "a",
				Title:       []string{"h2", "h3", ".entry-title"},
				Date:        []string{"time@datetime", ".date", ".event-date"},
				Description: []string{".entry-summary p", "p"},
				Address:     []string{".location", ".venue"},
			},
			DownloadDelay: 2 * time.Second,
			Keywords:      WellnessKeywords,
		},
	}
}

var findaraceExcluded = []string{
	"/events/p", "/events#", "/about", "/contact", "/faq", "/login", "/signup",
	"/cart", "/wishlist", "/results", "/photos", "/videos", "/blog", "/news",
	"/terms", "/privacy", "/cookie", "/search", "/distances/", "/regions/",
	"/cities/", "/venues/", "/series/", "/gift", "/membership", "/calendar",
	"/corporate", "/charity", "/partners", "/volunteer", "/careers", "/club",
}

// Spiders builds every configured spider.
func Spiders(opts Options) []Spider {
	return Build(Configs(), opts)
}

// Build turns configs into spiders sharing opts.
func Build(configs []SpiderConfig, opts Options) []Spider {
	base := BaseSpider{
		CheckDBBeforeGeocoding: opts.CheckDBBeforeGeocoding,
		Geocoder:               opts.Geocoder,
		Finder:                 opts.Finder,
		ErrorLog:               opts.ErrorLog,
		Cache:                  opts.Cache,
		BlockTime:              defaultBlockTime,
	}

	spiders := make([]Spider, 0, len(configs))
	for _, cfg := range configs {
		if cfg.DownloadDelay < opts.DownloadDelay {
			cfg.DownloadDelay = opts.DownloadDelay
		}
		spiders = append(spiders, NewConfigurableSpider(cfg, base))
		logger.ForSpider(cfg.Name).Debug().
			Strs("start_urls", cfg.StartURLs).
			Str("group", cfg.Group).
			Msg("Spider registered")
	}
	return spiders
}

// Select returns the spiders with the given names in the order asked for.
// No names selects all of them.
func Select(spiders []Spider, names []string) ([]Spider, error) {
	if len(names) == 0 {
		return spiders, nil
	}
	byName := make(map[string]Spider, len(spiders))
	for _, s := range spiders {
		byName[s.Name()] = s
	}

	selected := make([]Spider, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, errors.NewNotFound(name, "unknown spider, known: "+strings.Join(Names(spiders), ", "))
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// Names lists spider names alphabetically.
func Names(spiders []Spider) []string {
	names := make([]string, 0, len(spiders))
	for _, s := range spiders {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}
