package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/eventworker/helpers"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/pkg/errors"
	"sjsage522/eventworker/services/cache"
)

type fakeGeocoder struct {
	calls  int32
	coords *event.Coordinates
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (*event.Coordinates, bool) {
	atomic.AddInt32(&g.calls, 1)
	if g.coords == nil {
		return nil, false
	}
	c := *g.coords
	return &c, true
}

type fakeFinder struct {
	urls map[string]int64
	err  error
}

func (f *fakeFinder) FindByURL(_ context.Context, url string) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	id, ok := f.urls[url]
	return id, ok, nil
}

func (f *fakeFinder) FindByTitleDate(_ context.Context, _ string, _ time.Time) (int64, bool, error) {
	return 0, false, f.err
}

func (f *fakeFinder) FindByTitleDateText(_ context.Context, _, _ string) (int64, bool, error) {
	return 0, false, f.err
}

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}
}

func parse(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

const (
	listingPage1 = `<html><body>
		<a href="/events/bath-half">Bath Half</a>
		<a href="/events/hyde-park-trail">Hyde Park</a>
		<a href="/events/bath-half">Bath Half again</a>
		<a href="/events/about">About us</a>
		<a href="#top">Top</a>
		<a rel="next" href="/events?page=2">Next</a>
	</body></html>`

	listingPage2 = `<html><body>
		<a href="/events/serpentine-swim">Serpentine</a>
		<a rel="next" href="/events?page=3">Next</a>
	</body></html>`

	bathHalfPage = `<html><head>
		<meta property="place:location:latitude" content="51.38">
		<meta property="place:location:longitude" content="-2.36">
	</head><body>
		<h1>Bath  Half Marathon</h1>
		<time datetime="2026-03-01">1 March</time>
		<div class="description"><p>Two laps of the city.</p><p>Closed roads.</p></div>
	</body></html>`

	hydeParkPage = `<html><body>
		<h1>Hyde Park Trail Run</h1>
		<div class="description"><p>Sunday 12 October 2025, start 9am.</p></div>
		<div class="venue">Location: Hyde Park, London W2 2UH</div>
	</body></html>`

	swimPage = `<html><body>
		<h1>Serpentine Lake Swim</h1>
		<div class="description"><p>Cold water.</p></div>
	</body></html>`
)

func newSiteServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var page3 int32
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			htmlHandler(listingPage1)(w, r)
		case "2":
			htmlHandler(listingPage2)(w, r)
		default:
			atomic.AddInt32(&page3, 1)
			htmlHandler(listingPage2)(w, r)
		}
	})
	mux.HandleFunc("/events/bath-half", htmlHandler(bathHalfPage))
	mux.HandleFunc("/events/hyde-park-trail", htmlHandler(hydeParkPage))
	mux.HandleFunc("/events/serpentine-swim", htmlHandler(swimPage))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &page3
}

func testConfig(startURL string) SpiderConfig {
	return SpiderConfig{
		Name:      "testsite",
		Group:     FitnessGroup,
		StartURLs: []string{startURL},
		Selectors: Selectors{
			EventLinks:  []string{`a[href*="/events/"]`},
			NextPage:    `a[rel="next"]`,
			Title:       []string{"h1"},
			Date:        []string{"time@datetime", ".date"},
			Description: []string{".description p"},
		},
		LinkExclude: []string{"/about"},
		MaxPages:    2,
		Keywords:    FitnessKeywords,
	}
}

func TestConfigurableSpiderCrawl(t *testing.T) {
	server, page3 := newSiteServer(t)
	geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 51.5073, Lon: -0.1657}}

	spider := NewConfigurableSpider(testConfig(server.URL+"/events"), BaseSpider{Geocoder: geo})
	events, err := spider.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)

	bath := events[0]
	assert.Equal(t, "Bath Half Marathon", bath.Title)
	assert.Equal(t, "03/01/2026", bath.Date)
	assert.Equal(t, "2026-03-01", bath.RawDate)
	assert.Equal(t, "Two laps of the city.", bath.ShortDescription)
	assert.Equal(t, "Two laps of the city. Closed roads.", bath.FullDescription)
	assert.Equal(t, server.URL+"/events/bath-half", bath.URL)
	assert.Equal(t, &event.Coordinates{Lat: 51.38, Lon: -2.36}, bath.Coordinates)
	assert.Equal(t, "Running", bath.Category)
	assert.Equal(t, "Road running", bath.Subcategory)
	assert.Equal(t, "testsite", bath.Site)

	hyde := events[1]
	assert.Equal(t, "Hyde Park Trail Run", hyde.Title)
	assert.Equal(t, "10/12/2025", hyde.Date, "date taken from the description")
	assert.Equal(t, "Hyde Park, London W2 2UH", hyde.Address)
	assert.Equal(t, &event.Coordinates{Lat: 51.5073, Lon: -0.1657}, hyde.Coordinates)
	assert.Equal(t, "Trail running", hyde.Subcategory)

	swim := events[2]
	assert.Equal(t, "Serpentine Lake Swim", swim.Title)
	assert.Empty(t, swim.Date)
	assert.Nil(t, swim.Coordinates)
	assert.Equal(t, "Swimming", swim.Category)

	assert.Equal(t, int32(1), atomic.LoadInt32(&geo.calls), "only the page without coordinates is geocoded")
	assert.Zero(t, atomic.LoadInt32(page3), "MaxPages stops pagination")
}

func TestConfigurableSpiderRequireKeyword(t *testing.T) {
	server, _ := newSiteServer(t)
	cfg := testConfig(server.URL + "/events")
	cfg.RequireKeyword = true
	cfg.Keywords = FitnessKeywords[2:3] // swimming only

	events, err := NewConfigurableSpider(cfg, BaseSpider{}).Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Serpentine Lake Swim", events[0].Title)
}

func TestConfigurableSpiderCards(t *testing.T) {
	listing := `<html><body>
		<div class="retreat">
			<h3>Silent Meditation Retreat</h3>
			<span class="date">14th March 2026</span>
			<p>A weekend of mindful silence.</p>
			<span class="location">Sharpham House, Totnes TQ9 7UT</span>
			<a href="/retreats/silent">Book</a>
		</div>
		<div class="retreat">
			<h3>Yoga Weekend</h3>
			<span class="date">04/04/2026</span>
			<p>Vinyasa in the hills.</p>
			<a href="/retreats/yoga">Book</a>
		</div>
		<div class="retreat"><p>No title here</p></div>
	</body></html>`
	server := httptest.NewServer(htmlHandler(listing))
	defer server.Close()

	geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 50.42, Lon: -3.67}}
	spider := NewConfigurableSpider(SpiderConfig{
		Name:      "retreats",
		Group:     WellnessGroup,
		StartURLs: []string{server.URL + "/retreats/"},
		Selectors: Selectors{
			Card:        ".retreat",
			CardLink:    "a",
			Title:       []string{"h3"},
			Date:        []string{".date"},
			Description: []string{"p"},
			Address:     []string{".location"},
		},
		Keywords: WellnessKeywords,
	}, BaseSpider{Geocoder: geo})

	events, err := spider.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Silent Meditation Retreat", events[0].Title)
	assert.Equal(t, "03/14/2026", events[0].Date)
	assert.Equal(t, server.URL+"/retreats/silent", events[0].URL)
	assert.Equal(t, "Sharpham House, Totnes TQ9 7UT", events[0].Address)
	assert.Equal(t, &event.Coordinates{Lat: 50.42, Lon: -3.67}, events[0].Coordinates)
	assert.Equal(t, "Mindfulness", events[0].Subcategory)

	assert.Equal(t, "Yoga Weekend", events[1].Title)
	assert.Equal(t, "04/04/2026", events[1].Date)
	assert.Equal(t, "Yoga and Pilates", events[1].Subcategory)
	assert.Nil(t, events[1].Coordinates)
	assert.Equal(t, int32(1), atomic.LoadInt32(&geo.calls))
}

func TestCrawlFailsWhenNoListingLoads(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewConfigurableSpider(testConfig(server.URL+"/events"), BaseSpider{}).Crawl(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeNetwork))
}

func TestCrawlCancelled(t *testing.T) {
	server, _ := newSiteServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewConfigurableSpider(testConfig(server.URL+"/events"), BaseSpider{}).Crawl(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseEventSkipsKnownEvents(t *testing.T) {
	geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 51.5, Lon: -0.1}}
	finder := &fakeFinder{urls: map[string]int64{"https://example.org/known": 7}}
	spider := NewConfigurableSpider(testConfig("https://example.org/events"), BaseSpider{
		Geocoder:               geo,
		Finder:                 finder,
		CheckDBBeforeGeocoding: true,
	})

	doc := parse(t, hydeParkPage)
	assert.Nil(t, spider.ParseEvent(context.Background(), "https://example.org/known", doc))
	assert.Zero(t, atomic.LoadInt32(&geo.calls))

	e := spider.ParseEvent(context.Background(), "https://example.org/new", doc)
	require.NotNil(t, e)
	assert.Equal(t, int32(1), atomic.LoadInt32(&geo.calls))
}

func TestShouldProcessEvent(t *testing.T) {
	ctx := context.Background()
	finder := &fakeFinder{urls: map[string]int64{"https://example.org/a": 1}}

	b := &BaseSpider{SpiderName: "test", Finder: finder, CheckDBBeforeGeocoding: true}
	assert.False(t, b.ShouldProcessEvent(ctx, "A", "01/02/2026", "https://example.org/a"))
	assert.True(t, b.ShouldProcessEvent(ctx, "B", "01/02/2026", "https://example.org/b"))

	b.CheckDBBeforeGeocoding = false
	assert.True(t, b.ShouldProcessEvent(ctx, "A", "01/02/2026", "https://example.org/a"))

	broken := &BaseSpider{SpiderName: "test", Finder: &fakeFinder{err: assert.AnError}, CheckDBBeforeGeocoding: true}
	assert.True(t, broken.ShouldProcessEvent(ctx, "A", "01/02/2026", "https://example.org/a"), "lookup errors never block")
}

func TestGeocodeAddress(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 53.48, Lon: -2.24}}
		b := &BaseSpider{SpiderName: "test", Geocoder: geo}
		assert.Equal(t, &event.Coordinates{Lat: 53.48, Lon: -2.24}, b.GeocodeAddress(ctx, "Manchester", nil))
	})

	t.Run("outside the UK", func(t *testing.T) {
		geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 40.71, Lon: -74.0}}
		b := &BaseSpider{SpiderName: "test", Geocoder: geo}
		assert.Nil(t, b.GeocodeAddress(ctx, "New York", nil))
	})

	t.Run("not found", func(t *testing.T) {
		b := &BaseSpider{SpiderName: "test", Geocoder: &fakeGeocoder{}}
		assert.Nil(t, b.GeocodeAddress(ctx, "Nowhere", nil))
	})

	t.Run("blank address", func(t *testing.T) {
		geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 53.48, Lon: -2.24}}
		b := &BaseSpider{SpiderName: "test", Geocoder: geo}
		assert.Nil(t, b.GeocodeAddress(ctx, "  ", nil))
		assert.Zero(t, geo.calls)
	})

	t.Run("known event", func(t *testing.T) {
		geo := &fakeGeocoder{coords: &event.Coordinates{Lat: 53.48, Lon: -2.24}}
		b := &BaseSpider{
			SpiderName:             "test",
			Geocoder:               geo,
			Finder:                 &fakeFinder{urls: map[string]int64{"https://example.org/a": 3}},
			CheckDBBeforeGeocoding: true,
		}
		assert.Nil(t, b.GeocodeAddress(ctx, "Manchester", &event.Event{URL: "https://example.org/a"}))
		assert.Zero(t, geo.calls)
	})
}

func TestEventCategory(t *testing.T) {
	fitness := &BaseSpider{SpiderName: "f", Group: FitnessGroup, Keywords: FitnessKeywords}
	category, sub := fitness.EventCategory("Bath Half Marathon", nil)
	assert.Equal(t, "Running", category)
	assert.Equal(t, "Road running", sub)

	category, sub = (&BaseSpider{SpiderName: "none"}).EventCategory("Anything", nil)
	assert.Empty(t, category)
	assert.Empty(t, sub)

	charity := &BaseSpider{SpiderName: "c", Group: CommunityGroup, Keywords: FitnessKeywords}
	category, sub = charity.EventCategory("London Marathon for BHF", nil)
	assert.Equal(t, "Charity Events", category)
	assert.Equal(t, "Road running", sub)

	category, sub = charity.EventCategory("Bake sale", []string{"Cakes for the heart"})
	assert.Equal(t, "Charity Events", category)
	assert.Equal(t, "General", sub)

	noTable := &BaseSpider{SpiderName: "c", Group: CommunityGroup}
	category, sub = noTable.EventCategory("Bake sale", nil)
	assert.Equal(t, "Charity Events", category)
	assert.Equal(t, "General", sub)
}

func TestBaseHelpers(t *testing.T) {
	b := &BaseSpider{SpiderName: "test", StartURLs: []string{"https://example.org/events/"}}

	assert.Equal(t, "a b", b.CleanText("  a \n b "))
	assert.Equal(t, "https://example.org/events/x", b.AbsoluteURL("x"))
	assert.Equal(t, "https://example.org/y", b.AbsoluteURL("/y"))
	assert.Equal(t, "10/30/2025", b.ConvertDateFormat("30 October 2025"))
	assert.Equal(t, "TBC", b.ConvertDateFormat("TBC"))
	assert.Equal(t, "", b.ConvertDateFormat(""))
	assert.Equal(t, "London, UK", b.RemoveLocationText("Location: London, UK"))
	assert.Equal(t, "London, UK", b.RemoveLocationText("London, UK"))

	none := &BaseSpider{SpiderName: "test"}
	assert.Equal(t, "/y", none.AbsoluteURL("/y"))
}

func TestGuardRecoversAndLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	b := &BaseSpider{SpiderName: "test", ErrorLog: helpers.NewErrorFileLogger(path)}

	got := guard(b, "Explode", "some input", "fallback", func() (string, error) {
		panic("boom")
	})
	assert.Equal(t, "fallback", got)

	got = guard(b, "Fail", strings.Repeat("x", 300), "fallback", func() (string, error) {
		return "ignored", assert.AnError
	})
	assert.Equal(t, "fallback", got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[test] Error in Explode: panic: boom | Context: function=Explode, input=some input")
	assert.Contains(t, lines[1], "[test] Error in Fail: "+assert.AnError.Error())
	assert.Contains(t, lines[1], "input="+strings.Repeat("x", 200)+"...")
}

func TestExtractHelpersHandleNilDocument(t *testing.T) {
	b := &BaseSpider{SpiderName: "test"}
	assert.Empty(t, b.ExtractAddress(nil))
	assert.Nil(t, b.ExtractCoordinates(nil))
}

func TestRateLimitBlocksSite(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	b := &BaseSpider{SpiderName: "test", Cache: cache.NewMemoryService(), BlockTime: time.Minute}

	_, err := b.fetchDocument(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))

	_, err = b.fetchDocument(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "blocked requests do not reach the site")
}

func TestSpidersRegistry(t *testing.T) {
	spiders := Spiders(Options{DownloadDelay: time.Second})
	assert.Equal(t, []string{"bhf", "findarace", "mindspace", "runthrough"}, Names(spiders))

	for _, s := range spiders {
		cs, ok := s.(*ConfigurableSpider)
		require.True(t, ok)
		assert.GreaterOrEqual(t, cs.Config.DownloadDelay, time.Second, s.Name())
		assert.NotEmpty(t, cs.StartURLs, s.Name())
	}

	selected, err := Select(spiders, []string{"mindspace", "bhf"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "mindspace", selected[0].Name())
	assert.Equal(t, "bhf", selected[1].Name())

	all, err := Select(spiders, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = Select(spiders, []string{"nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeNotFound))
}

func TestSplitSelector(t *testing.T) {
	tests := []struct {
		in, css, attr string
	}{
		{"time@datetime", "time", "datetime"},
		{".date", ".date", ""},
		{`a[href*="@"]`, `a[href*="@"]`, ""},
	}
	for _, tt := range tests {
		css, attr := splitSelector(tt.in)
		assert.Equal(t, tt.css, css, tt.in)
		assert.Equal(t, tt.attr, attr, tt.in)
	}
}

func TestShortDescription(t *testing.T) {
	assert.Equal(t, "", shortDescription(nil))
	assert.Equal(t, "first", shortDescription([]string{"first", "second"}))

	long := strings.Repeat("word ", 60)
	got := shortDescription([]string{long})
	assert.True(t, strings.HasSuffix(got, "word..."), got)
	assert.LessOrEqual(t, len([]rune(got)), shortDescriptionLength+3)
}
