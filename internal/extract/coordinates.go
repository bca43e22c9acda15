package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/eventworker/internal/event"
)

// Coordinates looks for coordinates embedded in an event page: Open Graph
// place meta tags, data-lat/data-lng attributes, then Google Maps links.
// Map links are only trusted inside the UK.
func Coordinates(doc *goquery.Document) *event.Coordinates {
	if doc == nil {
		return nil
	}

	lat, _ := doc.Find(`meta[property="place:location:latitude"]`).First().Attr("content")
	lon, _ := doc.Find(`meta[property="place:location:longitude"]`).First().Attr("content")
	if c := parsePair(lat, lon, event.WorldBounds); c != nil {
		return c
	}

	lat, _ = doc.Find("[data-lat]").First().Attr("data-lat")
	lon, ok := doc.Find("[data-lng]").First().Attr("data-lng")
	if !ok {
		lon, _ = doc.Find("[data-lon]").First().Attr("data-lon")
	}
	if c := parsePair(lat, lon, event.WorldBounds); c != nil {
		return c
	}

	var found *event.Coordinates
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		found = mapsLinkCoordinates(href)
		return found == nil
	})
	return found
}

// mapsLinkCoordinates parses ".../maps/place/...@51.50,-0.12,15z".
func mapsLinkCoordinates(href string) *event.Coordinates {
	if !strings.Contains(href, "google.com/maps") {
		return nil
	}
	_, after, ok := strings.Cut(href, "@")
	if !ok {
		return nil
	}
	parts := strings.SplitN(after, ",", 3)
	if len(parts) < 2 {
		return nil
	}
	return parsePair(parts[0], parts[1], event.UKBounds)
}

func parsePair(lat, lon string, bounds event.Bounds) *event.Coordinates {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return nil
	}
	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil
	}
	lonF, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil
	}
	c := event.Coordinates{Lat: latF, Lon: lonF}
	if !bounds.Contains(c) {
		return nil
	}
	return &c
}
