package event

import (
	"fmt"
	"math"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the point the way it is logged.
func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Event is one scraped listing as written to a feed file.
type Event struct {
	Title            string       `json:"name"`
	Date             string       `json:"date"`
	RawDate          string       `json:"raw_date,omitempty"`
	ShortDescription string       `json:"short_description,omitempty"`
	FullDescription  string       `json:"full_description,omitempty"`
	URL              string       `json:"url,omitempty"`
	Address          string       `json:"address,omitempty"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	Category         string       `json:"category,omitempty"`
	Subcategory      string       `json:"subcategory,omitempty"`
	Site             string       `json:"site,omitempty"`
}

// Description prefers the full description over the short one.
func (e Event) Description() string {
	if e.FullDescription != "" {
		return e.FullDescription
	}
	return e.ShortDescription
}

// Bounds is a latitude/longitude box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

var (
	// UKBounds is the box geocoder answers must fall into.
	UKBounds = Bounds{MinLat: 49.0, MaxLat: 61.0, MinLon: -8.0, MaxLon: 2.0}

	// WorldBounds accepts any valid coordinate.
	WorldBounds = Bounds{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}

	// ukValidationBounds is slightly wider than UKBounds to keep Shetland and the Scilly Isles.
	ukValidationBounds = Bounds{MinLat: 49.0, MaxLat: 61.5, MinLon: -8.5, MaxLon: 2.0}
)

// Contains reports whether c lies inside b, edges included.
func (b Bounds) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// ValidateUKCoordinates checks that c is a plausible location on UK land.
// The returned string explains a rejection.
func ValidateUKCoordinates(c *Coordinates) (bool, string) {
	if c == nil {
		return false, "missing coordinates"
	}
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false, "coordinates are not numbers"
	}
	if c.Lat == 0 && c.Lon == 0 {
		return false, "coordinates are (0, 0)"
	}
	if !ukValidationBounds.Contains(*c) {
		return false, fmt.Sprintf("coordinates %s are outside the UK", c)
	}
	// South-west approaches and the Channel east of Greenwich.
	if c.Lat < 50.0 && (c.Lon < -10.0 || c.Lon > 0) {
		return false, fmt.Sprintf("coordinates %s are at sea", c)
	}
	return true, ""
}
