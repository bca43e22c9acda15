package store

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/elliotchance/phpserialize"

	"sjsage522/eventworker/internal/event"
)

const mapZoom = 16

// LocationMeta builds the PHP-serialized array the map plugin reads from
// the _oum_location_key post meta.
func LocationMeta(e event.Event) (string, error) {
	var lat, lon float64
	if e.Coordinates != nil {
		lat, lon = e.Coordinates.Lat, e.Coordinates.Lon
	}

	meta := map[string]any{
		"address":      e.Title,
		"lat":          lat,
		"lng":          lon,
		"zoom":         mapZoom,
		"text":         popupText(e),
		"author_name":  "",
		"author_email": "",
		"video":        "",
	}
	out, err := phpserialize.Marshal(meta, nil)
	if err != nil {
		return "", fmt.Errorf("serialize location: %w", err)
	}
	return string(out), nil
}

// popupText is the marker popup: title and raw date, description, link.
func popupText(e event.Event) string {
	var parts []string
	switch {
	case e.Title != "" && e.RawDate != "":
		parts = append(parts, e.Title+" "+e.RawDate)
	case e.Title != "":
		parts = append(parts, e.Title)
	}
	if e.ShortDescription != "" {
		parts = append(parts, e.ShortDescription)
	}
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf(`<a href="%s">Find out more</a>`, e.URL))
	}

	text := strings.Join(parts, "<br><br>")
	text = strings.ReplaceAll(text, "\r", "")
	return strings.ReplaceAll(text, "\n", "<br>")
}

const maxSlugLength = 200

// Slug derives post_name from a title.
func Slug(title string) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, ":", "")
	slug = strings.ReplaceAll(slug, "&", "and")

	if len(slug) > maxSlugLength {
		// cut on a rune boundary
		cut := maxSlugLength
		for cut > 0 && !utf8.RuneStart(slug[cut]) {
			cut--
		}
		slug = slug[:cut]
	}
	return slug
}
