package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"  Hyde Park 10K  ", "Hyde Park 10K"},
		{"Hyde\n\tPark   10K", "Hyde Park 10K"},
		{"already clean", "already clean"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestConvertDateFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"iso date", "2025-11-29", "11/29/2025"},
		{"iso datetime", "2025-11-29T10:00:00Z", "11/29/2025"},
		{"iso inside text", "Starts 2025-3-7 at 9am", "03/07/2025"},
		{"day month year", "30 October 2025", "10/30/2025"},
		{"ordinal with comma", "30th Oct, 2025", "10/30/2025"},
		{"weekday prefix", "Saturday 1st November 2025", "11/01/2025"},
		{"abbreviated september", "2 Sept 2025", "09/02/2025"},
		{"uk slash", "30/10/2025", "10/30/2025"},
		{"uk slash single digits", "1/2/2025", "02/01/2025"},
		{"uk dash", "30-10-2025", "10/30/2025"},
		{"us slash fallback", "10/30/2025", "10/30/2025"},
		{"month day year", "October 30, 2025", "10/30/2025"},
		{"short month day year", "Oct 30, 2025", "10/30/2025"},
		{"unparseable", "TBC", "TBC"},
		{"unknown month", "30 Foo 2025", "30 Foo 2025"},
		{"impossible date", "31/02/2025", "31/02/2025"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConvertDateFormat(tt.input))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("12 Oct 2025")
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, 10, int(d.Month()))
	assert.Equal(t, 12, d.Day())

	_, err = ParseDate("   ")
	assert.Error(t, err)
}

func TestRemoveLocationText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Location: London, UK", "London, UK"},
		{"London, UK", "London, UK"},
		{"LOCATION - Bristol", "Bristol"},
		{"location   Leeds  City Centre", "Leeds City Centre"},
		{"Venue details Location: Hyde Park", "Venue details Hyde Park"},
		{"Location:", "Location:"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoveLocationText(tt.input))
		})
	}
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://www.bhf.org.uk/events/london-10k",
		AbsoluteURL("https://www.bhf.org.uk/how-you-can-help/events", "/events/london-10k"))
	assert.Equal(t, "https://example.com/a/b",
		AbsoluteURL("https://example.com/a/", "b"))
	assert.Equal(t, "https://other.org/x",
		AbsoluteURL("https://example.com/", "https://other.org/x"))
	assert.Equal(t, "/relative", AbsoluteURL("", "/relative"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "hyde park, london", NormalizeAddress("  Hyde   Park, LONDON "))
}
