package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// Applied in order; the last one also catches labels in the middle of the text.
	locationLabelRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^location\s*:?\s*-?\s*`),
		regexp.MustCompile(`(?i)^location\s+`),
		regexp.MustCompile(`(?i)\blocation\s*:?\s*-?\s*`),
	}
)

// CleanText trims s and collapses every whitespace run to a single space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RemoveLocationText strips "Location" labels ("Location:", "Location -", ...)
// from an address. If nothing would be left, the input is returned unchanged.
func RemoveLocationText(address string) string {
	if address == "" {
		return address
	}

	cleaned := address
	for _, re := range locationLabelRegexes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(whitespaceRegex.ReplaceAllString(cleaned, " "))

	if cleaned == "" {
		return address
	}
	return cleaned
}

// AbsoluteURL resolves ref against base. On any parse error ref is returned as is.
func AbsoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// NormalizeAddress is the key used for geocode cache lookups.
func NormalizeAddress(address string) string {
	return strings.ToLower(CleanText(address))
}
