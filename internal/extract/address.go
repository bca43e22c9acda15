package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/eventworker/internal/normalize"
)

// addressSelectors are tried in order; the first usable text wins.
var addressSelectors = []string{
	".address",
	".location",
	".venue",
	".event-location",
	".event-venue",
	`[class*="address"]`,
	`[class*="location"]`,
	`[class*="venue"]`,
	".event-info .location",
	".event-details .address",
	"address",
	".contact-info",
	".event-contact",
	`[itemprop="address"]`,
}

// addressAttributes are read after the text selectors.
var addressAttributes = []string{"data-location", "data-venue", "data-address"}

var (
	dateLikeRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d{1,2}(st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December)`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	}

	ukPostcodeRegex = regexp.MustCompile(`(?i)[A-Z]{1,2}\d[A-Z\d]? \d[A-Z]{2}`)
)

const (
	minAddressLength  = 5
	postcodeContext   = 100
	minPostcodeWindow = 10
)

// Address finds a venue address in an event page. It returns "" when
// nothing usable is found.
func Address(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}

	for _, selector := range addressSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if candidate := usableAddress(ownText(s)); candidate != "" {
				found = candidate
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	for _, attr := range addressAttributes {
		var found string
		doc.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, _ := s.Attr(attr)
			if candidate := usableAddress(value); candidate != "" {
				found = candidate
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	return postcodeWindow(PageText(doc))
}

func usableAddress(raw string) string {
	text := normalize.CleanText(raw)
	if utf8.RuneCountInString(text) <= minAddressLength || looksLikeDate(text) {
		return ""
	}
	return text
}

func looksLikeDate(s string) bool {
	for _, re := range dateLikeRegexes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// postcodeWindow returns the text around the first UK postcode in content.
func postcodeWindow(content string) string {
	loc := ukPostcodeRegex.FindStringIndex(content)
	if loc == nil {
		return ""
	}

	runes := []rune(content)
	start := utf8.RuneCountInString(content[:loc[0]])
	end := start + utf8.RuneCountInString(content[loc[0]:loc[1]])

	start = max(0, start-postcodeContext)
	end = min(len(runes), end+postcodeContext)

	window := strings.TrimSpace(string(runes[start:end]))
	if utf8.RuneCountInString(window) <= minPostcodeWindow {
		return ""
	}
	return normalize.CleanText(window)
}

// ownText joins the element's direct text children, ignoring nested markup.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// PageText returns all visible text nodes joined by spaces.
func PageText(doc *goquery.Document) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
