package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// OutputDateLayout is the MM/DD/YYYY layout written to feed files.
const OutputDateLayout = "01/02/2006"

var monthNumbers = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	isoDateRegex = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)

	// 30th Oct, 2025 / Saturday 1st November 2025
	dayMonthYearRegex = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]{3,9})\.?,?\s+(\d{4})`)
	// October 30, 2025 / Oct 30th 2025
	monthDayYearRegex = regexp.MustCompile(`(?i)([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)
	slashDateRegex    = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dashDateRegex     = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
)

// ConvertDateFormat converts the date formats found on UK event sites to
// MM/DD/YYYY. Numeric dates are read day first; if that is not a valid
// calendar date, month first is tried. Input that cannot be parsed is
// returned unchanged.
func ConvertDateFormat(s string) string {
	d, err := ParseDate(s)
	if err != nil {
		return s
	}
	return d.Format(OutputDateLayout)
}

// ParseDate is the error returning form of ConvertDateFormat.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if m := isoDateRegex.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(m[1], m[2], m[3]); ok {
			return d, nil
		}
	}

	if m := dayMonthYearRegex.FindStringSubmatch(s); m != nil {
		if month, ok := monthNumbers[strings.ToLower(m[2])]; ok {
			if d, ok := makeDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
				return d, nil
			}
		}
	}

	if m := monthDayYearRegex.FindStringSubmatch(s); m != nil {
		if month, ok := monthNumbers[strings.ToLower(m[1])]; ok {
			if d, ok := makeDate(m[3], strconv.Itoa(int(month)), m[2]); ok {
				return d, nil
			}
		}
	}

	for _, re := range []*regexp.Regexp{slashDateRegex, dashDateRegex} {
		if m := re.FindStringSubmatch(s); m != nil {
			if d, ok := makeDate(m[3], m[2], m[1]); ok {
				return d, nil
			}
			if d, ok := makeDate(m[3], m[1], m[2]); ok {
				return d, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// makeDate rejects dates that time.Date would silently normalise (31/02 etc).
func makeDate(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, false
	}
	dd, err := strconv.Atoi(day)
	if err != nil || dd < 1 || dd > 31 {
		return time.Time{}, false
	}

	t := time.Date(y, time.Month(m), dd, 0, 0, 0, 0, time.UTC)
	if t.Day() != dd || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}
