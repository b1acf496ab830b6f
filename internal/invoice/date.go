package invoice

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// dateLayouts are tried in order. Numeric dates are read day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan 06",
	"2 January 06",
	"Jan 2 2006",
	"January 2 2006",
	"2/1/2006",
	"2006/1/2",
	"2/1/06",
}

var (
	dateSeparators = regexp.MustCompile(`[\s,\-.]+`)
	ordinalSuffix  = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)
)

// NormalizeDate converts a recognized date token to YYYY-MM-DD
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d.String(), true
	}

	s = ordinalSuffix.ReplaceAllString(s, "$1")
	spaced := strings.TrimSpace(dateSeparators.ReplaceAllString(s, " "))
	slashed := dateSeparators.ReplaceAllString(s, "/")

	for _, layout := range dateLayouts {
		candidate := spaced
		if strings.Contains(layout, "/") {
			candidate = slashed
		}
		if t, err := time.Parse(layout, candidate); err == nil {
			return civil.DateOf(t).String(), true
		}
	}
	return "", false
}

// ParseISODate reports whether s is a valid YYYY-MM-DD date
func ParseISODate(s string) (civil.Date, bool) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil || !d.IsValid() {
		return civil.Date{}, false
	}
	return d, true
}
