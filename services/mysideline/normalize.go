package mysideline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"oldmanfooty-backend/lib/htmlutil"
	"oldmanfooty-backend/lib/textutil"
	"oldmanfooty-backend/lib/timezone"
)

var australianStates = []string{"NSW", "QLD", "VIC", "WA", "SA", "TAS", "NT", "ACT"}

var stateRegex = regexp.MustCompile(`\b(NSW|QLD|VIC|WA|SA|TAS|NT|ACT)\b`)

// stateFromAddress derives the state code from an address. Exactly one
// distinct code must appear; zero or several (a WA street name in an
// NSW suburb line, say) yields "".
func stateFromAddress(address string) string {
	matches := stateRegex.FindAllString(strings.ToUpper(address), -1)
	distinct := ""
	for _, m := range matches {
		if distinct == "" {
			distinct = m
			continue
		}
		if m != distinct {
			return ""
		}
	}
	return distinct
}

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"2 January 2006",
	"2 Jan 2006",
}

// matches the day-range shorthand "20-22 June 2026"
var dayRangeRegex = regexp.MustCompile(`^(\d{1,2})\s*[-–]\s*\d{1,2}\s+(.+)$`)

// parseDate parses a MySideline date string into a Sydney calendar
// date. Ranges collapse to their earliest day; collapsed reports when
// that happened so the caller can preserve the original wording.
func parseDate(raw string) (date time.Time, ok bool, collapsed bool) {
	raw = textutil.Collapse(raw)
	if raw == "" {
		return time.Time{}, false, false
	}

	if t, ok := parseSingleDate(raw); ok {
		return t, true, false
	}

	// "20-22 June 2026" style: earliest day plus the shared month/year
	if groups := dayRangeRegex.FindStringSubmatch(raw); groups != nil {
		if t, ok := parseSingleDate(groups[1] + " " + groups[2]); ok {
			return t, true, true
		}
	}

	// "20/06/2026 - 22/06/2026" style: first segment is the earliest
	for _, sep := range []string{" - ", " – ", " to "} {
		head, _, found := strings.Cut(raw, sep)
		if !found {
			continue
		}
		if t, ok := parseSingleDate(strings.TrimSpace(head)); ok {
			return t, true, true
		}
	}

	return time.Time{}, false, false
}

func parseSingleDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, timezone.Location)
		if err == nil {
			return timezone.Date(t.Year(), t.Month(), t.Day()), true
		}
	}
	return time.Time{}, false
}

var punctuationRegex = regexp.MustCompile(`[^a-z0-9 ]+`)

// canonicalTitle reduces a title to its comparable core: lowercase,
// punctuation stripped, whitespace collapsed, with the boilerplate
// "masters" / "rugby league" suffixes dropped. Fingerprint input only,
// never stored.
func canonicalTitle(title string) string {
	t := strings.ToLower(title)
	t = punctuationRegex.ReplaceAllString(t, " ")
	t = textutil.Collapse(t)
	for {
		switch {
		case strings.HasSuffix(t, " rugby league"):
			t = strings.TrimSuffix(t, " rugby league")
		case strings.HasSuffix(t, " masters"):
			t = strings.TrimSuffix(t, " masters")
		default:
			return t
		}
	}
}

// fingerprint identifies a carnival when no source id links it: same
// canonical title, state and date means the same event.
func fingerprint(canonical, state, isoDate string) string {
	input := fmt.Sprintf("%s|%s|%s", canonical, state, isoDate)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// normalize coerces an enriched candidate into its canonical form.
// Detail fields supersede listing fields wherever both exist. It never
// rejects; the reconciler decides what to do with absent state/date.
func normalize(e enriched, cfg Config) Candidate {
	title := e.Detail.Title
	if title == "" {
		title = e.Raw.TitleRaw
	}
	title = textutil.Collapse(title)

	address := e.Detail.LocationAddress
	if address == "" {
		address = e.Raw.LocationRaw
	}
	address = textutil.Collapse(address)

	dateRaw := e.Detail.DateRaw
	if dateRaw == "" {
		dateRaw = e.Raw.DateRaw
	}

	c := Candidate{
		SourceId:              e.Raw.SourceId,
		Title:                 title,
		DateRaw:               dateRaw,
		State:                 stateFromAddress(address),
		LocationAddress:       address,
		RegistrationLink:      normalizeUrl(e.Detail.RegistrationLink),
		OrganiserContactName:  textutil.Collapse(e.Detail.ContactName),
		OrganiserContactEmail: strings.ToLower(textutil.Collapse(e.Detail.ContactEmail)),
		OrganiserContactPhone: textutil.Collapse(e.Detail.ContactPhone),
		LogoUrl:               normalizeUrl(e.Detail.LogoUrl),
		Description:           textutil.Truncate(textutil.Collapse(e.Detail.Description), cfg.DescriptionMaxLen),
	}

	if date, ok, collapsed := parseDate(dateRaw); ok {
		c.Date = date
		// collapsing a range to its first day is a guess at intent,
		// keep the source's own words for the reader
		if collapsed && !strings.Contains(c.Description, dateRaw) {
			c.Description = textutil.Truncate(
				textutil.Collapse(c.Description+" Dates: "+dateRaw),
				cfg.DescriptionMaxLen,
			)
		}
	}

	c.CanonicalTitle = canonicalTitle(c.Title)
	if !c.Date.IsZero() && c.State != "" {
		c.Fingerprint = fingerprint(c.CanonicalTitle, c.State, c.Date.Format("2006-01-02"))
	}
	return c
}

func normalizeUrl(raw string) string {
	return htmlutil.ResolveHref(nil, raw)
}
