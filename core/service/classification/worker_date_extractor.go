package classification

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// =============================================================================
// Date Extractor
// =============================================================================

type dateFamily int

const (
	familyLabeled dateFamily = iota
	familyDateTime
	familyMonthName
	familyISO
	familyRelative
)

type datePattern struct {
	family dateFamily
	re     *regexp.Regexp
}

// Ordered pattern families. Every match of every family is parsed; the
// same instant may be produced more than once.
var datePatterns = []datePattern{
	{familyLabeled, regexp.MustCompile(`(?i)(?:departure|arrival|check-?in|check-?out|date):\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`)},
	{familyDateTime, regexp.MustCompile(`(?i)(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})\s*(?:at|@)?\s*(\d{1,2}:\d{2}(?:\s*[AaPp][Mm])?)`)},
	{familyMonthName, regexp.MustCompile(`(?i)(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{1,2},?\s+\d{4}`)},
	{familyISO, regexp.MustCompile(`(?i)\d{4}-\d{2}-\d{2}(?:T\d{2}:\d{2}:\d{2})?`)},
	{familyRelative, regexp.MustCompile(`(?i)(?:tomorrow|next (?:week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday))`)},
}

var (
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})$`)
	clockRe       = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*([ap]m)?$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

var monthNameLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// DateExtractor pulls candidate instants out of free text
type DateExtractor struct {
	now func() time.Time
	loc *time.Location
}

// DateExtractorOption configures a DateExtractor
type DateExtractorOption func(*DateExtractor)

// WithClock injects the reference clock used for relative dates and the future test
func WithClock(now func() time.Time) DateExtractorOption {
	return func(e *DateExtractor) { e.now = now }
}

// WithLocation sets the zone assigned to zone-less dates
func WithLocation(loc *time.Location) DateExtractorOption {
	return func(e *DateExtractor) { e.loc = loc }
}

// NewDateExtractor creates an extractor using the system clock and local zone by default
func NewDateExtractor(opts ...DateExtractorOption) *DateExtractor {
	e := &DateExtractor{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the extractor's reference time
func (e *DateExtractor) Now() time.Time {
	return e.now()
}

// ExtractDates returns every parseable date found in text, in pattern-family order.
func (e *DateExtractor) ExtractDates(text string) []time.Time {
	if text == "" {
		return nil
	}
	now := e.now()

	var out []time.Time
	for _, p := range datePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			var (
				t  time.Time
				ok bool
			)
			switch p.family {
			case familyLabeled:
				t, ok = e.parseNumeric(m[1], "")
			case familyDateTime:
				t, ok = e.parseNumeric(m[1], m[2])
			case familyMonthName:
				t, ok = e.parseMonthName(m[0])
			case familyISO:
				t, ok = e.parseISO(m[0])
			case familyRelative:
				t, ok = relativeDate(strings.ToLower(m[0]), now)
			}
			if ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// HasFutureDates reports whether text mentions any instant strictly after now,
// and returns the earliest such instant.
func (e *DateExtractor) HasFutureDates(text string) (bool, time.Time) {
	now := e.now()
	var future []time.Time
	for _, d := range e.ExtractDates(text) {
		if d.After(now) {
			future = append(future, d)
		}
	}
	if len(future) == 0 {
		return false, time.Time{}
	}
	sort.Slice(future, func(i, j int) bool { return future[i].Before(future[j]) })
	return true, future[0]
}

// parseNumeric reads month/day/year with an optional clock. A first field
// above 12 is retried as the day. Two-digit years land in the 2000s.
func (e *DateExtractor) parseNumeric(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	m := numericDateRe.FindStringSubmatch(date)
	if m == nil {
		return time.Time{}, false
	}
	if clock != "" {
		date += " " + normalizeClock(clock)
	}
	t, err := dateparse.ParseIn(date, e.loc, dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return time.Time{}, false
	}
	if len(m[3]) == 2 && t.Year() < 2000 {
		t = t.AddDate(100, 0, 0)
	}
	return t, true
}

func (e *DateExtractor) parseMonthName(s string) (time.Time, bool) {
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	if t, err := dateparse.ParseIn(s, e.loc); err == nil {
		return t, true
	}
	for _, layout := range monthNameLayouts {
		if t, err := time.ParseInLocation(layout, s, e.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e *DateExtractor) parseISO(s string) (time.Time, bool) {
	t, err := dateparse.ParseIn(strings.ToUpper(s), e.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// normalizeClock turns "10:15pm" into "10:15 PM"
func normalizeClock(s string) string {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	if m[3] == "" {
		return m[1] + ":" + m[2]
	}
	return m[1] + ":" + m[2] + " " + strings.ToUpper(m[3])
}

func relativeDate(term string, now time.Time) (time.Time, bool) {
	term = spaceRe.ReplaceAllString(term, " ")
	switch term {
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	case "next week":
		return now.AddDate(0, 0, 7), true
	case "next month":
		return now.AddDate(0, 0, 30), true
	}
	name, ok := strings.CutPrefix(term, "next ")
	if !ok {
		return time.Time{}, false
	}
	target, ok := weekdays[name]
	if !ok {
		return time.Time{}, false
	}
	ahead := int(target) - int(now.Weekday())
	if ahead <= 0 {
		ahead += 7
	}
	return now.AddDate(0, 0, ahead), true
}
