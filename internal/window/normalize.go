package window

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"backend-tripline/internal/shared/dates"
)

const (
	PrecisionExact  = "exact"
	PrecisionApprox = "approx"

	// DefaultMaxWindowDays caps how long a single availability window may
	// span. Bare-month suggestions are exempt.
	DefaultMaxWindowDays = 14
)

// Context carries everything Normalize needs beyond the text itself. Now is
// injected so year inference is deterministic in tests.
type Context struct {
	Year      int       // explicit target year, 0 when the user gave none
	TripStart time.Time // trip-bound date used for year inference, may be zero
	Now       time.Time // zero falls back to time.Now
	MaxDays   int       // zero falls back to DefaultMaxWindowDays
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

func (c Context) maxDays() int {
	if c.MaxDays <= 0 {
		return DefaultMaxWindowDays
	}
	return c.MaxDays
}

// Range is a normalized availability window. Start and End are calendar
// dates (UTC midnight, no time component). A zero-length range has
// Start == End.
type Range struct {
	Start     time.Time `json:"start_date"`
	End       time.Time `json:"end_date"`
	Precision string    `json:"precision"`
	BareMonth bool      `json:"bare_month"`
}

var (
	ErrEmpty      = errors.New("availability text is empty")
	ErrMultiRange = errors.New("one date range per suggestion; submit alternatives separately")
	ErrNoMatch    = errors.New("could not understand the date range")
	ErrBadDate    = errors.New("not a valid calendar date")
	ErrBackwards  = errors.New("end date falls before start date")
)

// Normalize parses free-form availability text into a Range. Patterns are
// tried in order of specificity; the first match wins. Malformed or
// ambiguous text comes back as an error value, never a panic.
func Normalize(text string, ctx Context) (Range, error) {
	raw := strings.ToLower(strings.TrimSpace(text))
	if raw == "" {
		return Range{}, ErrEmpty
	}
	if isMultiRange(raw) {
		return Range{}, ErrMultiRange
	}

	for _, match := range matchers {
		r, ok, err := match(raw, ctx)
		if err != nil {
			return Range{}, err
		}
		if !ok {
			continue
		}
		if r.End.Before(r.Start) {
			return Range{}, ErrBackwards
		}
		if !r.BareMonth && dates.Between(r.Start, r.End) > ctx.maxDays() {
			return Range{}, fmt.Errorf("window is longer than %d days", ctx.maxDays())
		}
		return r, nil
	}
	return Range{}, ErrNoMatch
}

type matcherFn func(text string, ctx Context) (Range, bool, error)

// Order is a contract: more specific shapes first, bare month last.
var matchers = []matcherFn{
	matchISORange,
	matchSameMonthRange,
	matchCrossMonthRange,
	matchSingleDate,
	matchRelativeMonth,
	matchWeekendOfMonth,
	matchLastWeekOfMonth,
	matchBareMonth,
}

var (
	yearOnlyRe   = regexp.MustCompile(`^\d{4}$`)
	isoRangeRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s*(?:to|through|-|–)\s*(\d{4})-(\d{1,2})-(\d{1,2})$`)
	sameMonthRe  = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})\s*(?:-|–|to|through)\s*(\d{1,2})(?:,?\s+(\d{4}))?$`)
	crossMonthRe = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})\s*(?:-|–|to|through)\s*([a-z]+)\.?\s+(\d{1,2})(?:,?\s+(\d{4}))?$`)
	singleDateRe = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
	relMonthRe   = regexp.MustCompile(`^(early|mid|late)[\s-]+([a-z]+)(?:,?\s+(\d{4}))?$`)
	weekendRe    = regexp.MustCompile(`^(first|1st|second|2nd|last)\s+weekend\s+(?:of\s+)?([a-z]+)(?:,?\s+(\d{4}))?$`)
	lastWeekRe   = regexp.MustCompile(`^last\s+week\s+(?:of\s+)?([a-z]+)(?:,?\s+(\d{4}))?$`)
	bareMonthRe  = regexp.MustCompile(`^([a-z]+)(?:,?\s+(\d{4}))?$`)
)

var multiRangeWords = []string{" or ", "either ", "anytime", "flexible", "whenever"}

// isMultiRange flags text that names more than one candidate range. One
// trailing ", YYYY" is a year suffix, not a list.
func isMultiRange(text string) bool {
	for _, w := range multiRangeWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	if i := strings.Index(text, ","); i >= 0 {
		rest := strings.TrimSpace(text[i+1:])
		if !yearOnlyRe.MatchString(rest) {
			return true
		}
	}
	return false
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

func monthByName(s string) (time.Month, bool) {
	m, ok := monthNames[s]
	return m, ok
}

// inferYear picks a year for a month the user named without one: an explicit
// context year wins, then the trip's own start bound, then the current year
// bumped forward when the month has already passed.
func inferYear(m time.Month, ctx Context) int {
	if ctx.Year != 0 {
		return ctx.Year
	}
	if !ctx.TripStart.IsZero() {
		return ctx.TripStart.Year()
	}
	now := ctx.now()
	year := now.Year()
	if m < now.Month() {
		year++
	}
	return year
}

func explicitOrInferredYear(group string, m time.Month, ctx Context) int {
	if group != "" {
		y, _ := strconv.Atoi(group)
		return y
	}
	return inferYear(m, ctx)
}

func calendarDay(year int, m time.Month, day int) (time.Time, error) {
	if day < 1 || day > dates.InMonth(year, m) {
		return time.Time{}, ErrBadDate
	}
	return dates.Day(year, m, day), nil
}

func matchISORange(text string, _ Context) (Range, bool, error) {
	g := isoRangeRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	nums := make([]int, 6)
	for i := range nums {
		nums[i], _ = strconv.Atoi(g[i+1])
	}
	if nums[1] < 1 || nums[1] > 12 || nums[4] < 1 || nums[4] > 12 {
		return Range{}, false, ErrBadDate
	}
	start, err := calendarDay(nums[0], time.Month(nums[1]), nums[2])
	if err != nil {
		return Range{}, false, err
	}
	end, err := calendarDay(nums[3], time.Month(nums[4]), nums[5])
	if err != nil {
		return Range{}, false, err
	}
	return Range{Start: start, End: end, Precision: PrecisionExact}, true, nil
}

func matchSameMonthRange(text string, ctx Context) (Range, bool, error) {
	g := sameMonthRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m, ok := monthByName(g[1])
	if !ok {
		return Range{}, false, nil
	}
	year := explicitOrInferredYear(g[4], m, ctx)
	startDay, _ := strconv.Atoi(g[2])
	endDay, _ := strconv.Atoi(g[3])
	start, err := calendarDay(year, m, startDay)
	if err != nil {
		return Range{}, false, err
	}
	end, err := calendarDay(year, m, endDay)
	if err != nil {
		return Range{}, false, err
	}
	return Range{Start: start, End: end, Precision: PrecisionExact}, true, nil
}

func matchCrossMonthRange(text string, ctx Context) (Range, bool, error) {
	g := crossMonthRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m1, ok1 := monthByName(g[1])
	m2, ok2 := monthByName(g[3])
	if !ok1 || !ok2 {
		return Range{}, false, nil
	}
	startYear := explicitOrInferredYear(g[5], m1, ctx)
	endYear := startYear
	if m2 < m1 {
		// Dec 30 to Jan 2 rolls into the next year.
		endYear++
	}
	startDay, _ := strconv.Atoi(g[2])
	endDay, _ := strconv.Atoi(g[4])
	start, err := calendarDay(startYear, m1, startDay)
	if err != nil {
		return Range{}, false, err
	}
	end, err := calendarDay(endYear, m2, endDay)
	if err != nil {
		return Range{}, false, err
	}
	return Range{Start: start, End: end, Precision: PrecisionExact}, true, nil
}

func matchSingleDate(text string, ctx Context) (Range, bool, error) {
	g := singleDateRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m, ok := monthByName(g[1])
	if !ok {
		return Range{}, false, nil
	}
	year := explicitOrInferredYear(g[3], m, ctx)
	day, _ := strconv.Atoi(g[2])
	d, err := calendarDay(year, m, day)
	if err != nil {
		return Range{}, false, err
	}
	return Range{Start: d, End: d, Precision: PrecisionExact}, true, nil
}

func matchRelativeMonth(text string, ctx Context) (Range, bool, error) {
	g := relMonthRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m, ok := monthByName(g[2])
	if !ok {
		return Range{}, false, nil
	}
	year := explicitOrInferredYear(g[3], m, ctx)
	var startDay, endDay int
	switch g[1] {
	case "early":
		startDay, endDay = 1, 7
	case "mid":
		startDay, endDay = 10, 20
	case "late":
		startDay, endDay = 21, dates.InMonth(year, m)
	}
	return Range{
		Start:     dates.Day(year, m, startDay),
		End:       dates.Day(year, m, endDay),
		Precision: PrecisionApprox,
	}, true, nil
}

func matchWeekendOfMonth(text string, ctx Context) (Range, bool, error) {
	g := weekendRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m, ok := monthByName(g[2])
	if !ok {
		return Range{}, false, nil
	}
	year := explicitOrInferredYear(g[3], m, ctx)

	switch g[1] {
	case "first", "1st":
		sat := firstSaturday(year, m)
		return Range{Start: sat, End: sat.AddDate(0, 0, 1), Precision: PrecisionApprox}, true, nil
	case "second", "2nd":
		sat := firstSaturday(year, m).AddDate(0, 0, 7)
		sun := sat.AddDate(0, 0, 1)
		// Second-weekend overflow is a hard rejection; only the last
		// weekend is allowed to spill into the next month.
		if sat.Month() != m || sun.Month() != m {
			return Range{}, false, fmt.Errorf("%s has no second weekend that year", g[2])
		}
		return Range{Start: sat, End: sun, Precision: PrecisionApprox}, true, nil
	case "last":
		sat := lastSaturday(year, m)
		// Sunday may roll into the next month, or the next year for December.
		return Range{Start: sat, End: sat.AddDate(0, 0, 1), Precision: PrecisionApprox}, true, nil
	}
	return Range{}, false, nil
}

func matchLastWeekOfMonth(text string, ctx Context) (Range, bool, error) {
	g := lastWeekRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m, ok := monthByName(g[1])
	if !ok {
		return Range{}, false, nil
	}
	year := explicitOrInferredYear(g[2], m, ctx)
	last := dates.InMonth(year, m)
	return Range{
		Start:     dates.Day(year, m, last-6),
		End:       dates.Day(year, m, last),
		Precision: PrecisionApprox,
	}, true, nil
}

func matchBareMonth(text string, ctx Context) (Range, bool, error) {
	g := bareMonthRe.FindStringSubmatch(text)
	if g == nil {
		return Range{}, false, nil
	}
	m, ok := monthByName(g[1])
	if !ok {
		return Range{}, false, nil
	}
	year := explicitOrInferredYear(g[2], m, ctx)
	return Range{
		Start:     dates.Day(year, m, 1),
		End:       dates.Day(year, m, dates.InMonth(year, m)),
		Precision: PrecisionApprox,
		BareMonth: true,
	}, true, nil
}

func firstSaturday(year int, m time.Month) time.Time {
	d := dates.Day(year, m, 1)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func lastSaturday(year int, m time.Month) time.Time {
	d := dates.Day(year, m, dates.InMonth(year, m))
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
