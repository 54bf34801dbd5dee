// Package timeparse extracts deadlines and scheduling constraints from free
// text, such as "finish by end of week" or "work hours are 9 to 5".
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/chronoplan/chronoplan/core/model"
)

const deadlinePrefix = `(?:by|before|until|prior to|no later than)?\s*(?:the)?\s*`

var (
	reEndOfYear   = regexp.MustCompile(deadlinePrefix + `end\s*(?:of)?\s*(?:the)?\s*year`)
	reEndOfMonth  = regexp.MustCompile(deadlinePrefix + `end\s*(?:of)?\s*(?:the)?\s*month`)
	reEndOfWeek   = regexp.MustCompile(deadlinePrefix + `end\s*(?:of)?\s*(?:the)?\s*week`)
	reEndOfDay    = regexp.MustCompile(deadlinePrefix + `end\s*(?:of)?\s*(?:the)?\s*day`)
	reNextWeek    = regexp.MustCompile(deadlinePrefix + `next\s*week`)
	reNextMonth   = regexp.MustCompile(deadlinePrefix + `next\s*month`)
	reDate        = regexp.MustCompile(deadlinePrefix + `(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)(?:\s+(\d{4}))?`)
	reDaysAhead   = regexp.MustCompile(`(?:in|within)\s*(\d+)\s*days`)
	reWeeksAhead  = regexp.MustCompile(`(?:in|within)\s*(\d+)\s*weeks`)
	reMonthsAhead = regexp.MustCompile(`(?:in|within)\s*(\d+)\s*months`)

	reWorkHours = regexp.MustCompile(`work\s+hours?(?:\s+are|\s+is)?(?:\s+from)?\s+(\d{1,2})(?::\d{2})?\s*(?:am|pm)?\s*(?:to|-)\s*(\d{1,2})(?::\d{2})?\s*(?:am|pm)?`)
	reWeekendOn  = regexp.MustCompile(`(?:include|work\s+on)\s+weekends`)
	reWeekendOff = regexp.MustCompile(`(?:exclude|no\s+work\s+on)\s+weekends`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Parser extracts time constraints from natural language text. The zero
// value is not usable; construct with New.
type Parser struct {
	now func() time.Time
}

// New returns a Parser using the wall clock.
func New() *Parser {
	return &Parser{now: time.Now}
}

// NewAt returns a Parser with a fixed clock, used in tests.
func NewAt(now func() time.Time) *Parser {
	return &Parser{now: now}
}

// ExtractDeadline parses a deadline from free text. The boolean reports
// whether a deadline phrase was recognized. Recognized phrases resolve to
// 23:59:59 of the matched day.
func (p *Parser) ExtractDeadline(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	text = strings.ToLower(text)
	now := p.now()

	if m := reDate.FindStringSubmatch(text); m != nil {
		if dl, ok := p.parseExplicitDate(m, now); ok {
			return dl, true
		}
	}
	if reEndOfYear.MatchString(text) {
		return time.Date(now.Year(), time.December, 31, 23, 59, 59, 0, now.Location()), true
	}
	if reEndOfMonth.MatchString(text) {
		// First instant of next month minus one second.
		next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
		return next.Add(-time.Second), true
	}
	if reEndOfWeek.MatchString(text) {
		return endOfDay(now.AddDate(0, 0, daysUntilSunday(now))), true
	}
	if reEndOfDay.MatchString(text) {
		return endOfDay(now), true
	}
	if reNextWeek.MatchString(text) {
		return endOfDay(now.AddDate(0, 0, daysUntilSunday(now)+7)), true
	}
	if reNextMonth.MatchString(text) {
		// Last instant of the month after next.
		next := time.Date(now.Year(), now.Month()+2, 1, 0, 0, 0, 0, now.Location())
		return next.Add(-time.Second), true
	}
	if m := reDaysAhead.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return endOfDay(now.AddDate(0, 0, n)), true
	}
	if m := reWeeksAhead.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return endOfDay(now.AddDate(0, 0, n*7)), true
	}
	if m := reMonthsAhead.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return endOfDay(addMonthsClamped(now, n)), true
	}

	// Free-form fallback, biased toward future dates: a date without an
	// explicit year that already passed this year is moved a year ahead.
	if parsed, err := dateparse.ParseIn(text, now.Location()); err == nil {
		if parsed.Before(now) && parsed.Year() == now.Year() && !containsYear(text, now.Year()) {
			parsed = parsed.AddDate(1, 0, 0)
		}
		return parsed, true
	}
	return time.Time{}, false
}

func (p *Parser) parseExplicitDate(m []string, now time.Time) (time.Time, bool) {
	day, err := strconv.Atoi(m[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := months[m[2][:3]]
	if !ok {
		return time.Time{}, false
	}
	year := now.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	if day > lastDayOfMonth(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 23, 59, 59, 0, now.Location()), true
}

// ExtractTaskDeadlines scans each task's description, then its title, and
// returns the deadlines found keyed by task ID. Tasks without a detected
// deadline are omitted.
func (p *Parser) ExtractTaskDeadlines(tasks []model.Task) map[string]time.Time {
	deadlines := make(map[string]time.Time)
	for _, t := range tasks {
		id := model.NormalizeID(t.ID)
		if dl, ok := p.ExtractDeadline(t.Description); ok {
			deadlines[id] = dl
			continue
		}
		if dl, ok := p.ExtractDeadline(t.Title); ok {
			deadlines[id] = dl
		}
	}
	return deadlines
}

// ExtractGlobalConstraints normalizes a list of free-text constraints into a
// ConstraintSet. The last constraint carrying a deadline wins the project
// deadline; weekend exclusion phrasing wins over inclusion because it is
// checked last.
func (p *Parser) ExtractGlobalConstraints(constraints []string) model.ConstraintSet {
	set := model.DefaultConstraints()
	for _, c := range constraints {
		if c == "" {
			continue
		}
		if dl, ok := p.ExtractDeadline(c); ok {
			d := dl
			set.ProjectDeadline = &d
		}
		lower := strings.ToLower(c)
		if m := reWorkHours.FindStringSubmatch(lower); m != nil {
			start, _ := strconv.Atoi(m[1])
			end, _ := strconv.Atoi(m[2])
			if strings.Contains(lower, "pm") {
				if start < 12 {
					start += 12
				}
				if end < 12 {
					end += 12
				}
			}
			set.WorkHours = model.WorkHours{Start: start, End: end}
		}
		if reWeekendOn.MatchString(lower) {
			set.WeekendsOff = false
		}
		if reWeekendOff.MatchString(lower) {
			set.WeekendsOff = true
		}
	}
	return set
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// daysUntilSunday counts days to the upcoming Sunday with a Sunday-ending
// week: called on a Sunday it returns 0.
func daysUntilSunday(t time.Time) int {
	// Monday=0 .. Sunday=6.
	wd := (int(t.Weekday()) + 6) % 7
	return (6 - wd) % 7
}

// addMonthsClamped advances t by n months, clamping the day to the last day
// of the target month so that Jan 31 + 1 month is Feb 28 (or 29).
func addMonthsClamped(t time.Time, n int) time.Time {
	year, month := t.Year(), int(t.Month())+n
	for month > 12 {
		month -= 12
		year++
	}
	day := t.Day()
	if last := lastDayOfMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func containsYear(text string, year int) bool {
	return strings.Contains(text, strconv.Itoa(year)) || strings.Contains(text, strconv.Itoa(year+1))
}
