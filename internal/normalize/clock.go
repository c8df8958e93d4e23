package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxStay bounds how far after admission a discharge timestamp may fall.
// Month-day values earlier than the admission date roll into the next year;
// a roll that produces a longer stay is treated as a transcription error.
var MaxStay = 31 * 24 * time.Hour

// now is replaced in tests.
var now = time.Now

var (
	bracketTimeRegex  = regexp.MustCompile(`〖(\d{4})〗`)
	fourDigitsRegex   = regexp.MustCompile(`^\d{4}$`)
	monthDayTimeRegex = regexp.MustCompile(`^(\d{2})-(\d{2})\s+(\d{4})`)
	trailingTimeRegex = regexp.MustCompile(`^(\d{4})$`)
	excelSerialRegex  = regexp.MustCompile(`^\d{5}(\.\d+)?$`)
)

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"20060102",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01-02-06",
	"1/2/06",
	"1/2/2006",
}

// Clock canonicalizes a time of day to zero-padded "HHMM".
// Accepts "0730", "7:30" and "07:30"; anything else, including an hour of
// 24 or more or a minute of 60 or more, is nil.
func Clock(v any) *string {
	if IsBlank(v) {
		return nil
	}
	s := strings.TrimSpace(Stringify(v))

	if fourDigitsRegex.MatchString(s) {
		return clockOf(s[:2], s[2:])
	}
	if parts := strings.Split(s, ":"); len(parts) == 2 {
		return clockOf(parts[0], parts[1])
	}
	return nil
}

func clockOf(hh, mm string) *string {
	hour, err := strconv.Atoi(strings.TrimSpace(hh))
	if err != nil {
		return nil
	}
	minute, err := strconv.Atoi(strings.TrimSpace(mm))
	if err != nil {
		return nil
	}
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 {
		return nil
	}
	out := pad2(hour) + pad2(minute)
	return &out
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// BracketTime reads the timeline form's marker syntax: "〖0830〗" yields
// "0830", a bare "0830" passes through, and the literal markers "是" and "有"
// (performed, time unknown) are kept as-is.
func BracketTime(v any) *string {
	if IsBlank(v) {
		return nil
	}
	s := strings.TrimSpace(Stringify(v))

	if m := bracketTimeRegex.FindStringSubmatch(s); m != nil {
		return &m[1]
	}
	if fourDigitsRegex.MatchString(s) {
		return &s
	}
	if s == "是" || s == "有" {
		return &s
	}
	return nil
}

// Date returns the calendar date of a cell, or nil when it cannot be read.
// Typed time values pass through; strings are tried against common layouts
// and Excel serial day numbers.
func Date(v any) *time.Time {
	if IsBlank(v) {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		d := truncateDay(t)
		return &d
	}

	s := strings.TrimSpace(Stringify(v))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := truncateDay(t)
			return &d
		}
	}

	if excelSerialRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			d := excelEpoch.AddDate(0, 0, int(f))
			return &d
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Season buckets.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// Season maps a date to its seasonal bucket: March–May spring, June–September
// summer, October–December autumn, January–February winter.
func Season(d *time.Time) *int {
	if d == nil {
		return nil
	}
	var s int
	switch d.Month() {
	case time.March, time.April, time.May:
		s = SeasonSpring
	case time.June, time.July, time.August, time.September:
		s = SeasonSummer
	case time.October, time.November, time.December:
		s = SeasonAutumn
	case time.January, time.February:
		s = SeasonWinter
	default:
		return nil
	}
	return &s
}

// RelativeTime resolves a discharge timestamp that is written relative to
// the admission.
//
//   - "MM-DD HHMM": the year comes from the admission date (or the current
//     year when there is none) and moves forward a year when the result
//     would precede admission.
//   - "HHMM": same day as admission, or the next day when the clock reads
//     earlier than the admission time.
//
// A resolved date more than MaxStay after admission is dropped; the time of
// day is still returned.
func RelativeTime(v any, admission *time.Time, admissionClock *string) (*time.Time, *string) {
	if IsBlank(v) {
		return nil, nil
	}
	s := strings.TrimSpace(Stringify(v))

	if m := monthDayTimeRegex.FindStringSubmatch(s); m != nil {
		clock := Clock(m[3])
		year := now().Year()
		if admission != nil {
			year = admission.Year()
		}
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		leave, ok := calendarDate(year, month, day)
		if !ok {
			return nil, clock
		}
		if admission != nil && leave.Before(*admission) {
			leave, ok = calendarDate(year+1, month, day)
			if !ok {
				return nil, clock
			}
		}
		return boundStay(leave, admission), clock
	}

	if m := trailingTimeRegex.FindStringSubmatch(s); m != nil {
		clock := Clock(m[1])
		if admission == nil {
			return nil, clock
		}
		leave := *admission
		if clock != nil && admissionClock != nil && *clock < *admissionClock {
			leave = leave.AddDate(0, 0, 1)
		}
		return boundStay(leave, admission), clock
	}

	return nil, nil
}

// calendarDate rejects impossible dates such as 02-30 instead of normalizing.
func calendarDate(year, month, day int) (time.Time, bool) {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func boundStay(leave time.Time, admission *time.Time) *time.Time {
	if admission != nil && leave.Sub(*admission) > MaxStay {
		return nil
	}
	return &leave
}
