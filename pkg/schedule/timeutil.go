package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dayHeaderPattern = regexp.MustCompile(`(?i)(\d{1,2})(?:st|nd|rd|th|º|°)?(?:\s+de)?\s+([\p{L}]+)(?:\s+de)?,?\s+(\d{4})`)
	clockPattern     = regexp.MustCompile(`(\d{1,2})[:.h](\d{2})`)
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January, "gennaio": time.January, "enero": time.January, "gen": time.January, "ene": time.January,
	"feb": time.February, "february": time.February, "febbraio": time.February, "febrero": time.February,
	"mar": time.March, "march": time.March, "marzo": time.March,
	"apr": time.April, "april": time.April, "aprile": time.April, "abril": time.April, "abr": time.April,
	"may": time.May, "maggio": time.May, "mayo": time.May, "mag": time.May,
	"jun": time.June, "june": time.June, "giugno": time.June, "junio": time.June, "giu": time.June,
	"jul": time.July, "july": time.July, "luglio": time.July, "julio": time.July, "lug": time.July,
	"aug": time.August, "august": time.August, "agosto": time.August, "ago": time.August,
	"sep": time.September, "sept": time.September, "september": time.September, "settembre": time.September, "septiembre": time.September, "set": time.September,
	"oct": time.October, "october": time.October, "ottobre": time.October, "octubre": time.October, "ott": time.October,
	"nov": time.November, "november": time.November, "novembre": time.November, "noviembre": time.November,
	"dec": time.December, "december": time.December, "dicembre": time.December, "diciembre": time.December, "dic": time.December,
}

// LoadLocation loads name, treating "" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// ParseDayHeader parses schedule day headers such as
// "Saturday 18th Oct 2025 - Schedule Time UK GMT" or "sábado 18 de octubre de 2025"
// into midnight of that day in loc.
func ParseDayHeader(header string, loc *time.Location) (time.Time, error) {
	m := dayHeaderPattern.FindStringSubmatch(header)
	if m == nil {
		return time.Time{}, fmt.Errorf("no date in header %q", header)
	}

	day, _ := strconv.Atoi(m[1])
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q in header %q", m[2], header)
	}
	year, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid day %d in header %q", day, header)
	}

	return time.Date(year, month, day, 0, 0, 0, 0, loc), nil
}

// ParseClock interprets value as a wall clock in loc. With an empty layout the
// first HH:MM (or HH.MM, HHhMM) in value is used on day; a layout that carries
// a date is taken as is.
func ParseClock(value, layout string, loc *time.Location, day time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}

	if layout == "" {
		m := clockPattern.FindStringSubmatch(value)
		if m == nil {
			return time.Time{}, fmt.Errorf("no time in %q", value)
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid time %q", value)
		}
		y, mo, d := day.In(loc).Date()
		return time.Date(y, mo, d, hour, minute, 0, 0, loc), nil
	}

	parsed, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q with %q: %w", value, layout, err)
	}
	if parsed.Year() != 0 {
		return parsed, nil
	}

	y, mo, d := day.In(loc).Date()
	return time.Date(y, mo, d, parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc), nil
}

// InWindow reports whether start lies within [now-before, now+after].
func InWindow(start, now time.Time, before, after time.Duration) bool {
	if start.IsZero() {
		return true
	}
	return !start.Before(now.Add(-before)) && !start.After(now.Add(after))
}
