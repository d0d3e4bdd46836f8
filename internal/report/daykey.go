package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zones must resolve in scratch containers
)

const (
	// DateLayout is the day-key format.
	DateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

var offsetRx = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// LoadZone accepts an IANA zone name ("Europe/Moscow") or a fixed offset
// ("+03:00", "-0530", "UTC+3").
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput.New("empty timezone")
	}
	if m := offsetRx.FindStringSubmatch(name); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins := 0
		if m[3] != "" {
			mins, _ = strconv.Atoi(m[3])
		}
		if h > 14 || mins > 59 || (h == 14 && mins > 0) {
			return nil, ErrInvalidInput.New("invalid offset %q", name)
		}
		secs := h*3600 + mins*60
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(name, secs), nil
	}
	// "Local" would resolve to the host zone.
	if strings.EqualFold(name, "local") {
		return nil, ErrInvalidInput.New("unknown timezone %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidInput.New("unknown timezone %q", name)
	}
	return loc, nil
}

// DayKey returns the local calendar day t falls on in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD day key into a civil date (UTC midnight).
// The zone is applied later by DayBounds.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidInput.New("invalid date format %q", s)
	}
	return d, nil
}

// DayBounds returns the UTC instants of local 00:00:00.000 and 23:59:59.999
// of civil day d in loc.
func DayBounds(d time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
	return start.UTC(), end.UTC()
}

// RangeBounds is DayBounds stretched over [from, to].
func RangeBounds(from, to time.Time, loc *time.Location) (time.Time, time.Time) {
	start, _ := DayBounds(from, loc)
	_, end := DayBounds(to, loc)
	return start, end
}

// MonthBounds parses a YYYY-MM month and returns its first and last civil day.
func MonthBounds(month string) (time.Time, time.Time, error) {
	m, err := time.Parse(monthLayout, strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidInput.New("invalid period format %q", month)
	}
	first := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(m.Year(), m.Month()+1, 0, 0, 0, 0, 0, time.UTC)
	return first, last, nil
}

// DaysBetween counts calendar days from a to b, ignoring DST shifts.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// PeriodDays is the inclusive number of days in [from, to].
func PeriodDays(from, to time.Time) int {
	return DaysBetween(from, to) + 1
}

// CivilDay returns the civil date instant t falls on in loc.
func CivilDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}
