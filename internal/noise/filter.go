package noise

import (
	"fmt"
	"time"
)

// DateLayout is the wire layout of start_date and end_date.
const DateLayout = "2006-01-02"

// Window is a rolling time window relative to now.
type Window string

const (
	WindowHour Window = "1h"
	WindowDay  Window = "24h"
	WindowWeek Window = "7d"
	WindowAll  Window = "all"
)

// ParseWindow accepts one of 1h, 24h, 7d or all.
func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case WindowHour, WindowDay, WindowWeek, WindowAll:
		return w, nil
	default:
		return "", fmt.Errorf("unknown window %q; use 1h, 24h, 7d or all", s)
	}
}

// Duration returns the window length; WindowAll is 0.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// FilterKind selects which filtering mode is active.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterDateRange
	FilterRollingWindow
)

func (k FilterKind) String() string {
	switch k {
	case FilterDateRange:
		return "date_range"
	case FilterRollingWindow:
		return "window"
	default:
		return "none"
	}
}

// Filter is the single active history filter. Start and End are only meaningful
// for FilterDateRange, Window only for FilterRollingWindow.
type Filter struct {
	Kind   FilterKind
	Start  time.Time
	End    time.Time
	Window Window
}

// NoFilter returns the unfiltered mode.
func NoFilter() Filter {
	return Filter{Kind: FilterNone}
}

// DateRange filters by calendar days, both ends inclusive.
func DateRange(start, end time.Time) Filter {
	return Filter{Kind: FilterDateRange, Start: start, End: end}
}

// RollingWindow filters to the last w.
func RollingWindow(w Window) Filter {
	return Filter{Kind: FilterRollingWindow, Window: w}
}

// HasBounds reports whether both date bounds are set.
func (f Filter) HasBounds() bool {
	return f.Kind == FilterDateRange && !f.Start.IsZero() && !f.End.IsZero()
}

// ParseDate reads a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last millisecond of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// HistoryQuery describes one history fetch for a sensor. Zero dates are omitted.
type HistoryQuery struct {
	SensorID  int
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
