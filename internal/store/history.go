package store

import (
	"sort"
	"sync"
	"time"

	"github.com/i474232898/noise-dashboard/internal/noise"
)

// HistoryStore holds the time-ordered series of the selected sensor.
// It does not know which sensor that is; the selection controller owns that.
type HistoryStore struct {
	mu sync.RWMutex

	series []noise.Measurement

	// retention configuration
	maxPoints int // max number of points kept (0 = unlimited)

	loc *time.Location   // day boundaries for date range filters
	now func() time.Time // clock for rolling windows
}

// NewHistoryStore creates an empty store. If maxPoints is <= 0, it is treated as unlimited.
func NewHistoryStore(maxPoints int, loc *time.Location) *HistoryStore {
	if loc == nil {
		loc = time.UTC
	}
	return &HistoryStore{
		maxPoints: maxPoints,
		loc:       loc,
		now:       time.Now,
	}
}

// SetClock replaces the clock used by rolling windows.
func (s *HistoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Reset drops the whole series.
func (s *HistoryStore) Reset() {
	s.mu.Lock()
	s.series = nil
	s.mu.Unlock()
}

// ReplaceAll stores ms sorted by ascending timestamp.
func (s *HistoryStore) ReplaceAll(ms []noise.Measurement) {
	series := make([]noise.Measurement, len(ms))
	copy(series, ms)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	s.mu.Lock()
	s.series = series
	s.enforceRetention()
	s.mu.Unlock()
}

// Append adds m at the end. Order against existing points is not checked, so a
// late real-time update can leave the series out of order.
func (s *HistoryStore) Append(m noise.Measurement) {
	s.mu.Lock()
	s.series = append(s.series, m)
	s.enforceRetention()
	s.mu.Unlock()
}

// enforceRetention trims the oldest points; callers hold the write lock.
func (s *HistoryStore) enforceRetention() {
	if s.maxPoints > 0 && len(s.series) > s.maxPoints {
		over := len(s.series) - s.maxPoints
		s.series = append([]noise.Measurement(nil), s.series[over:]...)
	}
}

// Series returns a copy of the stored points.
func (s *HistoryStore) Series() []noise.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]noise.Measurement(nil), s.series...)
}

// Len returns the number of stored points.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// FilteredByDateRange returns points from the start of start's day through the end of
// end's day. If either bound is the zero time the full series is returned.
func (s *HistoryStore) FilteredByDateRange(start, end time.Time) []noise.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if start.IsZero() || end.IsZero() {
		return append([]noise.Measurement(nil), s.series...)
	}

	from := noise.StartOfDay(start, s.loc)
	to := noise.EndOfDay(end, s.loc)

	result := make([]noise.Measurement, 0, len(s.series))
	for _, m := range s.series {
		if !m.Timestamp.Before(from) && !m.Timestamp.After(to) {
			result = append(result, m)
		}
	}
	return result
}

// FilteredByRelativeWindow returns points no older than w; WindowAll returns everything.
func (s *HistoryStore) FilteredByRelativeWindow(w noise.Window) []noise.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := w.Duration()
	if d <= 0 {
		return append([]noise.Measurement(nil), s.series...)
	}

	cutoff := s.now().Add(-d)
	result := make([]noise.Measurement, 0, len(s.series))
	for _, m := range s.series {
		if !m.Timestamp.Before(cutoff) {
			result = append(result, m)
		}
	}
	return result
}

// Filtered applies whichever filter mode f carries.
func (s *HistoryStore) Filtered(f noise.Filter) []noise.Measurement {
	switch f.Kind {
	case noise.FilterDateRange:
		return s.FilteredByDateRange(f.Start, f.End)
	case noise.FilterRollingWindow:
		return s.FilteredByRelativeWindow(f.Window)
	default:
		return s.Series()
	}
}
