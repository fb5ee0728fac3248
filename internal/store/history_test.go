package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/noise-dashboard/internal/noise"
)

func reading(reportID int64, ts time.Time) noise.Measurement {
	return noise.Measurement{ReportID: reportID, SensorID: 3, Timestamp: ts, AvgDB: 70, MinDB: 65, MaxDB: 75}
}

func reportIDs(ms []noise.Measurement) []int64 {
	ids := make([]int64, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.ReportID)
	}
	return ids
}

func TestHistoryReplaceAllSorts(t *testing.T) {
	h := NewHistoryStore(0, time.UTC)
	h.ReplaceAll([]noise.Measurement{
		reading(3, base.Add(2*time.Hour)),
		reading(1, base),
		reading(2, base.Add(time.Hour)),
	})

	assert.Equal(t, []int64{1, 2, 3}, reportIDs(h.Series()))
}

func TestHistoryAppendKeepsArrivalOrder(t *testing.T) {
	h := NewHistoryStore(0, time.UTC)
	h.ReplaceAll([]noise.Measurement{reading(1, base), reading(2, base.Add(time.Hour))})
	h.Append(reading(3, base.Add(30*time.Minute)))

	assert.Equal(t, []int64{1, 2, 3}, reportIDs(h.Series()))
}

func TestHistoryReset(t *testing.T) {
	h := NewHistoryStore(0, time.UTC)
	h.ReplaceAll([]noise.Measurement{reading(1, base)})
	h.Reset()

	assert.Zero(t, h.Len())
	assert.Empty(t, h.Series())
}

func TestHistoryRetention(t *testing.T) {
	h := NewHistoryStore(2, time.UTC)
	h.ReplaceAll([]noise.Measurement{reading(1, base), reading(2, base.Add(time.Hour)), reading(3, base.Add(2*time.Hour))})
	assert.Equal(t, []int64{2, 3}, reportIDs(h.Series()))

	h.Append(reading(4, base.Add(3*time.Hour)))
	assert.Equal(t, []int64{3, 4}, reportIDs(h.Series()))
}

func TestHistoryFilteredByDateRangeScenario(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)

	h := NewHistoryStore(0, time.UTC)
	h.ReplaceAll([]noise.Measurement{
		reading(1, day1.Add(9*time.Hour)),
		reading(2, day2.Add(9*time.Hour)),
		reading(3, day3.Add(9*time.Hour)),
	})

	got := h.FilteredByDateRange(day1, day2)
	assert.Equal(t, []int64{1, 2}, reportIDs(got))

	// the stored series is untouched
	assert.Equal(t, []int64{1, 2, 3}, reportIDs(h.Series()))
}

func TestHistoryFilteredByDateRangeBoundaries(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	h := NewHistoryStore(0, time.UTC)
	h.ReplaceAll([]noise.Measurement{
		reading(1, day1.Add(-time.Millisecond)),
		reading(2, day1),
		reading(3, day2.Add(24*time.Hour-time.Millisecond)),
		reading(4, day2.Add(24*time.Hour)),
	})

	// bounds given with a time of day still cover whole days
	got := h.FilteredByDateRange(day1.Add(15*time.Hour), day2.Add(time.Hour))
	assert.Equal(t, []int64{2, 3}, reportIDs(got))
}

func TestHistoryFilteredByDateRangeMissingBound(t *testing.T) {
	h := NewHistoryStore(0, time.UTC)
	series := []noise.Measurement{reading(1, base), reading(2, base.Add(48*time.Hour))}
	h.ReplaceAll(series)

	if diff := cmp.Diff(series, h.FilteredByDateRange(base, time.Time{})); diff != "" {
		t.Fatalf("missing end bound should return the full series (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(series, h.FilteredByDateRange(time.Time{}, base)); diff != "" {
		t.Fatalf("missing start bound should return the full series (-want +got):\n%s", diff)
	}
}

func TestHistoryFilteredByDateRangeTimeZone(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	h := NewHistoryStore(0, loc)

	day, err := noise.ParseDate("2025-03-01", loc)
	require.NoError(t, err)

	h.ReplaceAll([]noise.Measurement{
		reading(1, time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)), // Feb 28th local
		reading(2, time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC)), // Mar 1st local
		reading(3, time.Date(2025, 3, 2, 4, 0, 0, 0, time.UTC)), // Mar 2nd local
	})

	assert.Equal(t, []int64{2}, reportIDs(h.FilteredByDateRange(day, day)))
}

func TestHistoryFilteredByRelativeWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	h := NewHistoryStore(0, time.UTC)
	h.SetClock(func() time.Time { return now })

	h.ReplaceAll([]noise.Measurement{
		reading(1, now.Add(-10*24*time.Hour)),
		reading(2, now.Add(-3*24*time.Hour)),
		reading(3, now.Add(-5*time.Hour)),
		reading(4, now.Add(-time.Hour)),
		reading(5, now.Add(-time.Minute)),
	})

	assert.Equal(t, []int64{4, 5}, reportIDs(h.FilteredByRelativeWindow(noise.WindowHour)))
	assert.Equal(t, []int64{3, 4, 5}, reportIDs(h.FilteredByRelativeWindow(noise.WindowDay)))
	assert.Equal(t, []int64{2, 3, 4, 5}, reportIDs(h.FilteredByRelativeWindow(noise.WindowWeek)))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, reportIDs(h.FilteredByRelativeWindow(noise.WindowAll)))
}

func TestHistoryFilteredDispatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	h := NewHistoryStore(0, time.UTC)
	h.SetClock(func() time.Time { return now })
	h.ReplaceAll([]noise.Measurement{
		reading(1, now.Add(-48*time.Hour)),
		reading(2, now.Add(-time.Minute)),
	})

	assert.Equal(t, []int64{1, 2}, reportIDs(h.Filtered(noise.NoFilter())))
	assert.Equal(t, []int64{2}, reportIDs(h.Filtered(noise.RollingWindow(noise.WindowDay))))

	day := noise.StartOfDay(now.Add(-48*time.Hour), time.UTC)
	assert.Equal(t, []int64{1}, reportIDs(h.Filtered(noise.DateRange(day, day))))
}
