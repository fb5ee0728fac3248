package httpapi

import (
	"time"

	"github.com/i474232898/noise-dashboard/internal/noise"
	"github.com/i474232898/noise-dashboard/internal/session"
)

// sensorView is one map marker.
type sensorView struct {
	noise.Measurement
	Color     string          `json:"color"`
	Hex       string          `json:"hex"`
	RGB       noise.RGB       `json:"rgb"`
	TextColor noise.TextColor `json:"text_color"`
}

func newSensorView(m noise.Measurement, scale noise.ColorScale) sensorView {
	c := scale.ColorFor(m.AvgDB)
	return sensorView{
		Measurement: m,
		Color:       c.String(),
		Hex:         c.Hex(),
		RGB:         c,
		TextColor:   noise.ContrastingTextColor(c),
	}
}

// pointView is one chart sample.
type pointView struct {
	ReportID    int64     `json:"report_id"`
	Timestamp   time.Time `json:"timestamp"`
	EpochMillis int64     `json:"epoch_ms"`
	AvgDB       float64   `json:"avg_db"`
	MinDB       float64   `json:"min_db"`
	MaxDB       float64   `json:"max_db"`
	Color       string    `json:"color"`
}

type filterView struct {
	Mode      string `json:"mode"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Window    string `json:"window,omitempty"`
}

func newFilterView(f noise.Filter, loc *time.Location) filterView {
	v := filterView{Mode: f.Kind.String()}
	switch f.Kind {
	case noise.FilterDateRange:
		if !f.Start.IsZero() {
			v.StartDate = f.Start.In(loc).Format(noise.DateLayout)
		}
		if !f.End.IsZero() {
			v.EndDate = f.End.In(loc).Format(noise.DateLayout)
		}
	case noise.FilterRollingWindow:
		v.Window = string(f.Window)
	}
	return v
}

type selectionView struct {
	SensorID  *int       `json:"sensor_id"`
	Status    string     `json:"status"`
	Filter    filterView `json:"filter"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func newSelectionView(sel session.Selection, loc *time.Location) selectionView {
	v := selectionView{
		Status: sel.State.String(),
		Filter: newFilterView(sel.Filter, loc),
	}
	if sel.Selected {
		id := sel.SensorID
		v.SensorID = &id
	}
	if sel.Err != nil {
		v.Error = sel.Err.Error()
	}
	if !sel.UpdatedAt.IsZero() {
		ts := sel.UpdatedAt
		v.UpdatedAt = &ts
	}
	return v
}

type historyView struct {
	selectionView
	Points []pointView `json:"points"`
}

func newHistoryView(v session.View, scale noise.ColorScale, loc *time.Location) historyView {
	out := historyView{
		selectionView: newSelectionView(v.Selection, loc),
		Points:        make([]pointView, 0, len(v.Points)),
	}
	for _, m := range v.Points {
		out.Points = append(out.Points, pointView{
			ReportID:    m.ReportID,
			Timestamp:   m.Timestamp,
			EpochMillis: m.EpochMillis(),
			AvgDB:       m.AvgDB,
			MinDB:       m.MinDB,
			MaxDB:       m.MaxDB,
			Color:       scale.ColorFor(m.AvgDB).String(),
		})
	}
	return out
}

type logView struct {
	noise.LogEntry
	Severity noise.LogSeverity `json:"severity"`
}
