package session

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/noise-dashboard/internal/noise"
	"github.com/i474232898/noise-dashboard/internal/store"
)

// ErrNoSelection is returned when a filter is set before any sensor was picked.
var ErrNoSelection = errors.New("no sensor selected")

// State is the lifecycle of the history view.
type State int

const (
	StateNoSelection State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "no_selection"
	}
}

// FetchTicket identifies one history fetch. Only the ticket carrying the current
// token may complete the selection.
type FetchTicket struct {
	Token uuid.UUID
	Query noise.HistoryQuery
}

// Selection is a read-only copy of the controller state.
type Selection struct {
	SensorID  int
	Selected  bool
	State     State
	Filter    noise.Filter
	Err       error
	UpdatedAt time.Time
}

// View is the selection together with the filtered series.
type View struct {
	Selection
	Points []noise.Measurement
}

// Controller tracks the selected sensor and filter and keeps the history store
// bound to them. It is not safe for concurrent use; Session serializes calls.
type Controller struct {
	snapshots *store.SnapshotStore
	history   *store.HistoryStore

	historyLimit int

	state     State
	sensorID  int
	token     uuid.UUID
	filter    noise.Filter
	lastErr   error
	updatedAt time.Time
}

// NewController creates a controller with no selection. historyLimit is passed as
// the limit of every history fetch (0 leaves it to the backend).
func NewController(snapshots *store.SnapshotStore, history *store.HistoryStore, historyLimit int) *Controller {
	return &Controller{
		snapshots:    snapshots,
		history:      history,
		historyLimit: historyLimit,
		state:        StateNoSelection,
		filter:       noise.NoFilter(),
	}
}

// Select picks a sensor. Picking the current sensor again does nothing and returns
// false, unless its last fetch failed, in which case the same query is retried with
// the filter kept. Otherwise the history is reset, the filter cleared and the
// returned ticket must be fetched.
func (c *Controller) Select(sensorID int) (FetchTicket, bool) {
	if c.state != StateNoSelection && c.sensorID == sensorID {
		if c.state != StateFailed {
			return FetchTicket{}, false
		}
		c.history.Reset()
		return c.issue(c.query()), true
	}

	c.sensorID = sensorID
	c.filter = noise.NoFilter()
	c.history.Reset()

	return c.issue(c.query()), true
}

// query is the history fetch for the selected sensor under the active filter.
func (c *Controller) query() noise.HistoryQuery {
	q := noise.HistoryQuery{SensorID: c.sensorID, Limit: c.historyLimit}
	if c.filter.HasBounds() {
		q.StartDate = c.filter.Start
		q.EndDate = c.filter.End
	}
	return q
}

func (c *Controller) issue(q noise.HistoryQuery) FetchTicket {
	c.token = uuid.New()
	c.state = StateLoading
	c.lastErr = nil
	c.updatedAt = time.Now().UTC()
	return FetchTicket{Token: c.token, Query: q}
}

// CompleteFetch applies the result of a history fetch. Results for a ticket that is
// no longer current are discarded and false is returned.
func (c *Controller) CompleteFetch(t FetchTicket, ms []noise.Measurement, err error) bool {
	if c.state == StateNoSelection || t.Token != c.token || t.Query.SensorID != c.sensorID {
		log.Printf("DEBUG: discarding stale history for sensor %d (fetch %s)", t.Query.SensorID, t.Token)
		return false
	}

	c.updatedAt = time.Now().UTC()
	if err != nil {
		log.Printf("ERROR: history fetch for sensor %d failed: %v", c.sensorID, err)
		c.history.Reset()
		c.state = StateFailed
		c.lastErr = err
		return true
	}

	c.history.ReplaceAll(ms)
	c.state = StateReady
	c.lastErr = nil
	return true
}

// ApplyRealtime merges one feed measurement. The snapshot always takes it; the
// history only when it belongs to the selected sensor. It reports whether the
// history was appended to.
func (c *Controller) ApplyRealtime(m noise.Measurement) bool {
	c.snapshots.ApplyUpdate(m)

	if c.state == StateNoSelection || m.SensorID != c.sensorID {
		return false
	}
	c.history.Append(m)
	return true
}

// SetFilter switches the active filter. A date range with both bounds also refetches
// the selected sensor's history for those dates, since the backend only returns
// the last day by default. Leaving such a range refetches the default series so
// the other filters project over it again.
func (c *Controller) SetFilter(f noise.Filter) (FetchTicket, bool, error) {
	if c.state == StateNoSelection {
		return FetchTicket{}, false, ErrNoSelection
	}

	prev := c.filter
	c.filter = f
	if !f.HasBounds() && !prev.HasBounds() {
		return FetchTicket{}, false, nil
	}

	c.history.Reset()
	return c.issue(c.query()), true, nil
}

// Selection returns the current state.
func (c *Controller) Selection() Selection {
	return Selection{
		SensorID:  c.sensorID,
		Selected:  c.state != StateNoSelection,
		State:     c.state,
		Filter:    c.filter,
		Err:       c.lastErr,
		UpdatedAt: c.updatedAt,
	}
}

// View returns the selection with its filtered series.
func (c *Controller) View() View {
	v := View{Selection: c.Selection()}
	if c.state == StateNoSelection {
		return v
	}
	v.Points = c.history.Filtered(c.filter)
	return v
}
