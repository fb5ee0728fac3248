package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/i474232898/noise-dashboard/internal/noise"
)

var (
	// ErrNotFound is returned when no measurement is known for a sensor.
	ErrNotFound = errors.New("no measurement for sensor")
)

// SnapshotStore holds the latest known measurement per sensor.
// Reads are concurrency-safe; writes are expected from a single goroutine.
type SnapshotStore struct {
	mu sync.RWMutex

	// key: sensor id
	data map[int]noise.Measurement

	// rejectStale drops updates strictly older than the stored entry.
	rejectStale bool
}

// NewSnapshotStore creates an empty store. With rejectStale=false updates are
// last-write-wins regardless of their timestamps.
func NewSnapshotStore(rejectStale bool) *SnapshotStore {
	return &SnapshotStore{
		data:        make(map[int]noise.Measurement),
		rejectStale: rejectStale,
	}
}

// LoadAll replaces the whole snapshot. Later duplicates in ms win.
func (s *SnapshotStore) LoadAll(ms []noise.Measurement) {
	data := make(map[int]noise.Measurement, len(ms))
	for _, m := range ms {
		data[m.SensorID] = m
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

// ApplyUpdate stores m for its sensor and reports whether it was applied.
func (s *SnapshotStore) ApplyUpdate(m noise.Measurement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectStale {
		if cur, ok := s.data[m.SensorID]; ok && m.Timestamp.Before(cur.Timestamp) {
			return false
		}
	}
	s.data[m.SensorID] = m
	return true
}

// AllForDisplay returns positioned measurements ordered by sensor id.
func (s *SnapshotStore) AllForDisplay() []noise.Measurement {
	s.mu.RLock()
	out := make([]noise.Measurement, 0, len(s.data))
	for _, m := range s.data {
		if m.HasPosition() {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// Get returns the latest measurement for a sensor.
func (s *SnapshotStore) Get(sensorID int) (noise.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[sensorID]
	if !ok {
		return noise.Measurement{}, ErrNotFound
	}
	return m, nil
}

// Len returns the number of known sensors, positioned or not.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
