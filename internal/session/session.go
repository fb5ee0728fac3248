package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/noise-dashboard/internal/noise"
	"github.com/i474232898/noise-dashboard/internal/store"
)

// ErrClosed is returned once the session loop has stopped.
var ErrClosed = errors.New("session closed")

// SnapshotStatus describes the bulk snapshot load.
type SnapshotStatus string

const (
	SnapshotLoading SnapshotStatus = "loading"
	SnapshotReady   SnapshotStatus = "ready"
	SnapshotError   SnapshotStatus = "error"
)

// Session is one dashboard session. Every store mutation and controller transition
// runs on the goroutine executing Run; network I/O happens elsewhere and posts its
// result back to it.
type Session struct {
	ID uuid.UUID

	source    noise.Source
	snapshots *store.SnapshotStore
	history   *store.HistoryStore
	ctrl      *Controller

	fetchTimeout time.Duration

	events chan func()
	done   chan struct{}

	// owned by the loop goroutine
	ctx            context.Context
	cancelFetch    context.CancelFunc
	snapshotStatus SnapshotStatus
	snapshotErr    error
}

// New creates a session. Run must be called exactly once for it to make progress.
func New(source noise.Source, snapshots *store.SnapshotStore, history *store.HistoryStore, historyLimit int, fetchTimeout time.Duration) *Session {
	return &Session{
		ID:             uuid.New(),
		source:         source,
		snapshots:      snapshots,
		history:        history,
		ctrl:           NewController(snapshots, history, historyLimit),
		fetchTimeout:   fetchTimeout,
		events:         make(chan func(), 256),
		done:           make(chan struct{}),
		snapshotStatus: SnapshotLoading,
	}
}

// Snapshots exposes the snapshot store for concurrent reads.
func (s *Session) Snapshots() *store.SnapshotStore {
	return s.snapshots
}

// Run processes events until ctx is done. In-flight history fetches are cancelled on exit.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)

	log.Printf("INFO: session %s started", s.ID)
	for {
		select {
		case <-ctx.Done():
			if s.cancelFetch != nil {
				s.cancelFetch()
			}
			log.Printf("INFO: session %s stopped", s.ID)
			return ctx.Err()
		case fn := <-s.events:
			fn()
		}
	}
}

// post queues fn on the loop. Events are executed in the order they were posted.
func (s *Session) post(ctx context.Context, fn func()) error {
	select {
	case s.events <- fn:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := s.post(ctx, func() {
		fn()
		close(finished)
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadSnapshot fetches the latest position of every sensor and replaces the snapshot.
// On failure the store keeps whatever it had; at startup that is nothing.
func (s *Session) LoadSnapshot(ctx context.Context) error {
	ms, err := s.source.LatestPositions(ctx)
	if err != nil {
		log.Printf("ERROR: loading sensor snapshot: %v", err)
		_ = s.post(context.Background(), func() {
			s.snapshotErr = err
			if s.snapshotStatus != SnapshotReady {
				s.snapshotStatus = SnapshotError
			}
		})
		return err
	}

	return s.post(ctx, func() {
		s.snapshots.LoadAll(ms)
		s.snapshotStatus = SnapshotReady
		s.snapshotErr = nil
		log.Printf("INFO: loaded snapshot with %d measurements", len(ms))
	})
}

// HandleMeasurement queues one real-time measurement. It blocks while the loop is
// busy so that measurements from one caller are applied in arrival order.
func (s *Session) HandleMeasurement(m noise.Measurement) {
	if err := s.post(context.Background(), func() {
		s.ctrl.ApplyRealtime(m)
	}); err != nil {
		log.Printf("WARN: dropping real-time measurement for sensor %d: %v", m.SensorID, err)
	}
}

// Select picks a sensor and starts loading its history.
func (s *Session) Select(ctx context.Context, sensorID int) (Selection, error) {
	var sel Selection
	err := s.do(ctx, func() {
		if t, ok := s.ctrl.Select(sensorID); ok {
			log.Printf("INFO: selected sensor %d (fetch %s)", sensorID, t.Token)
			s.startFetch(t)
		}
		sel = s.ctrl.Selection()
	})
	return sel, err
}

// SetFilter switches the history filter of the current selection.
func (s *Session) SetFilter(ctx context.Context, f noise.Filter) (Selection, error) {
	var (
		sel    Selection
		setErr error
	)
	err := s.do(ctx, func() {
		t, refetch, err := s.ctrl.SetFilter(f)
		if err != nil {
			setErr = err
			return
		}
		if refetch {
			s.startFetch(t)
		}
		sel = s.ctrl.Selection()
	})
	if err != nil {
		return Selection{}, err
	}
	return sel, setErr
}

// Selection returns the current selection.
func (s *Session) Selection(ctx context.Context) (Selection, error) {
	var sel Selection
	err := s.do(ctx, func() { sel = s.ctrl.Selection() })
	return sel, err
}

// View returns the current selection with its filtered history.
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() { v = s.ctrl.View() })
	return v, err
}

// SnapshotInfo is the state of the bulk snapshot load.
type SnapshotInfo struct {
	Status  SnapshotStatus
	LastErr error
}

// SnapshotInfo returns the state of the bulk snapshot load.
func (s *Session) SnapshotInfo(ctx context.Context) (SnapshotInfo, error) {
	var info SnapshotInfo
	err := s.do(ctx, func() {
		info = SnapshotInfo{Status: s.snapshotStatus, LastErr: s.snapshotErr}
	})
	return info, err
}

// startFetch cancels the previous history fetch and issues t. Runs on the loop.
func (s *Session) startFetch(t FetchTicket) {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.fetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}
	s.cancelFetch = cancel

	go func() {
		defer cancel()
		ms, err := s.source.History(ctx, t.Query)
		if postErr := s.post(context.Background(), func() {
			s.ctrl.CompleteFetch(t, ms, err)
		}); postErr != nil {
			log.Printf("DEBUG: history for sensor %d arrived after shutdown", t.Query.SensorID)
		}
	}()
}
