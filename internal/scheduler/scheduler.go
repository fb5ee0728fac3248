package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// SnapshotLoader refreshes the sensor snapshot from the backend.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) error
}

// Scheduler periodically reloads the sensor snapshot so the map converges even
// when real-time messages were lost while the feed was reconnecting.
type Scheduler struct {
	scheduler *gocron.Scheduler
	loader    SnapshotLoader
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. An interval <= 0 disables it.
func New(interval, timeout time.Duration, loader SnapshotLoader) *Scheduler {
	if timeout <= 0 {
		timeout = interval
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		loader:    loader,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the refresh job. The first run happens one interval after Start,
// since the initial load is done by the caller.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: snapshot refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(func() {
		log.Println("scheduler: refreshing sensor snapshot")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.loader.LoadSnapshot(ctx); err != nil {
			log.Printf("scheduler: snapshot refresh failed: %v", err)
			return
		}
		log.Println("scheduler: completed snapshot refresh")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
