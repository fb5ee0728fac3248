package noise

import "context"

// Source abstracts the upstream REST backend.
type Source interface {
	LatestPositions(ctx context.Context) ([]Measurement, error)
	History(ctx context.Context, q HistoryQuery) ([]Measurement, error)
}

// LogSource returns the most recent upstream events.
type LogSource interface {
	Logs(ctx context.Context, limit int) ([]LogEntry, error)
}
