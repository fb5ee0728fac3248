package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/noise-dashboard/internal/noise"
)

const (
	reportsPath = "/api/reports"
	logsPath    = "/api/logs"
)

// Client talks to the noise backend REST API. It implements noise.Source and noise.LogSource.
type Client struct {
	name    string
	http    *resty.Client
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, backoff BackoffConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)

	return &Client{
		name:    "noise-backend",
		http:    httpClient,
		backoff: backoff,
		circuit: newCircuitBreaker("noise-backend"),
	}
}

func (c *Client) Name() string {
	return c.name
}

// LatestPositions returns the latest report of every sensor.
func (c *Client) LatestPositions(ctx context.Context) ([]noise.Measurement, error) {
	body, err := doRequestWithResilience(ctx, c.http, c.backoff, c.circuit, reportsPath, map[string]string{
		"latest_positions": "true",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching latest positions: %w", err)
	}
	return noise.DecodeMeasurements(body)
}

// History returns the reports of one sensor. Zero dates and limits are omitted so the
// backend applies its own defaults.
func (c *Client) History(ctx context.Context, q noise.HistoryQuery) ([]noise.Measurement, error) {
	body, err := doRequestWithResilience(ctx, c.http, c.backoff, c.circuit, reportsPath, historyParams(q))
	if err != nil {
		return nil, fmt.Errorf("fetching history for sensor %d: %w", q.SensorID, err)
	}
	return noise.DecodeMeasurements(body)
}

func historyParams(q noise.HistoryQuery) map[string]string {
	values := map[string]string{
		"microcontroller_id": strconv.Itoa(q.SensorID),
	}
	if !q.StartDate.IsZero() {
		values["start_date"] = q.StartDate.Format(noise.DateLayout)
	}
	if !q.EndDate.IsZero() {
		values["end_date"] = q.EndDate.Format(noise.DateLayout)
	}
	if q.Limit > 0 {
		values["limit"] = strconv.Itoa(q.Limit)
	}
	return values
}

// Logs returns the most recent backend events.
func (c *Client) Logs(ctx context.Context, limit int) ([]noise.LogEntry, error) {
	body, err := doRequestWithResilience(ctx, c.http, c.backoff, c.circuit, logsPath, map[string]string{
		"limit": strconv.Itoa(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}

	var entries []noise.LogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding logs: %v", noise.ErrMalformedPayload, err)
	}
	return entries, nil
}
