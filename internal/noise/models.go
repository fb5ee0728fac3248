package noise

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/i474232898/noise-dashboard/internal/common"
)

var (
	// ErrNetworkFailure is returned when an upstream call is rejected or answers with a non-2xx status.
	ErrNetworkFailure = errors.New("network failure")
	// ErrMalformedPayload is returned when an upstream payload cannot be read as the expected shape.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrConnectionDropped is returned when the real-time feed closes.
	ErrConnectionDropped = errors.New("connection dropped")
)

// MessageNewReport is the only real-time message type the dashboard acts upon.
const MessageNewReport = "new_report"

// Measurement is one sensor report at one point in time.
// Numeric fields are already normalized: anything missing or unreadable on the wire is 0.
type Measurement struct {
	ReportID  int64     `json:"report_id"`
	SensorID  int       `json:"microcontroller_id"`
	Timestamp time.Time `json:"timestamp"` // always UTC
	AvgDB     float64   `json:"avg_db"`
	MinDB     float64   `json:"min_db"`
	MaxDB     float64   `json:"max_db"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

// HasPosition reports whether the measurement can be placed on the map.
func (m Measurement) HasPosition() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// EpochMillis returns the timestamp as milliseconds since the Unix epoch.
func (m Measurement) EpochMillis() int64 {
	return m.Timestamp.UnixMilli()
}

// wireMeasurement keeps every field raw so a single bad field never rejects the record.
type wireMeasurement struct {
	ReportID  json.RawMessage `json:"report_id"`
	SensorID  json.RawMessage `json:"microcontroller_id"`
	Timestamp json.RawMessage `json:"timestamp"`
	AvgDB     json.RawMessage `json:"avg_db"`
	MinDB     json.RawMessage `json:"min_db"`
	MaxDB     json.RawMessage `json:"max_db"`
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
}

// UnmarshalJSON is the ingestion boundary for measurements. Only a payload that is
// not a JSON object is an error.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return fmt.Errorf("%w: measurement is not an object", ErrMalformedPayload)
	}

	var w wireMeasurement
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	avg, _ := coerceFloat(w.AvgDB)
	minDB, _ := coerceFloat(w.MinDB)
	maxDB, _ := coerceFloat(w.MaxDB)
	sensor, _ := coerceFloat(w.SensorID)
	report, _ := coerceFloat(w.ReportID)

	*m = Measurement{
		ReportID:  int64(report),
		SensorID:  int(sensor),
		Timestamp: coerceTime(w.Timestamp),
		AvgDB:     avg,
		MinDB:     minDB,
		MaxDB:     maxDB,
		Latitude:  optionalFloat(w.Latitude),
		Longitude: optionalFloat(w.Longitude),
	}
	return nil
}

// DecodeMeasurements decodes a JSON array of measurements. Elements that are not
// objects are logged and skipped; only a body that is not an array is an error.
func DecodeMeasurements(data []byte) ([]Measurement, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: expected an array of measurements: %v", ErrMalformedPayload, err)
	}

	out := make([]Measurement, 0, len(raw))
	for i, item := range raw {
		var m Measurement
		if err := json.Unmarshal(item, &m); err != nil {
			log.Printf("WARN: skipping measurement %d: %v", i, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// FeedMessage is one message of the real-time feed.
type FeedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeFeedMessage reads a feed envelope without interpreting its payload.
func DecodeFeedMessage(data []byte) (FeedMessage, error) {
	var msg FeedMessage
	if !isObject(data) {
		return msg, fmt.Errorf("%w: feed message is not an object", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return msg, nil
}

// Measurement decodes the payload of a new_report message.
func (f FeedMessage) Measurement() (Measurement, error) {
	var m Measurement
	if err := json.Unmarshal(f.Payload, &m); err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			return m, err
		}
		return m, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return m, nil
}

// LogSeverity groups upstream log levels for display.
type LogSeverity string

const (
	SeverityAlert LogSeverity = "alert"
	SeverityInfo  LogSeverity = "info"
	SeverityOther LogSeverity = "other"
)

// LogEntry is one event from the upstream event log.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	SensorID  *int      `json:"microcontroller_id,omitempty"`
}

// Severity classifies the free-form level reported by the backend.
func (e LogEntry) Severity() LogSeverity {
	switch {
	case common.HasAnyFold(e.Level, "alert", "warn", "error", "crit"):
		return SeverityAlert
	case common.HasAnyFold(e.Level, "info"):
		return SeverityInfo
	default:
		return SeverityOther
	}
}

type wireLogEntry struct {
	ID        json.RawMessage `json:"id"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
	SensorID  json.RawMessage `json:"microcontroller_id"`
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return fmt.Errorf("%w: log entry is not an object", ErrMalformedPayload)
	}
	var w wireLogEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	id, _ := coerceFloat(w.ID)
	*e = LogEntry{
		ID:        int64(id),
		Level:     w.Level,
		Message:   w.Message,
		Timestamp: coerceTime(w.Timestamp),
	}
	if v, ok := coerceFloat(w.SensorID); ok {
		sensor := int(v)
		e.SensorID = &sensor
	}
	return nil
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// coerceFloat reads a JSON number or numeric string. The boolean is false when the
// value was absent or unreadable, in which case 0 is returned.
func coerceFloat(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	}

	if !common.Finite(v) {
		return 0, false
	}
	return v, true
}

func optionalFloat(raw json.RawMessage) *float64 {
	v, ok := coerceFloat(raw)
	if !ok {
		return nil
	}
	return &v
}

// coerceTime accepts ISO-8601 strings (with or without an offset; naive values are UTC)
// and numeric epoch milliseconds. Anything else yields the zero time.
func coerceTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		ts, err := iso8601.ParseString(strings.TrimSpace(s))
		if err != nil {
			return time.Time{}
		}
		return ts.UTC()
	}

	if ms, ok := coerceFloat(raw); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return time.Time{}
}
