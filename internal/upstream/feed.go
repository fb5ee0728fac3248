package upstream

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/i474232898/noise-dashboard/internal/noise"
)

// Feed is the real-time report stream. At most one connection is open at a time.
type Feed struct {
	url       string
	dialer    *websocket.Dialer
	reconnect bool
	backoff   BackoffConfig // MaxRetries 0 retries forever
}

// NewFeed creates a feed for the WebSocket endpoint at wsURL.
func NewFeed(wsURL string, reconnect bool, backoff BackoffConfig) *Feed {
	return &Feed{
		url: wsURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		reconnect: reconnect,
		backoff:   backoff,
	}
}

// WebSocketURL derives the feed endpoint from the REST base URL.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Run delivers every new_report measurement to handle, in arrival order, until ctx
// is done. The connection is closed before Run returns.
func (f *Feed) Run(ctx context.Context, handle func(noise.Measurement)) error {
	attempt := 0
	for {
		connected, err := f.consume(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("WARN: feed: %v", err)

		if !f.reconnect {
			return err
		}
		if connected {
			attempt = 0
		}
		if f.backoff.MaxRetries > 0 && attempt >= f.backoff.MaxRetries {
			return fmt.Errorf("giving up after %d reconnects: %w", attempt, err)
		}

		delay := f.backoff.Delay(attempt)
		log.Printf("INFO: feed: reconnecting in %s", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// consume runs one connection. connected reports whether the dial succeeded.
func (f *Feed) consume(ctx context.Context, handle func(noise.Measurement)) (connected bool, err error) {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: dial %s: %v", noise.ErrNetworkFailure, f.url, err)
	}
	defer conn.Close()
	log.Printf("INFO: feed connected to %s", f.url)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("%w: %v", noise.ErrConnectionDropped, err)
		}
		dispatch(data, handle)
	}
}

func dispatch(data []byte, handle func(noise.Measurement)) {
	msg, err := noise.DecodeFeedMessage(data)
	if err != nil {
		log.Printf("WARN: feed: dropping message: %v", err)
		return
	}
	if msg.Type != noise.MessageNewReport {
		return
	}

	m, err := msg.Measurement()
	if err != nil {
		log.Printf("WARN: feed: dropping %s: %v", msg.Type, err)
		return
	}
	handle(m)
}
