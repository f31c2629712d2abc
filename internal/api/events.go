package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"valorant-live-tracker/internal/domain"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventUpdate       = "Update"
	wampSubscribe     = 5
	wampEvent         = 8
	jsonAPIEventTopic = "OnJsonApiEvent"
)

type Event struct {
	EventType string          `json:"eventType"`
	URI       string          `json:"uri"`
	Data      json.RawMessage `json:"data"`
}

// EventStream dials the local client's websocket and subscribes to its JSON
// API event feed.
type EventStream struct {
	url      string
	password string
	dialer   *websocket.Dialer
	logger   zerolog.Logger
}

func NewEventStream(session *domain.SessionContext, logger zerolog.Logger) *EventStream {
	return NewEventStreamURL(fmt.Sprintf("wss://%s", session.LocalHost()), session.LocalPassword, logger)
}

func NewEventStreamURL(url, password string, logger zerolog.Logger) *EventStream {
	return &EventStream{
		url:      url,
		password: password,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // loopback self-signed cert
		},
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Subscription is one live event connection. Close may be called any number
// of times, including after the connection dropped on its own.
type Subscription struct {
	conn   *websocket.Conn
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func (s *EventStream) Subscribe(ctx context.Context, onEvent func(Event)) (*Subscription, error) {
	header := http.Header{}
	header.Set("Authorization", basicAuth(s.password))

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err := conn.WriteJSON([]any{wampSubscribe, jsonAPIEventTopic}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &Subscription{
		conn:   conn,
		done:   make(chan struct{}),
		logger: s.logger,
	}
	sub.wg.Add(1)
	go sub.readLoop(onEvent)

	s.logger.Info().Str("url", s.url).Msg("event subscription opened")
	return sub, nil
}

func (s *Subscription) readLoop(onEvent func(Event)) {
	defer s.wg.Done()
	defer close(s.done)

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("event stream read failed")
			}
			return
		}
		ev, ok := parseEvent(message)
		if !ok {
			continue
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
}

// parseEvent unpacks a WAMP frame [8, "OnJsonApiEvent", {...}].
func parseEvent(message []byte) (Event, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 3 {
		return Event{}, false
	}
	var opcode int
	if err := json.Unmarshal(frame[0], &opcode); err != nil || opcode != wampEvent {
		return Event{}, false
	}
	ev, err := decode[Event](frame[2])
	if err != nil {
		return Event{}, false
	}
	return *ev, true
}

// Done is closed once the read loop has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := s.conn.Close()
	s.wg.Wait()
	s.logger.Info().Msg("event subscription closed")
	return err
}
