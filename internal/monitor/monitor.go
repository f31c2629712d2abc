package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/metrics"

	"github.com/rs/zerolog"
)

type State string

const (
	Idle   State = "idle"
	Active State = "active"
)

type Presence interface {
	CurrentMatchID(ctx context.Context) (string, error)
}

type Assembler interface {
	Assemble(ctx context.Context, matchID string) (*domain.MatchSnapshot, error)
}

type Subscription interface {
	Close() error
	Done() <-chan struct{}
}

type Subscriber interface {
	Subscribe(ctx context.Context, onEvent func(api.Event)) (Subscription, error)
}

// Sink receives monitor output. Implementations must return quickly; the
// monitor calls them from its own goroutine and from the event reader.
type Sink interface {
	Snapshot(snapshot *domain.MatchSnapshot)
	Waiting()
	Ended(matchID string)
	StateChanged(matchID string, ev api.Event)
}

type Intervals struct {
	Poll    time.Duration
	Backoff time.Duration
}

type Monitor struct {
	presence   Presence
	assembler  Assembler
	subscriber Subscriber
	sinks      []Sink
	clock      clock.Clock
	intervals  Intervals
	logger     zerolog.Logger

	mu       sync.Mutex
	state    State
	current  string
	sub      Subscription
	snapshot *domain.MatchSnapshot
}

func New(presence Presence, assembler Assembler, subscriber Subscriber, sinks []Sink, clk clock.Clock, intervals Intervals, logger zerolog.Logger) *Monitor {
	if intervals.Poll <= 0 {
		intervals.Poll = constants.PollInterval
	}
	if intervals.Backoff <= 0 {
		intervals.Backoff = constants.ErrorBackoff
	}
	return &Monitor{
		presence:   presence,
		assembler:  assembler,
		subscriber: subscriber,
		sinks:      sinks,
		clock:      clk,
		intervals:  intervals,
		logger:     logger.With().Str("component", "monitor").Logger(),
		state:      Idle,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) CurrentMatchID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Snapshot returns the last published snapshot, or nil while idle.
func (m *Monitor) Snapshot() *domain.MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Run polls until ctx is cancelled. A failed tick is followed by the short
// backoff instead of the poll interval.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("poll", m.intervals.Poll).Dur("backoff", m.intervals.Backoff).Msg("monitor started")
	defer m.shutdown()

	for {
		err := m.safeTick(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := m.intervals.Poll
		if err != nil {
			metrics.MonitorTicks.WithLabelValues("error").Inc()
			m.logger.Error().Err(err).Dur("backoff", m.intervals.Backoff).Msg("tick failed")
			wait = m.intervals.Backoff
		} else {
			metrics.MonitorTicks.WithLabelValues("ok").Inc()
		}

		if err := m.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (m *Monitor) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return m.Tick(ctx)
}

// Tick runs one presence check and any transition it implies.
func (m *Monitor) Tick(ctx context.Context) error {
	presenceCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	id, err := m.presence.CurrentMatchID(presenceCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to check match presence: %w", err)
	}

	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	switch {
	case id != "" && id != current:
		return m.startMatch(ctx, id, current)
	case id != "" && id == current:
		m.ensureSubscription(ctx, id)
		return nil
	case id == "" && current != "":
		m.endMatch(current)
		return nil
	default:
		m.logger.Debug().Msg("waiting for match")
		for _, s := range m.sinks {
			s.Waiting()
		}
		return nil
	}
}

func (m *Monitor) startMatch(ctx context.Context, id, previous string) error {
	if previous != "" {
		m.logger.Info().Str("previous_match_id", previous).Str("match_id", id).Msg("match superseded")
	}
	m.reset()

	assembleCtx, cancel := context.WithTimeout(ctx, constants.AssembleTimeout)
	defer cancel()
	snapshot, err := m.assembler.Assemble(assembleCtx, id)
	if err != nil {
		return fmt.Errorf("failed to assemble match %s: %w", id, err)
	}

	m.mu.Lock()
	m.current = id
	m.snapshot = snapshot
	m.state = Active
	m.mu.Unlock()

	metrics.SnapshotsPublished.Inc()
	m.logger.Info().Str("match_id", id).Int("participants", len(snapshot.Participants)).Msg("match detected")
	for _, s := range m.sinks {
		s.Snapshot(snapshot)
	}

	m.ensureSubscription(ctx, id)
	return nil
}

func (m *Monitor) endMatch(id string) {
	m.reset()
	m.logger.Info().Str("match_id", id).Msg("match ended")
	for _, s := range m.sinks {
		s.Ended(id)
	}
}

// ensureSubscription opens a subscription for id when none is live. A failed
// dial is retried on the next tick.
func (m *Monitor) ensureSubscription(ctx context.Context, id string) {
	if m.subscriber == nil {
		return
	}

	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()
	if sub != nil {
		select {
		case <-sub.Done():
			m.logger.Warn().Str("match_id", id).Msg("event subscription dropped, reopening")
			m.closeSubscription()
		default:
			return
		}
	}

	newSub, err := m.subscriber.Subscribe(ctx, m.eventHandler(id))
	if err != nil {
		m.logger.Warn().Err(err).Str("match_id", id).Msg("failed to open event subscription")
		return
	}

	m.mu.Lock()
	if m.current != id || m.sub != nil {
		m.mu.Unlock()
		_ = newSub.Close()
		return
	}
	m.sub = newSub
	m.mu.Unlock()
}

func (m *Monitor) eventHandler(id string) func(api.Event) {
	return func(ev api.Event) {
		if ev.EventType != api.EventUpdate {
			return
		}
		m.mu.Lock()
		live := m.current == id
		m.mu.Unlock()
		if !live {
			return
		}
		m.logger.Debug().Str("match_id", id).Str("uri", ev.URI).Msg("match state changed")
		for _, s := range m.sinks {
			s.StateChanged(id, ev)
		}
	}
}

// closeSubscription detaches the subscription before closing it so the
// event reader can still take the lock while it drains.
func (m *Monitor) closeSubscription() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close event subscription")
	}
}

func (m *Monitor) reset() {
	m.mu.Lock()
	m.current = ""
	m.snapshot = nil
	m.state = Idle
	m.mu.Unlock()
	m.closeSubscription()
}

func (m *Monitor) shutdown() {
	m.closeSubscription()
	m.logger.Info().Msg("monitor stopped")
}

// StreamSubscriber adapts the local websocket event stream to Subscriber.
type StreamSubscriber struct {
	Stream *api.EventStream
}

func (s StreamSubscriber) Subscribe(ctx context.Context, onEvent func(api.Event)) (Subscription, error) {
	sub, err := s.Stream.Subscribe(ctx, onEvent)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
