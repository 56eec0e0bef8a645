// Package health closes connections that stopped answering heartbeats.
//
// The monitor polls a Source on a fixed interval and compares each
// connection's time since its last pong against two thresholds:
//
//	elapsed > warn       Suspect, logged once on entry
//	elapsed > terminate  Closed, Close called once
//
// There is no hysteresis: a Suspect connection that answers again returns to
// Alive on the next poll and may become Suspect again later.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is a connection's liveness as last evaluated.
type State string

const (
	StateAlive   State = "alive"
	StateSuspect State = "suspect"
	StateClosed  State = "closed"
)

// Conn is the view of a connection the monitor needs. Close must be safe to
// call more than once.
type Conn interface {
	ID() string
	LastPong() time.Time
	Close() error
}

// Source lists the currently open connections.
type Source interface {
	Connections() []Conn
}

// Thresholds configures a Monitor.
type Thresholds struct {
	Interval  time.Duration
	Warn      time.Duration
	Terminate time.Duration
}

// Validate reports inconsistent thresholds.
func (t Thresholds) Validate() error {
	var errs []error
	if t.Interval <= 0 {
		errs = append(errs, errors.New("health check interval must be positive"))
	}
	if t.Terminate <= 0 {
		errs = append(errs, errors.New("termination threshold must be positive"))
	}
	if t.Warn < 0 || (t.Terminate > 0 && t.Warn >= t.Terminate) {
		errs = append(errs, errors.New("warn threshold must be non-negative and below the termination threshold"))
	}
	return errors.Join(errs...)
}

// Monitor tracks liveness for every connection of a Source.
type Monitor struct {
	source Source
	limits Thresholds
	log    zerolog.Logger

	mu     sync.Mutex
	states map[string]State
}

// NewMonitor creates a monitor for source.
func NewMonitor(source Source, limits Thresholds, log zerolog.Logger) (*Monitor, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		source: source,
		limits: limits,
		log:    log.With().Str("component", "health").Logger(),
		states: make(map[string]State),
	}, nil
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.limits.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Check(now)
		}
	}
}

// Check evaluates every connection at now and returns how many were closed.
func (m *Monitor) Check(now time.Time) int {
	conns := m.source.Connections()

	m.mu.Lock()
	seen := make(map[string]struct{}, len(conns))
	var toClose []Conn
	for _, c := range conns {
		id := c.ID()
		seen[id] = struct{}{}
		prev := m.states[id]
		if prev == StateClosed {
			continue
		}

		elapsed := now.Sub(c.LastPong())
		switch {
		case elapsed > m.limits.Terminate:
			m.states[id] = StateClosed
			toClose = append(toClose, c)
		case elapsed > m.limits.Warn:
			m.states[id] = StateSuspect
			if prev != StateSuspect {
				m.log.Warn().Str("conn", id).Dur("since_pong", elapsed).Msg("connection missed heartbeats")
			}
		default:
			m.states[id] = StateAlive
		}
	}
	for id := range m.states {
		if _, ok := seen[id]; !ok {
			delete(m.states, id)
		}
	}
	m.mu.Unlock()

	for _, c := range toClose {
		m.log.Info().Str("conn", c.ID()).Msg("closing unresponsive connection")
		if err := c.Close(); err != nil {
			m.log.Debug().Err(err).Str("conn", c.ID()).Msg("close failed")
		}
	}
	return len(toClose)
}

// State returns the last evaluated state of a connection.
func (m *Monitor) State(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	return s, ok
}
