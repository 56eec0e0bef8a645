package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wricardo/gemtable/game/commands"
	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/protocol"
	"github.com/wricardo/gemtable/registry"
)

// Outbox delivers outbound messages to connections.
type Outbox interface {
	Send(connID string, msg protocol.Outbound) error
}

// Outcome is the terminal state of one dispatched frame.
type Outcome string

const (
	OutcomeReplied        Outcome = "replied"
	OutcomeMalformed      Outcome = "malformed_envelope"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeUnknownCommand Outcome = "unknown_command"
	OutcomeInvalidPayload Outcome = "invalid_payload"
	OutcomeHandlerError   Outcome = "handler_error"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRateLimit allows each connection limit messages per second with the
// given burst. A zero limit disables rate limiting.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(d *Dispatcher) {
		d.limit = limit
		d.burst = burst
	}
}

// Dispatcher runs the frame state machine.
type Dispatcher struct {
	registry *registry.Registry
	store    *room.Store
	out      Outbox
	log      zerolog.Logger

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a dispatcher.
func New(reg *registry.Registry, store *room.Store, out Outbox, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		store:    store,
		out:      out,
		log:      log.With().Str("component", "dispatch").Logger(),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes one raw frame received on connID.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, raw []byte) Outcome {
	start := time.Now()

	env, err := protocol.ParseEnvelope(raw)
	if err != nil {
		d.log.Debug().Err(err).Str("conn", connID).Msg("rejected frame")
		d.send(connID, protocol.ConnectionFailure(err))
		return OutcomeMalformed
	}

	logger := d.log.With().
		Str("conn", connID).
		Str("type", env.Type).
		Str("messageContextId", env.MessageContextID).
		Logger()

	outcome := d.route(ctx, logger, connID, env)
	logger.Debug().
		Str("outcome", string(outcome)).
		Dur("took", time.Since(start)).
		Msg("dispatched")
	return outcome
}

func (d *Dispatcher) route(ctx context.Context, logger zerolog.Logger, connID string, env protocol.Envelope) Outcome {
	if !d.allow(connID) {
		d.send(connID, protocol.Failure(env, ErrRateLimited))
		return OutcomeRateLimited
	}

	reg, err := d.registry.Lookup(env.Type)
	if err != nil {
		d.send(connID, protocol.Failure(env, err))
		return OutcomeUnknownCommand
	}

	s := &sink{d: d, connID: connID, env: env}
	handler, err := d.build(reg, connID, env, s)
	if err != nil {
		var execErr *HandlerExecutionError
		if errors.As(err, &execErr) {
			d.fail(logger, connID, env, execErr)
			return OutcomeHandlerError
		}
		d.send(connID, protocol.Failure(env, err))
		return OutcomeInvalidPayload
	}

	if err := d.invoke(ctx, handler, connID, env); err != nil {
		d.fail(logger, connID, env, err)
		return OutcomeHandlerError
	}
	return OutcomeReplied
}

// build runs the factory. Validation errors are returned as is; a panicking
// constructor becomes a HandlerExecutionError.
func (d *Dispatcher) build(reg registry.Registration, connID string, env protocol.Envelope, s registry.ReplySink) (h registry.Handler, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = nil
			err = &HandlerExecutionError{Command: env.Type, ContextID: env.MessageContextID, ConnID: connID, Panic: r, Stack: debug.Stack()}
		}
	}()
	return reg.Factory(connID, env, s, d.store)
}

func (d *Dispatcher) invoke(ctx context.Context, h registry.Handler, connID string, env protocol.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerExecutionError{Command: env.Type, ContextID: env.MessageContextID, ConnID: connID, Panic: r, Stack: debug.Stack()}
		}
	}()
	if err := h.Handle(ctx); err != nil {
		return &HandlerExecutionError{Command: env.Type, ContextID: env.MessageContextID, ConnID: connID, Err: err}
	}
	return nil
}

func (d *Dispatcher) fail(logger zerolog.Logger, connID string, env protocol.Envelope, err error) {
	ev := logger.Error().Err(err)
	var execErr *HandlerExecutionError
	if errors.As(err, &execErr) && execErr.Stack != nil {
		ev = ev.Bytes("stack", execErr.Stack)
	}
	ev.Msg("handler failed")
	d.send(connID, protocol.ServerError(env))
}

func (d *Dispatcher) allow(connID string) bool {
	if d.limit <= 0 {
		return true
	}
	d.mu.Lock()
	lim, ok := d.limiters[connID]
	if !ok {
		lim = rate.NewLimiter(d.limit, d.burst)
		d.limiters[connID] = lim
	}
	d.mu.Unlock()
	return lim.Allow()
}

// send delivers msg and logs delivery failures. A closed connection is not an
// error worth more than a debug line.
func (d *Dispatcher) send(connID string, msg protocol.Outbound) {
	err := d.out.Send(connID, msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrConnectionClosed):
		d.log.Debug().Str("conn", connID).Str("type", msg.Type).Msg("dropped message for closed connection")
	default:
		d.log.Warn().Err(err).Str("conn", connID).Str("type", msg.Type).Msg("send failed")
	}
}

// Disconnect releases everything held for connID: its seat in any room and
// its rate limiter. Remaining players are told about the departure.
func (d *Dispatcher) Disconnect(connID string) {
	d.mu.Lock()
	delete(d.limiters, connID)
	d.mu.Unlock()

	res, left, err := d.store.LeaveAll(connID)
	if err != nil {
		d.log.Warn().Err(err).Str("conn", connID).Msg("leave on disconnect failed")
		return
	}
	if !left {
		return
	}
	d.log.Info().Str("conn", connID).Str("room", res.Room.Name).Msg("player left on disconnect")
	commands.AnnounceLeave(&sink{d: d, connID: connID}, res)
}

// sink is the ReplySink handed to one handler instance.
type sink struct {
	d      *Dispatcher
	connID string
	env    protocol.Envelope

	mu      sync.Mutex
	replied bool
}

func (s *sink) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replied {
		return ErrAlreadyReplied
	}
	s.replied = true
	return nil
}

func (s *sink) Reply(data any) error {
	if err := s.claim(); err != nil {
		return fmt.Errorf("%s: %w", s.env.Type, err)
	}
	s.d.send(s.connID, protocol.Success(s.env, data))
	return nil
}

func (s *sink) Fail(err error) error {
	if claimErr := s.claim(); claimErr != nil {
		return fmt.Errorf("%s: %w", s.env.Type, claimErr)
	}
	s.d.send(s.connID, protocol.Failure(s.env, err))
	return nil
}

func (s *sink) Broadcast(sessionIDs []string, eventType string, data any) {
	msg := protocol.Event(eventType, data)
	for _, id := range sessionIDs {
		s.d.send(id, msg)
	}
}
