package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/protocol"
	"github.com/wricardo/gemtable/validate"
)

// ErrNoHandlers is returned by Require when nothing was registered.
var ErrNoHandlers = errors.New("registry: no command handlers registered")

var namePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// Handler is the capability every command variant implements.
type Handler interface {
	Handle(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) Handle(ctx context.Context) error { return f(ctx) }

// ReplySink routes a handler's output back to clients.
type ReplySink interface {
	// Reply sends an OK response to the originating connection.
	Reply(data any) error
	// Fail sends a FAILURE response carrying err's message.
	Fail(err error) error
	// Broadcast sends an event to every listed session.
	Broadcast(sessionIDs []string, eventType string, data any)
}

// Factory builds a handler for one inbound message. A factory error means the
// payload was rejected before any handler existed.
type Factory func(connID string, msg protocol.Envelope, sink ReplySink, store *room.Store) (Handler, error)

// Request is what a typed constructor receives.
type Request[T any] struct {
	ConnID  string
	Message protocol.Envelope
	Payload T
	Sink    ReplySink
	Store   *room.Store
}

// Registration is one candidate entry for the registry.
type Registration struct {
	Name    string
	Schema  validate.Schema
	Factory Factory
}

// Define builds a Registration for payload type T. The payload is validated
// against the schema derived from T before build runs. An empty name is
// derived from T's type name with any "Request" suffix removed.
func Define[T any](name string, build func(Request[T]) Handler) Registration {
	schema := validate.SchemaFor[T]()
	if name == "" {
		name = strings.TrimSuffix(reflect.TypeFor[T]().Name(), "Request")
	}
	reg := Registration{Name: name, Schema: schema}
	if build == nil {
		return reg
	}
	reg.Factory = func(connID string, msg protocol.Envelope, sink ReplySink, store *room.Store) (Handler, error) {
		payload, err := validate.Decode[T](msg.Data, schema)
		if err != nil {
			return nil, err
		}
		h := build(Request[T]{
			ConnID:  connID,
			Message: msg,
			Payload: payload,
			Sink:    sink,
			Store:   store,
		})
		if h == nil {
			return nil, fmt.Errorf("registry: %s constructor returned no handler", name)
		}
		return h, nil
	}
	return reg
}

// UnknownCommandError is returned by Lookup for unregistered names.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// Rejection records a candidate that was left out of the table.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report summarizes one registration pass.
type Report struct {
	Registered []string    `json:"registered"`
	Rejected   []Rejection `json:"rejected,omitempty"`
	Overridden []string    `json:"overridden,omitempty"`
}

// Registry is safe for concurrent lookups. The table only changes through
// Register and Reload.
type Registry struct {
	mu    sync.RWMutex
	table map[string]Registration
	log   zerolog.Logger
}

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		table: make(map[string]Registration),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Register adds candidates to the table. Invalid candidates are logged and
// skipped; a later candidate replaces an earlier one with the same name.
func (r *Registry) Register(candidates ...Registration) Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(r.table, candidates)
}

// Reload replaces the whole table with the given candidates.
func (r *Registry) Reload(candidates ...Registration) Report {
	table := make(map[string]Registration, len(candidates))

	r.mu.Lock()
	defer r.mu.Unlock()
	report := r.registerLocked(table, candidates)
	r.table = table
	r.log.Info().Int("handlers", len(table)).Msg("registry reloaded")
	return report
}

func (r *Registry) registerLocked(table map[string]Registration, candidates []Registration) Report {
	var report Report
	for _, c := range candidates {
		if reason := check(c); reason != "" {
			r.log.Warn().Str("command", c.Name).Str("reason", reason).Msg("handler rejected")
			report.Rejected = append(report.Rejected, Rejection{Name: c.Name, Reason: reason})
			continue
		}
		if _, exists := table[c.Name]; exists {
			r.log.Warn().Str("command", c.Name).Msg("handler registration overrides an earlier one")
			report.Overridden = append(report.Overridden, c.Name)
		} else {
			report.Registered = append(report.Registered, c.Name)
		}
		table[c.Name] = c
	}
	return report
}

func check(c Registration) string {
	switch {
	case c.Factory == nil:
		return "missing constructor"
	case !namePattern.MatchString(c.Name):
		return "command name must start with an upper-case letter and be alphanumeric"
	default:
		return ""
	}
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.table[name]
	if !ok {
		return Registration{}, &UnknownCommandError{Name: name}
	}
	return reg, nil
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.table))
	for name := range r.table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns every registration sorted by name.
func (r *Registry) Describe() []Registration {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(names))
	for _, name := range names {
		if reg, ok := r.table[name]; ok {
			out = append(out, reg)
		}
	}
	return out
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}

// Require returns ErrNoHandlers when the table is empty.
func (r *Registry) Require() error {
	if r.Len() == 0 {
		return ErrNoHandlers
	}
	return nil
}
