package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/gemtable/game/room"
	"github.com/wricardo/gemtable/registry"
	"github.com/wricardo/gemtable/transport/websocket"
)

// Transport is the WebSocket side of the server.
type Transport interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Stats() websocket.Stats
}

// Server represents the REST API server
type Server struct {
	store     *room.Store
	registry  *registry.Registry
	transport Transport
	router    *mux.Router
	log       zerolog.Logger
	started   time.Time
}

// NewServer creates a new API server
func NewServer(store *room.Store, reg *registry.Registry, transport Transport, log zerolog.Logger) *Server {
	s := &Server{
		store:     store,
		registry:  reg,
		transport: transport,
		router:    mux.NewRouter(),
		log:       log.With().Str("component", "api").Logger(),
		started:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{name}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/commands", s.handleListCommands).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.transport.ServeWS)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// RoomsResponse is the body of GET /api/rooms.
type RoomsResponse struct {
	Count int            `json:"count"`
	Total int            `json:"total"`
	Rooms []room.Summary `json:"rooms"`
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.store.List()
	total := len(rooms)

	// Parse query parameters
	query := r.URL.Query()
	state := room.State(query.Get("state"))
	if state != "" && state != room.StateLobby && state != room.StateInProgress {
		s.respondError(w, http.StatusBadRequest, "state must be lobby or in_progress")
		return
	}
	openOnly := query.Get("open") == "true"

	filtered := rooms[:0]
	for _, summary := range rooms {
		if state != "" && summary.State != state {
			continue
		}
		if openOnly && (summary.State != room.StateLobby || summary.Players >= summary.Capacity) {
			continue
		}
		filtered = append(filtered, summary)
	}

	// Apply limit if specified
	if limitStr := query.Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if l < len(filtered) {
			filtered = filtered[:l]
		}
	}

	s.respondJSON(w, http.StatusOK, RoomsResponse{Count: len(filtered), Total: total, Rooms: filtered})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	snap, err := s.store.Snapshot(name)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, snap)
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Rooms         int             `json:"rooms"`
	Players       int             `json:"players"`
	GamesRunning  int             `json:"gamesRunning"`
	Commands      int             `json:"commands"`
	Transport     websocket.Stats `json:"transport"`
	UptimeSeconds int64           `json:"uptimeSeconds"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rooms := s.store.List()
	resp := StatsResponse{
		Rooms:         len(rooms),
		Commands:      s.registry.Len(),
		Transport:     s.transport.Stats(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	for _, summary := range rooms {
		resp.Players += summary.Players
		if summary.State == room.StateInProgress {
			resp.GamesRunning++
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// CommandInfo describes one registered command.
type CommandInfo struct {
	Name     string   `json:"name"`
	Required []string `json:"required"`
	Optional []string `json:"optional"`
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	regs := s.registry.Describe()
	out := make([]CommandInfo, 0, len(regs))
	for _, reg := range regs {
		info := CommandInfo{Name: reg.Name, Required: []string{}, Optional: []string{}}
		for _, f := range reg.Schema {
			if f.Required {
				info.Required = append(info.Required, f.Name)
			} else {
				info.Optional = append(info.Optional, f.Name)
			}
		}
		out = append(out, info)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"commands": out})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
