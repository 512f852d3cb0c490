package internal

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server exposes the websocket endpoint and a few read-only HTTP routes.
type Server struct {
	pm  *PartyManager
	hub *Hub
}

func NewServer(pm *PartyManager, hub *Hub) *Server {
	return &Server{pm: pm, hub: hub}
}

// Router creates a chi.Router with our routes.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Get("/parties", s.handleListParties)
	r.Get("/parties/{code}", s.handleGetParty)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "listenparty",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.pm, s.hub, w, r)
}

func (s *Server) handleListParties(w http.ResponseWriter, r *http.Request) {
	var parties []PublicPartyInfo
	err := s.pm.Do(r.Context(), func(reg *Registry, _ time.Time) {
		parties = reg.Public()
	})
	if err != nil {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"parties": parties})
}

// PartyDiagnostics is the response of GET /parties/{code}.
type PartyDiagnostics struct {
	Party       PartyView `json:"party"`
	HostState   HostState `json:"hostState"`
	RoomMembers int       `json:"roomMembers"`
}

func (s *Server) handleGetParty(w http.ResponseWriter, r *http.Request) {
	code := PartyID(strings.ToUpper(chi.URLParam(r, "code")))

	var (
		diag  PartyDiagnostics
		found bool
	)
	err := s.pm.Do(r.Context(), func(reg *Registry, now time.Time) {
		p, ok := reg.Get(code)
		if !ok {
			return
		}
		found = true
		diag.Party = p.View("", now)
		diag.HostState = p.HostState()
	})
	if err != nil {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": errPartyNotFound.Text})
		return
	}
	diag.RoomMembers = len(s.hub.RoomMembers(code))
	writeJSON(w, http.StatusOK, diag)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}
