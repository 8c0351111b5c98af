package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/service"
	"github.com/wricardo/podium-rally/game/track"
	"github.com/wricardo/podium-rally/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.RaceService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, which disables /ws.
func NewServer(raceService service.RaceService, hub *websocket.Hub) *Server {
	s := &Server{
		service: raceService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Tracks
	api.HandleFunc("/tracks", s.handleListTracks).Methods("GET")
	api.HandleFunc("/tracks/{id}", s.handleGetTrack).Methods("GET")

	// Race management
	api.HandleFunc("/races", s.handleCreateRace).Methods("POST")
	api.HandleFunc("/races", s.handleListRaces).Methods("GET")
	api.HandleFunc("/races/{id}", s.handleGetRace).Methods("GET")
	api.HandleFunc("/races/{id}", s.handleDeleteRace).Methods("DELETE")
	api.HandleFunc("/races/{id}/start", s.handleStartRace).Methods("POST")

	// Race state
	api.HandleFunc("/races/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/races/{id}/standings", s.handleGetStandings).Methods("GET")
	api.HandleFunc("/races/{id}/events", s.handleGetEvents).Methods("GET")

	// Manual seats
	api.HandleFunc("/races/{id}/seats/{seat:[0-9]+}/pending", s.handlePending).Methods("GET")
	api.HandleFunc("/races/{id}/seats/{seat:[0-9]+}/gear", s.handleGear).Methods("POST")
	api.HandleFunc("/races/{id}/seats/{seat:[0-9]+}/move", s.handleMove).Methods("POST")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError picks the status for a service error. fallback is
// used for errors without a known cause.
func respondServiceError(w http.ResponseWriter, err error, fallback int) {
	status := fallback
	switch {
	case errors.Is(err, service.ErrRaceNotFound),
		errors.Is(err, service.ErrInvalidSeat),
		errors.Is(err, track.ErrTrackNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrRaceStarted),
		errors.Is(err, agent.ErrNoPendingDecision),
		errors.Is(err, agent.ErrWrongDecision):
		status = http.StatusConflict
	case errors.Is(err, service.ErrSeatNotHuman),
		errors.Is(err, agent.ErrInvalidAnswer),
		errors.Is(err, engine.ErrNoPlayers),
		errors.Is(err, engine.ErrTooManyPlayers),
		errors.Is(err, track.ErrInvalidTrack):
		status = http.StatusBadRequest
	}
	respondError(w, status, err.Error())
}

func seatParam(r *http.Request) int {
	// The route only matches digits
	n, _ := strconv.Atoi(mux.Vars(r)["seat"])
	return n
}

// Track Handlers

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// Race Handlers

func (s *Server) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	race, err := s.service.CreateRace(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusCreated, race)
}

func (s *Server) handleListRaces(w http.ResponseWriter, r *http.Request) {
	races, err := s.service.ListRaces(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total := len(races)

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	status := query.Get("status")  // only races in this status
	limitStr := query.Get("limit") // number of races to return

	// Set defaults
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if status != "" {
		filtered := races[:0]
		for _, race := range races {
			if string(race.Status) == status {
				filtered = append(filtered, race)
			}
		}
		races = filtered
	}

	sort.SliceStable(races, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = races[i].CreatedAt, races[j].CreatedAt
		} else { // "accessed"
			ti, tj = races[i].LastAccessedAt, races[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj) // desc
	})

	// Apply limit if specified
	limit := len(races)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(races) {
			limit = l
		}
	}
	races = races[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(races),
		"total": total,
		"races": races,
		"sort":  sortBy,
		"order": order,
	})
}

func (s *Server) handleGetRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.service.GetRace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, race)
}

func (s *Server) handleDeleteRace(w http.ResponseWriter, r *http.Request) {
	raceID := mux.Vars(r)["id"]

	if err := s.service.DeleteRace(r.Context(), raceID); err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Race %s deleted", raceID),
	})
}

func (s *Server) handleStartRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.service.StartRace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, race)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := s.service.GetStandings(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, standings)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	opts := service.EventOptions{
		Page:  1,
		Limit: 50,
		Order: "asc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	events, err := s.service.GetEvents(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, events)
}

// Manual Seat Handlers

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	decision, err := s.service.PendingDecision(r.Context(), mux.Vars(r)["id"], seatParam(r))
	if err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleGear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gear *int `json:"gear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Gear == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body, expected {\"gear\": n}")
		return
	}

	raceID, seat := mux.Vars(r)["id"], seatParam(r)
	if err := s.service.SubmitGear(r.Context(), raceID, seat, *req.Gear); err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	log.Printf("[GEAR] race=%s seat=%d gear=%d", raceID, seat, *req.Gear)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Gear submitted",
		"gear":    *req.Gear,
	})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body, expected {\"index\": n}")
		return
	}

	raceID, seat := mux.Vars(r)["id"], seatParam(r)
	if err := s.service.SubmitMove(r.Context(), raceID, seat, *req.Index); err != nil {
		respondServiceError(w, err, http.StatusInternalServerError)
		return
	}

	log.Printf("[MOVE] race=%s seat=%d index=%d", raceID, seat, *req.Index)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Move submitted",
		"index":   *req.Index,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "spectator feed disabled", http.StatusServiceUnavailable)
		return
	}

	raceID := r.URL.Query().Get("race")
	if raceID == "" {
		http.Error(w, "race parameter required", http.StatusBadRequest)
		return
	}

	// Verify race exists
	if _, err := s.service.GetRace(r.Context(), raceID); err != nil {
		http.Error(w, "Invalid race", http.StatusNotFound)
		return
	}

	// Upgrade to WebSocket
	s.hub.ServeWS(w, r, raceID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
