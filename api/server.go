package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"immo-prospect/matching"
	"immo-prospect/scraper"
	"immo-prospect/services"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

// Server is the thin HTTP surface over the core: run scrapers, query the run
// ledger, trigger matching and maintenance passes. All business behavior
// stays in the packages underneath.
type Server struct {
	manager  *scraper.Manager
	engine   *matching.Engine
	notifier *matching.Notifier
	cleanup  *services.CleanupService
	store    storage.Store
	logger   *utils.Logger
}

// NewServer wires the HTTP surface.
func NewServer(manager *scraper.Manager, engine *matching.Engine, notifier *matching.Notifier,
	cleanup *services.CleanupService, store storage.Store, logger *utils.Logger) *Server {
	return &Server{
		manager:  manager,
		engine:   engine,
		notifier: notifier,
		cleanup:  cleanup,
		store:    store,
		logger:   logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/scrapers", s.handleListScrapers).Methods("GET")
	r.HandleFunc("/api/scrapers/{id}/run", s.handleRunScraper).Methods("POST")
	r.HandleFunc("/api/scrapers/categories/{name}/run", s.handleRunCategory).Methods("POST")
	r.HandleFunc("/api/history", s.handleHistory).Methods("GET")
	r.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/api/match/biens/{id}", s.handleMatchBien).Methods("POST")
	r.HandleFunc("/api/match/run", s.handleMatchRun).Methods("POST")
	r.HandleFunc("/api/notifications/sweep", s.handleSweep).Methods("POST")
	r.HandleFunc("/api/cleanup", s.handleCleanup).Methods("POST")
	return r
}

func (s *Server) handleListScrapers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var params scraper.Params
	if r.Body != nil {
		// An empty body means default params.
		_ = json.NewDecoder(r.Body).Decode(&params)
	}

	report, err := s.manager.Run(r.Context(), id, params, scraper.Options{Save: true})
	if errors.Is(err, scraper.ErrUnknownScraper) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRunCategory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var params scraper.Params
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&params)
	}

	multi, err := s.manager.RunCategory(r.Context(), name, params, scraper.Options{Save: true})
	if errors.Is(err, scraper.ErrUnknownCategory) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, multi)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.manager.History(limit))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.GetStats())
}

func (s *Server) handleMatchBien(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid bien id"))
		return
	}

	bien, err := s.store.GetBien(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	report, err := s.engine.MatchBien(r.Context(), bien)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMatchRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.MatchRecent(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	report, err := s.notifier.Sweep(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cleanup.Run(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
