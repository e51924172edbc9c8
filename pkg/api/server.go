package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/registry"
	"github.com/cbodonnell/rally/pkg/repositories"
	"github.com/gorilla/mux"
)

// APIServer exposes read-only observability endpoints: active match
// snapshots and player stats.
type APIServer struct {
	server *http.Server
}

type NewAPIServerOptions struct {
	Port       int
	Registry   *registry.Registry
	Repository repositories.Repository
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/api/matches", handleListMatches(opts.Registry)).Methods(http.MethodGet)
	router.HandleFunc("/api/matches/{matchID}", handleGetMatch(opts.Registry)).Methods(http.MethodGet)
	router.HandleFunc("/api/players/{username}/stats", handleGetPlayerStats(opts.Repository)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	log.Info("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleListMatches(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reg.Snapshot()); err != nil {
			log.Error("failed to encode match summaries: %v", err)
			http.Error(w, "Failed to encode match summaries", http.StatusInternalServerError)
			return
		}
	}
}

func handleGetMatch(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, err := strconv.ParseInt(mux.Vars(r)["matchID"], 10, 64)
		if err != nil {
			http.Error(w, "Invalid match id", http.StatusBadRequest)
			return
		}

		m, ok := reg.Get(matchID)
		if !ok {
			http.Error(w, "Match not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Summarize()); err != nil {
			log.Error("failed to encode match summary: %v", err)
			http.Error(w, "Failed to encode match summary", http.StatusInternalServerError)
			return
		}
	}
}

func handleGetPlayerStats(repository repositories.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := mux.Vars(r)["username"]

		stats, err := repository.GetPlayerStats(r.Context(), username)
		if err != nil {
			if repositories.IsNotFound(err) {
				http.Error(w, "Player not found", http.StatusNotFound)
				return
			}
			log.Error("failed to get player stats: %v", err)
			http.Error(w, "Failed to get player stats", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Error("failed to encode player stats: %v", err)
			http.Error(w, "Failed to encode player stats", http.StatusInternalServerError)
			return
		}
	}
}
