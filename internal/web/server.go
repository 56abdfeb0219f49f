package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/config"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/logger"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/state"
	"github.com/yearn/pancake-v4-yv3-yield-hook/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer serves read-only JSON views over the controller's journal.
type WebServer struct {
	router *mux.Router
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/events", ws.handleGetEvents).Methods("GET")
	api.HandleFunc("/thresholds", ws.handleGetThresholds).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server and database health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := state.TestDBConnection() == nil

	status := "healthy"
	code := http.StatusOK
	if !dbHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	ws.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"database":  dbHealthy,
		"timestamp": time.Now(),
	})
}

// handleGetPools returns all journaled pool yield states
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools, err := state.ListPoolYieldStates()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to list pool yield states")
		ws.writeError(w, http.StatusInternalServerError, "failed to load pool states")
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

// handleGetPool returns the journaled yield state for one pool
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID := mux.Vars(r)["id"]

	st, err := state.GetPoolYieldState(types.PoolID(poolID))
	if err != nil {
		ws.writeError(w, http.StatusNotFound, "pool not found: "+poolID)
		return
	}
	ws.writeJSON(w, http.StatusOK, st)
}

// handleGetEvents returns recent controller actions, newest first
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := state.RecentYieldEvents(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load yield events")
		ws.writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	ws.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// handleGetThresholds returns the active buffer thresholds
func (ws *WebServer) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := state.LoadActiveBufferThresholds(config.DefaultThresholdsConfigName)
	if err != nil {
		ws.writeError(w, http.StatusNotFound, "no active thresholds")
		return
	}
	ws.writeJSON(w, http.StatusOK, thresholds)
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (ws *WebServer) writeError(w http.ResponseWriter, code int, message string) {
	ws.writeJSON(w, code, map[string]string{"error": message})
}

// corsMiddleware adds permissive CORS headers for the dashboard
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request at debug level
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}
