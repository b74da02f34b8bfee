package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"placement-runner/internal/domain"
	"placement-runner/internal/runner"
)

// NewRouter mounts the health check, the runner websocket and the session lookup.
func NewRouter(backend runner.SessionBackend, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	r.Get("/sessions/{id}", getSession(backend))
	return r
}

func getSession(backend runner.SessionBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		session, err := backend.Existing(r.Context(), id)
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			respondError(w, "session not found", http.StatusNotFound)
			return
		case err != nil:
			respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, session, http.StatusOK)
	}
}

func respondJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, msg string, status int) {
	respondJSON(w, errorPayload{Message: msg}, status)
}
