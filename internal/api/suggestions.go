package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/hintd/internal/pipeline"
	"github.com/kalambet/hintd/internal/storage"
)

// SuggestionStore abstracts the suggestion log for the management API.
type SuggestionStore interface {
	GetSuggestion(id string) (storage.Suggestion, error)
	ListSuggestions(limit, offset int) ([]storage.Suggestion, error)
	DeleteSuggestion(id string) error
}

// AppDeps holds dependencies for the management API.
type AppDeps struct {
	Store     SuggestionStore
	Suggester Suggester
	Token     string // bearer token; empty disables auth
}

type feedbackRequest struct {
	Accepted *bool `json:"accepted"`
}

// NewAppHandler returns an http.Handler for browsing served suggestions and
// recording feedback. Mount it under /v1/suggestions.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	if deps.Token != "" {
		r.Use(BearerAuth(deps.Token))
	}

	r.Get("/", handleListSuggestions(deps))
	r.Get("/{id}", handleGetSuggestion(deps))
	r.Post("/{id}/feedback", handleFeedback(deps))
	r.Delete("/{id}", handleDeleteSuggestion(deps))

	return r
}

func handleListSuggestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		suggestions, err := deps.Store.ListSuggestions(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list suggestions: %v", err)
			return
		}
		if suggestions == nil {
			suggestions = []storage.Suggestion{}
		}
		writeJSON(w, http.StatusOK, suggestions)
	}
}

func handleGetSuggestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		sg, err := deps.Store.GetSuggestion(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "suggestion not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get suggestion: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, sg)
	}
}

func handleFeedback(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Accepted == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "accepted is required")
			return
		}

		err := deps.Suggester.Feedback(r.Context(), id, *req.Accepted)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "suggestion not found")
			return
		case errors.Is(err, pipeline.ErrNoStore):
			httpError(w, http.StatusServiceUnavailable, "api_error", "%v", err)
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record feedback: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
	}
}

func handleDeleteSuggestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := deps.Store.DeleteSuggestion(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "suggestion not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete suggestion: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
