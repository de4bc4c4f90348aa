package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/pipeline"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxBatchBodySize   = 8 << 20 // 8MB
	maxBatchSize       = 100
)

// Suggester produces hints; *pipeline.Suggester satisfies it.
type Suggester interface {
	Suggest(ctx context.Context, req notes.HintRequest) (notes.HintResponse, error)
	SuggestBatch(ctx context.Context, reqs []notes.HintRequest, concurrency int) []pipeline.BatchResult
	Feedback(ctx context.Context, id string, accepted bool) error
}

// HintDeps holds dependencies for the public hint API.
type HintDeps struct {
	Suggester        Suggester
	Metrics          http.Handler // optional; defaults to promhttp.Handler()
	BatchConcurrency int
}

// NewHintHandler returns an http.Handler serving health, hint and metrics routes.
func NewHintHandler(deps HintDeps) http.Handler {
	r := chi.NewRouter()

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Get("/health", handleHealth)
	r.Post("/entities/get_text_based_hint", handleHint(deps))
	r.Post("/v1/hints/batch", handleHintBatch(deps))
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleHint(deps HintDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req notes.HintRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		resp, err := deps.Suggester.Suggest(r.Context(), req)
		if err != nil {
			writeSuggestError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type batchRequest struct {
	Requests []notes.HintRequest `json:"requests"`
}

type batchItem struct {
	Response *notes.HintResponse `json:"response,omitempty"`
	Error    *errorBody          `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

func handleHintBatch(deps HintDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodySize)
		defer r.Body.Close()

		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Requests) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "requests is required and must not be empty")
			return
		}
		if len(req.Requests) > maxBatchSize {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at most %d requests per batch, got %d", maxBatchSize, len(req.Requests))
			return
		}

		results := deps.Suggester.SuggestBatch(r.Context(), req.Requests, deps.BatchConcurrency)
		out := batchResponse{Results: make([]batchItem, len(results))}
		for i, res := range results {
			if res.Err != nil {
				_, errType := classifySuggestError(res.Err)
				out.Results[i] = batchItem{Error: &errorBody{Message: res.Err.Error(), Type: errType}}
				continue
			}
			out.Results[i] = batchItem{Response: res.Response}
		}

		slog.Debug("hint batch served", "requests", len(req.Requests))
		writeJSON(w, http.StatusOK, out)
	}
}

func classifySuggestError(err error) (int, string) {
	switch {
	case errors.Is(err, notes.ErrMalformedInput):
		return http.StatusUnprocessableEntity, "invalid_request_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "api_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func writeSuggestError(w http.ResponseWriter, err error) {
	code, errType := classifySuggestError(err)
	if code == http.StatusInternalServerError {
		slog.Error("hint request failed", "error", err)
	}
	httpError(w, code, errType, "%v", err)
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]errorBody{
		"error": {Message: fmt.Sprintf(format, args...), Type: errType},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
