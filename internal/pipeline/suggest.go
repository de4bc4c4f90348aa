package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/hintd/internal/engine"
	"github.com/kalambet/hintd/internal/hint"
	"github.com/kalambet/hintd/internal/metrics"
	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/storage"
)

const defaultBatchConcurrency = 4

// SuggestionStore persists served suggestions and the user's answers to them.
type SuggestionStore interface {
	SaveSuggestion(sg storage.Suggestion) error
	UpdateFeedback(id string, accepted bool) error
}

// Suggester orchestrates one hint request: prediction, hint phrasing,
// logging the served suggestion, and telemetry.
type Suggester struct {
	engine    *engine.Engine
	formatter *hint.Formatter
	store     SuggestionStore
	observer  metrics.Observer
	newID     func() string
	logger    *slog.Logger

	logRequests bool
}

// NewSuggester creates a Suggester. store may be nil, in which case
// suggestions are not logged and responses carry no id. A nil observer
// discards telemetry.
func NewSuggester(eng *engine.Engine, formatter *hint.Formatter, store SuggestionStore, observer metrics.Observer) *Suggester {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return &Suggester{
		engine:    eng,
		formatter: formatter,
		store:     store,
		observer:  observer,
		newID:     func() string { return uuid.New().String() },
		logger:    slog.Default(),
	}
}

// LogRequests makes the suggestion log keep each request body, note history
// included. Off by default: only current_time and the prediction are stored.
func (s *Suggester) LogRequests(on bool) {
	s.logRequests = on
}

// Suggest predicts the next reminder for req and phrases it. Invalid input is
// returned as a *notes.MalformedInputError. Failing to log the suggestion
// does not fail the request; the response is served without an id.
func (s *Suggester) Suggest(ctx context.Context, req notes.HintRequest) (notes.HintResponse, error) {
	if err := ctx.Err(); err != nil {
		return notes.HintResponse{}, err
	}

	start := time.Now()
	res, err := s.engine.Predict(req.Context, req.CurrentTime)
	elapsed := time.Since(start)
	if err != nil {
		s.observer.RecordPrediction(metrics.OutcomeInvalid, 0, elapsed)
		return notes.HintResponse{}, err
	}

	text, err := s.formatter.Format(res)
	if err != nil {
		return notes.HintResponse{}, fmt.Errorf("formatting hint: %w", err)
	}

	resp := notes.HintResponse{HintText: text}
	outcome := metrics.OutcomeNone
	if res.Found {
		outcome = metrics.OutcomeFound
		note := res.Prediction.Note()
		meta := res.Prediction.Meta()
		resp.Note = &note
		resp.Meta = &meta
	}
	s.observer.RecordPrediction(outcome, res.Patterns, elapsed)

	if s.store != nil {
		sg := s.suggestion(req, res, text)
		if err := s.store.SaveSuggestion(sg); err != nil {
			s.logger.Warn("suggest: failed to log suggestion", "error", err)
		} else {
			resp.ID = sg.ID
		}
	}

	s.logger.Debug("suggestion served",
		"found", res.Found,
		"patterns", res.Patterns,
		"category", res.Prediction.Category,
		"delta", res.Prediction.Delta,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

func (s *Suggester) suggestion(req notes.HintRequest, res engine.Result, text string) storage.Suggestion {
	sg := storage.Suggestion{
		ID:          s.newID(),
		CreatedAt:   time.Now().UTC(),
		RequestTime: req.CurrentTime,
		HintText:    text,
		Found:       res.Found,
	}
	if s.logRequests {
		if raw, err := json.Marshal(req); err != nil {
			s.logger.Warn("suggest: failed to encode request", "error", err)
		} else {
			sg.RequestJSON = string(raw)
		}
	}
	if res.Found {
		sg.Category = string(res.Prediction.Category)
		sg.NoteText = res.Prediction.Text
		sg.PredictedAt = notes.FormatTime(res.Prediction.TriggerAt)
	}
	return sg
}

// ErrNoStore is returned by Feedback when suggestions are not being logged.
var ErrNoStore = errors.New("suggestion log is disabled")

// Feedback records whether the user accepted the suggestion with the given id.
func (s *Suggester) Feedback(ctx context.Context, id string, accepted bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.UpdateFeedback(id, accepted); err != nil {
		return err
	}
	s.observer.RecordFeedback(accepted)
	s.logger.Debug("suggestion feedback recorded", "id", id, "accepted", accepted)
	return nil
}

// BatchResult is the outcome of one request in a batch. Exactly one of
// Response and Err is set.
type BatchResult struct {
	Response *notes.HintResponse
	Err      error
}

// SuggestBatch runs Suggest for every request with bounded concurrency.
// Results are in request order; a failing request does not affect the others.
func (s *Suggester) SuggestBatch(ctx context.Context, reqs []notes.HintRequest, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.Suggest(ctx, req)
			if err != nil {
				results[i] = BatchResult{Err: err}
				return nil
			}
			results[i] = BatchResult{Response: &resp}
			return nil
		})
	}
	g.Wait()
	return results
}
