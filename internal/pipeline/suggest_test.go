package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/hintd/internal/engine"
	"github.com/kalambet/hintd/internal/hint"
	"github.com/kalambet/hintd/internal/metrics"
	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/storage"
)

// --- mock suggestion store ---

type mockStore struct {
	mu       sync.Mutex
	saved    []storage.Suggestion
	feedback map[string]bool
	saveErr  error
}

func (m *mockStore) SaveSuggestion(sg storage.Suggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, sg)
	return nil
}

func (m *mockStore) UpdateFeedback(id string, accepted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sg := range m.saved {
		if sg.ID == id {
			if m.feedback == nil {
				m.feedback = make(map[string]bool)
			}
			m.feedback[id] = accepted
			return nil
		}
	}
	return storage.ErrNotFound
}

// --- mock observer ---

type predictionEvent struct {
	outcome  string
	patterns int
}

type mockObserver struct {
	mu          sync.Mutex
	predictions []predictionEvent
	feedback    []bool
}

func (m *mockObserver) RecordPrediction(outcome string, patterns int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions = append(m.predictions, predictionEvent{outcome, patterns})
}

func (m *mockObserver) RecordFeedback(accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, accepted)
}

// --- helpers ---

func workedExample(t *testing.T) notes.HintRequest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "engine", "testdata", "worked_example.json"))
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	var req notes.HintRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatalf("decoding fixture: %v", err)
	}
	return req
}

func buildSuggester(t *testing.T, store SuggestionStore, obs metrics.Observer) *Suggester {
	t.Helper()
	pb := hint.DefaultPhrasebook()
	f, err := hint.New(pb)
	if err != nil {
		t.Fatalf("hint.New: %v", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Labels = pb.Labels()
	s := NewSuggester(engine.New(cfg), f, store, obs)
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("sg-%d", n)
	}
	return s
}

// --- tests ---

func TestSuggest_WorkedExample(t *testing.T) {
	store := &mockStore{}
	obs := &mockObserver{}
	s := buildSuggester(t, store, obs)

	resp, err := s.Suggest(context.Background(), workedExample(t))
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	if resp.Note == nil || resp.Meta == nil {
		t.Fatalf("expected a note and meta, got %+v", resp)
	}
	if resp.Note.Text != "Сделать покупки" || resp.Note.CategoryType != notes.CategoryShopping {
		t.Errorf("note = %+v", resp.Note)
	}
	if got := resp.Note.Triggers[0].TriggerValue; got != "2025-06-25 17:20" {
		t.Errorf("trigger = %s", got)
	}
	if want := "Вы обычно делаете покупки около 17:20. Напомнить через 7 часов?"; resp.HintText != want {
		t.Errorf("HintText = %q, want %q", resp.HintText, want)
	}
	if resp.ID != "sg-1" {
		t.Errorf("ID = %q, want sg-1", resp.ID)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d suggestions, want 1", len(store.saved))
	}
	sg := store.saved[0]
	if sg.Category != "Shopping" || sg.PredictedAt != "2025-06-25 17:20" || !sg.Found {
		t.Errorf("logged suggestion = %+v", sg)
	}
	if sg.RequestTime != "2025-06-25 10:00" {
		t.Errorf("logged request time = %q", sg.RequestTime)
	}
	if sg.RequestJSON != "" {
		t.Errorf("note history logged without opting in: %q", sg.RequestJSON)
	}

	if len(obs.predictions) != 1 || obs.predictions[0] != (predictionEvent{metrics.OutcomeFound, 3}) {
		t.Errorf("observer = %+v", obs.predictions)
	}
}

func TestSuggest_LogRequestsOptIn(t *testing.T) {
	store := &mockStore{}
	s := buildSuggester(t, store, nil)
	s.LogRequests(true)

	if _, err := s.Suggest(context.Background(), workedExample(t)); err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d suggestions, want 1", len(store.saved))
	}
	var logged notes.HintRequest
	if err := json.Unmarshal([]byte(store.saved[0].RequestJSON), &logged); err != nil {
		t.Fatalf("decoding logged request: %v", err)
	}
	if logged.CurrentTime != "2025-06-25 10:00" || len(logged.Context) != len(workedExample(t).Context) {
		t.Errorf("logged request = %+v", logged)
	}
}

func TestSuggest_NoPattern(t *testing.T) {
	store := &mockStore{}
	obs := &mockObserver{}
	s := buildSuggester(t, store, obs)

	resp, err := s.Suggest(context.Background(), notes.HintRequest{CurrentTime: "2025-06-25 10:00"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if resp.Note != nil || resp.Meta != nil {
		t.Errorf("expected no note, got %+v", resp)
	}
	if resp.HintText != hint.DefaultPhrasebook().NoSuggestion {
		t.Errorf("HintText = %q", resp.HintText)
	}
	if len(store.saved) != 1 || store.saved[0].Found {
		t.Errorf("empty result should still be logged: %+v", store.saved)
	}
	if obs.predictions[0].outcome != metrics.OutcomeNone {
		t.Errorf("outcome = %s, want none", obs.predictions[0].outcome)
	}
}

func TestSuggest_MalformedInput(t *testing.T) {
	store := &mockStore{}
	obs := &mockObserver{}
	s := buildSuggester(t, store, obs)

	_, err := s.Suggest(context.Background(), notes.HintRequest{CurrentTime: "25.06.2025"})
	var merr *notes.MalformedInputError
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want *MalformedInputError", err)
	}
	if merr.Field != "current_time" {
		t.Errorf("Field = %q", merr.Field)
	}
	if len(store.saved) != 0 {
		t.Error("invalid requests must not be logged")
	}
	if obs.predictions[0].outcome != metrics.OutcomeInvalid {
		t.Errorf("outcome = %s, want invalid", obs.predictions[0].outcome)
	}
}

func TestSuggest_StoreFailureDegrades(t *testing.T) {
	store := &mockStore{saveErr: errors.New("database is locked")}
	s := buildSuggester(t, store, nil)

	resp, err := s.Suggest(context.Background(), workedExample(t))
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if resp.ID != "" {
		t.Errorf("ID = %q, want empty when logging fails", resp.ID)
	}
	if resp.Note == nil {
		t.Error("prediction lost on store failure")
	}
}

func TestSuggest_NoStore(t *testing.T) {
	s := buildSuggester(t, nil, nil)

	resp, err := s.Suggest(context.Background(), workedExample(t))
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if resp.ID != "" {
		t.Errorf("ID = %q without a store", resp.ID)
	}
	if err := s.Feedback(context.Background(), "sg-1", true); !errors.Is(err, ErrNoStore) {
		t.Errorf("Feedback without store = %v, want ErrNoStore", err)
	}
}

func TestSuggest_CancelledContext(t *testing.T) {
	s := buildSuggester(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Suggest(ctx, workedExample(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFeedback(t *testing.T) {
	store := &mockStore{}
	obs := &mockObserver{}
	s := buildSuggester(t, store, obs)

	resp, err := s.Suggest(context.Background(), workedExample(t))
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if err := s.Feedback(context.Background(), resp.ID, true); err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if !store.feedback[resp.ID] {
		t.Error("feedback not stored")
	}
	if len(obs.feedback) != 1 || !obs.feedback[0] {
		t.Errorf("observer feedback = %v", obs.feedback)
	}

	if err := s.Feedback(context.Background(), "unknown", false); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Feedback(unknown) = %v, want ErrNotFound", err)
	}
	if len(obs.feedback) != 1 {
		t.Error("failed feedback must not be counted")
	}
}

func TestSuggestBatch(t *testing.T) {
	s := buildSuggester(t, nil, nil)
	good := workedExample(t)
	reqs := []notes.HintRequest{
		good,
		{CurrentTime: "not a time"},
		{CurrentTime: "2025-06-25 10:00"},
		good,
	}

	results := s.SuggestBatch(context.Background(), reqs, 2)
	if len(results) != len(reqs) {
		t.Fatalf("got %d results, want %d", len(results), len(reqs))
	}

	if results[0].Err != nil || results[0].Response == nil || results[0].Response.Note == nil {
		t.Errorf("result 0 = %+v", results[0])
	}
	if !errors.Is(results[1].Err, notes.ErrMalformedInput) || results[1].Response != nil {
		t.Errorf("result 1 = %+v, want malformed input", results[1])
	}
	if results[2].Err != nil || results[2].Response.Note != nil {
		t.Errorf("result 2 = %+v, want empty prediction", results[2])
	}
	if results[3].Response == nil || results[3].Response.HintText != results[0].Response.HintText {
		t.Errorf("identical requests produced different hints")
	}
}
