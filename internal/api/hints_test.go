package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/hintd/internal/engine"
	"github.com/kalambet/hintd/internal/hint"
	"github.com/kalambet/hintd/internal/metrics"
	"github.com/kalambet/hintd/internal/notes"
	"github.com/kalambet/hintd/internal/pipeline"
	"github.com/kalambet/hintd/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestSuggester(t *testing.T, store pipeline.SuggestionStore, obs metrics.Observer) *pipeline.Suggester {
	t.Helper()
	pb := hint.DefaultPhrasebook()
	f, err := hint.New(pb)
	if err != nil {
		t.Fatalf("hint.New: %v", err)
	}
	cfg := engine.DefaultConfig()
	cfg.Labels = pb.Labels()
	return pipeline.NewSuggester(engine.New(cfg), f, store, obs)
}

func workedExampleBody(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "engine", "testdata", "worked_example.json"))
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	return string(data)
}

func setupHintHandler(t *testing.T) (http.Handler, *storage.Store, *prometheus.Registry) {
	t.Helper()
	store := openTestStore(t)
	reg := prometheus.NewRegistry()
	obs, err := metrics.NewPrometheusObserver("hintd", reg)
	if err != nil {
		t.Fatalf("NewPrometheusObserver: %v", err)
	}
	h := NewHintHandler(HintDeps{
		Suggester: newTestSuggester(t, store, obs),
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	return h, store, reg
}

func postJSON(h http.Handler, url, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"status":"ok"}` {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestHint_WorkedExample(t *testing.T) {
	h, store, _ := setupHintHandler(t)

	rr := postJSON(h, "/entities/get_text_based_hint", workedExampleBody(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp notes.HintResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Note == nil {
		t.Fatal("note is null")
	}
	if resp.Note.Text != "Сделать покупки" || resp.Note.CategoryType != notes.CategoryShopping {
		t.Errorf("note = %+v", resp.Note)
	}
	if resp.Note.CreatedAt != "2025-06-25 10:00" || resp.Note.UpdatedAt != nil {
		t.Errorf("note timestamps = %q / %v", resp.Note.CreatedAt, resp.Note.UpdatedAt)
	}
	if len(resp.Note.Triggers) != 1 || resp.Note.Triggers[0].TriggerValue != "2025-06-25 17:20" {
		t.Errorf("triggers = %+v", resp.Note.Triggers)
	}
	if resp.HintText != "Вы обычно делаете покупки около 17:20. Напомнить через 7 часов?" {
		t.Errorf("hintText = %q", resp.HintText)
	}
	if resp.Meta == nil || resp.Meta.DeltaValue != 7 || resp.Meta.DeltaUnit != "hours" {
		t.Errorf("meta = %+v", resp.Meta)
	}

	if resp.ID == "" {
		t.Fatal("response has no suggestion id")
	}
	if _, err := store.GetSuggestion(resp.ID); err != nil {
		t.Errorf("suggestion %s not logged: %v", resp.ID, err)
	}
}

func TestHint_NullNoteWhenNothingFound(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	rr := postJSON(h, "/entities/get_text_based_hint", `{"context":[],"current_time":"2025-06-25 10:00"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if string(raw["note"]) != "null" {
		t.Errorf("note = %s, want null", raw["note"])
	}
	if _, ok := raw["meta"]; ok {
		t.Error("meta present for an empty prediction")
	}
}

func TestHint_Errors(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "invalid JSON",
			body:     `{"context":`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid request body",
		},
		{
			name:     "malformed current_time",
			body:     `{"context":[],"current_time":"yesterday"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  "current_time",
		},
		{
			name:     "missing text",
			body:     `{"context":[{"text":"","createdAt":"2025-06-11 09:00","categoryType":"Shopping","triggers":[{"triggerType":"Time","triggerValue":"2025-06-11 17:00"}]}],"current_time":"2025-06-25 10:00"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  "context[0].text",
		},
		{
			name:     "unparsable trigger",
			body:     `{"context":[{"text":"Купить молоко","createdAt":"2025-06-11 09:00","categoryType":"Shopping","triggers":[{"triggerType":"Time","triggerValue":"17:00"}]}],"current_time":"2025-06-25 10:00"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  "triggers[0].triggerValue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(h, "/entities/get_text_based_hint", tt.body)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			e := decodeError(t, rr)
			if e.Type != "invalid_request_error" {
				t.Errorf("type = %q", e.Type)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want it to mention %q", e.Message, tt.wantMsg)
			}
		})
	}
}

func TestHint_BodyTooLarge(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	big := fmt.Sprintf(`{"context":[],"current_time":"%s"}`, strings.Repeat("x", maxRequestBodySize))
	rr := postJSON(h, "/entities/get_text_based_hint", big)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHintBatch(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	body := fmt.Sprintf(`{"requests":[%s,{"context":[],"current_time":"bad"},{"context":[],"current_time":"2025-06-25 10:00"}]}`, workedExampleBody(t))
	rr := postJSON(h, "/v1/hints/batch", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var out batchResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(out.Results))
	}
	if out.Results[0].Response == nil || out.Results[0].Response.Note == nil {
		t.Errorf("result 0 = %+v", out.Results[0])
	}
	if out.Results[1].Error == nil || out.Results[1].Error.Type != "invalid_request_error" {
		t.Errorf("result 1 = %+v, want an invalid_request_error", out.Results[1])
	}
	if out.Results[2].Response == nil || out.Results[2].Response.Note != nil {
		t.Errorf("result 2 = %+v, want an empty prediction", out.Results[2])
	}
}

func TestHintBatch_Validation(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	items := make([]string, maxBatchSize+1)
	for i := range items {
		items[i] = `{"context":[],"current_time":"2025-06-25 10:00"}`
	}

	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"requests":[]}`},
		{"bad JSON", `{"requests":`},
		{"too many", `{"requests":[` + strings.Join(items, ",") + `]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(h, "/v1/hints/batch", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := setupHintHandler(t)

	postJSON(h, "/entities/get_text_based_hint", workedExampleBody(t))
	postJSON(h, "/entities/get_text_based_hint", `{"context":[],"current_time":"nope"}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`hintd_predictions_total{outcome="found"} 1`,
		`hintd_predictions_total{outcome="invalid"} 1`,
		"hintd_prediction_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
