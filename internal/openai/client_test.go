package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finbuddy/internal/core"
)

func testContext() core.AnalysisContext {
	return core.AnalysisContext{
		TotalSpending: core.Money{Cents: 6430},
		TopCategories: []core.CategoryTotal{
			{Category: core.CategoryFood, Total: core.Money{Cents: 5230}},
		},
		Deltas: []core.CategoryDelta{
			{Category: core.CategoryFood, DeltaPct: 0.25},
		},
		RecurringMerchants: []string{"Netflix"},
		PeriodStart:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:          time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		PreviousSpending:   core.Money{Cents: 5144},
	}
}

func chatReply(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

const validContent = `{"summary":"Steady week.","insights":["Food leads"],"recommendations":["Cook more"],"tone":"neutral"}`

func TestGenerateInsights(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		requests = append(requests, req.Messages[len(req.Messages)-1].Content)
		w.Write([]byte(chatReply(validContent)))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", APIURL: srv.URL})
	got, err := c.GenerateInsights(context.Background(), testContext())
	if err != nil {
		t.Fatalf("GenerateInsights() error = %v", err)
	}
	if got.Summary != "Steady week." || got.Tone != core.ToneNeutral {
		t.Errorf("result = %+v", got)
	}
	if len(requests) != 1 {
		t.Fatalf("made %d requests, want 1", len(requests))
	}
	prompt := requests[0]
	for _, want := range []string{
		"TOTAL SPENDING: $64.30",
		"• Food: $52.30",
		"• Food: +25%",
		"Netflix",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateInsightsRetriesWithSchemaHint(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req.Messages[len(req.Messages)-1].Content)
		if len(requests) == 1 {
			w.Write([]byte(chatReply(`{"summary":"missing the rest"}`)))
			return
		}
		w.Write([]byte(chatReply(validContent)))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", APIURL: srv.URL})
	got, err := c.GenerateInsights(context.Background(), testContext())
	if err != nil {
		t.Fatalf("GenerateInsights() error = %v", err)
	}
	if got.Summary != "Steady week." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if len(requests) != 2 {
		t.Fatalf("made %d requests, want 2", len(requests))
	}
	if !strings.Contains(requests[1], strictSchemaHint) {
		t.Errorf("retry prompt missing schema hint:\n%s", requests[1])
	}
	if strings.Contains(requests[0], strictSchemaHint) {
		t.Error("first prompt already contained schema hint")
	}
}

func TestGenerateInsightsTwoInvalidRepliesFail(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(chatReply("not json at all")))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", APIURL: srv.URL})
	_, err := c.GenerateInsights(context.Background(), testContext())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2 (one retry only)", calls)
	}
}

func TestGenerateInsightsRetriesAfterServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream overloaded", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(chatReply(validContent)))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", APIURL: srv.URL})
	got, err := c.GenerateInsights(context.Background(), testContext())
	if err != nil {
		t.Fatalf("GenerateInsights() error = %v", err)
	}
	if got.Summary != "Steady week." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2", calls)
	}
}

func TestGenerateInsightsMissingKey(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL})
	_, err := c.GenerateInsights(context.Background(), testContext())
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
	if calls != 0 {
		t.Errorf("made %d requests with no key, want 0", calls)
	}
}

func TestBuildAnalysisPromptNoRecurring(t *testing.T) {
	ac := testContext()
	ac.RecurringMerchants = nil
	prompt := buildAnalysisPrompt(ac)
	if !strings.Contains(prompt, "None detected") {
		t.Errorf("prompt missing empty-recurring marker:\n%s", prompt)
	}
}
