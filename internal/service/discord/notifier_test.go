package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	applogger "MarketPulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	lgr, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return lgr
}

func samplePost() *models.Post {
	return &models.Post{
		Platform:  models.PlatformX,
		Account:   "whitehouse",
		ID:        "1001",
		Text:      "Announcing a sweeping new tariff on all imported steel effective Monday.",
		URL:       "https://x.com/whitehouse/status/1001",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleAnalysis(score int) *models.SemanticAnalysis {
	return &models.SemanticAnalysis{
		Score:     score,
		Reasoning: "Broad tariff with immediate supply chain impact.",
		Urgency:   models.UrgencyHours,
		Direction: models.MarketDirection{Stocks: "bearish", Crypto: "neutral", Forex: "usd_up", Commodities: "up"},
		KeyEvents: []string{"100% tariff on steel", "effective Monday"},
	}
}

func TestSendAlertDeliversEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(srv.URL, "MarketPulse", 3, time.Millisecond, testLogger(t))
	if err := n.SendAlert(context.Background(), samplePost(), 30, sampleAnalysis(80)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.Username != "MarketPulse" {
		t.Fatalf("username = %q", got.Username)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "CRITICAL: Score 80" {
		t.Fatalf("title = %q", e.Title)
	}
	if e.Color != colorCritical {
		t.Fatalf("color = %#x", e.Color)
	}
	if !strings.Contains(e.Description, "@whitehouse") {
		t.Fatalf("description = %q", e.Description)
	}
	if e.URL != "https://x.com/whitehouse/status/1001" {
		t.Fatalf("url = %q", e.URL)
	}
}

func TestSendAlertRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(srv.URL, "", 3, time.Millisecond, testLogger(t))
	if err := n.SendAlert(context.Background(), samplePost(), 30, sampleAnalysis(60)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSendAlertDropsAfterBudget(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	n := NewNotifier(srv.URL, "", 2, time.Millisecond, testLogger(t))
	err := n.SendAlert(context.Background(), samplePost(), 30, sampleAnalysis(60))
	if err == nil {
		t.Fatalf("expected error after budget")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestImpactLevels(t *testing.T) {
	cases := map[int]string{80: "CRITICAL", 75: "CRITICAL", 60: "HIGH", 30: "MEDIUM", 10: "LOW"}
	for score, want := range cases {
		if got := impactLevel(score); got != want {
			t.Fatalf("impactLevel(%d) = %q, want %q", score, got, want)
		}
	}
	if scoreColor(80) != colorCritical || scoreColor(60) != colorHigh || scoreColor(30) != colorMedium || scoreColor(10) != colorLow {
		t.Fatalf("score color bands wrong")
	}
}

func TestBuildEmbedTruncatesAndCapsEvents(t *testing.T) {
	n := NewNotifier("http://unused", "", 1, time.Millisecond, testLogger(t))
	post := samplePost()
	post.Text = strings.Repeat("tariff news ", 100)
	a := sampleAnalysis(80)
	a.KeyEvents = []string{"one", "two", "three", "four", "five"}

	e := n.buildEmbed(post, 30, a)
	if len(e.Description) > maxDescriptionLen+100 {
		t.Fatalf("description not truncated: %d bytes", len(e.Description))
	}
	var events string
	for _, f := range e.Fields {
		if f.Name == "Key Events" {
			events = f.Value
		}
	}
	if strings.Count(events, "- ") != maxKeyEvents {
		t.Fatalf("key events not capped: %q", events)
	}
}
