package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
)

func mastodonServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	lookups := new(int)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accounts/lookup", func(w http.ResponseWriter, r *http.Request) {
		*lookups++
		if r.URL.Query().Get("acct") != "realDonaldTrump" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "107780257626128497", "username": "realDonaldTrump"})
	})
	mux.HandleFunc("/api/v1/accounts/107780257626128497/statuses", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"id":         "555001",
				"content":    "<p>Massive new tariffs<br>coming very soon!</p>",
				"created_at": "2025-06-01T15:04:05.000Z",
				"url":        "https://truthsocial.com/@realDonaldTrump/555001",
				"media_attachments": []map[string]string{
					{"type": "image", "url": "https://cdn.example/img.jpg"},
				},
			},
			{
				"id":         "555000",
				"content":    "",
				"created_at": "2025-06-01T14:00:00.000Z",
				"url":        "https://truthsocial.com/@realDonaldTrump/555000",
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, lookups
}

func newMastodon(t *testing.T, base string) *MastodonSource {
	t.Helper()
	return NewMastodonSource(models.PlatformTruthSocial, base, 5, 600, 2*time.Second, ratelimit.New(), testLogger(t))
}

func TestMastodonFetchStripsContent(t *testing.T) {
	srv, _ := mastodonServer(t)
	src := newMastodon(t, srv.URL)

	posts, err := src.Fetch(context.Background(), "realDonaldTrump")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("empty status must be skipped, got %d posts", len(posts))
	}
	p := posts[0]
	if p.Text != "Massive new tariffs coming very soon!" {
		t.Fatalf("text = %q", p.Text)
	}
	if p.Platform != models.PlatformTruthSocial {
		t.Fatalf("platform = %q", p.Platform)
	}
	if len(p.Media) != 1 || p.Media[0].URL != "https://cdn.example/img.jpg" {
		t.Fatalf("media = %+v", p.Media)
	}
	want := time.Date(2025, 6, 1, 15, 4, 5, 0, time.UTC)
	if !p.CreatedAt.UTC().Equal(want) {
		t.Fatalf("created = %v, want %v", p.CreatedAt, want)
	}
}

func TestMastodonCachesAccountID(t *testing.T) {
	srv, lookups := mastodonServer(t)
	src := newMastodon(t, srv.URL)
	ctx := context.Background()

	if _, err := src.Fetch(ctx, "realDonaldTrump"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := src.Fetch(ctx, "realDonaldTrump"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if *lookups != 1 {
		t.Fatalf("expected 1 account lookup, got %d", *lookups)
	}
}

func TestMastodonRateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	src := newMastodon(t, srv.URL)
	_, err := src.Fetch(context.Background(), "realDonaldTrump")
	var fe *models.FetchError
	if !errors.As(err, &fe) || fe.Kind != models.FetchRateLimited {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}
