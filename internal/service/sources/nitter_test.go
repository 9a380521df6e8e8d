package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
)

const nitterTimelineHTML = `<html><body>
<div class="timeline">
  <div class="timeline-item">
    <a class="tweet-link" href="/whitehouse/status/1001#m"></a>
    <div class="tweet-content">Announcing a sweeping new tariff on all imported steel.</div>
    <span class="tweet-date"><a title="Jun 1, 2025 · 2:30 PM UTC">Jun 1</a></span>
  </div>
  <div class="timeline-item">
    <a class="tweet-link" href="/whitehouse/status/1001#m"></a>
    <div class="tweet-content">Duplicate of the pinned post above.</div>
  </div>
  <div class="timeline-item">
    <a class="tweet-link" href="/whitehouse/status/1002#m"></a>
    <div class="tweet-content">Trade talks resume next week in Geneva.</div>
    <span class="tweet-date"><a title="Jun 1, 2025 · 9:15 AM UTC">Jun 1</a></span>
  </div>
  <div class="timeline-item show-more"><a href="?cursor=x">Load more</a></div>
</div>
</body></html>`

func timelineServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nitterTimelineHTML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newNitter(t *testing.T, instances ...string) *NitterSource {
	t.Helper()
	return NewNitterSource(instances, 5, 600, 2*time.Second, ratelimit.New(), testLogger(t))
}

func TestNitterFetchParsesTimeline(t *testing.T) {
	srv := timelineServer(t)
	src := newNitter(t, srv.URL)

	posts, err := src.Fetch(context.Background(), "whitehouse")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts (duplicate collapsed), got %d", len(posts))
	}
	first := posts[0]
	if first.ID != "1001" {
		t.Fatalf("id = %q", first.ID)
	}
	if first.Platform != models.PlatformX {
		t.Fatalf("platform = %q", first.Platform)
	}
	if first.URL != "https://x.com/whitehouse/status/1001" {
		t.Fatalf("url = %q", first.URL)
	}
	if first.Text != "Announcing a sweeping new tariff on all imported steel." {
		t.Fatalf("text = %q", first.Text)
	}
	want := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Fatalf("created = %v, want %v", first.CreatedAt, want)
	}
}

func TestNitterRotatesPastFailingInstances(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(bad.Close)
	good := timelineServer(t)

	src := newNitter(t, bad.URL, good.URL)
	// Walk the rotation twice; whatever the shuffled order, the healthy
	// mirror must serve both fetches.
	for i := 0; i < 2; i++ {
		posts, err := src.Fetch(context.Background(), "whitehouse")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if len(posts) != 2 {
			t.Fatalf("fetch %d: got %d posts", i, len(posts))
		}
	}
}

func TestNitterSurfacesWorstError(t *testing.T) {
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(limited.Close)
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(blocked.Close)

	src := newNitter(t, limited.URL, blocked.URL)
	_, err := src.Fetch(context.Background(), "whitehouse")
	if err == nil {
		t.Fatalf("expected error")
	}
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *models.FetchError, got %T", err)
	}
	if fe.Kind != models.FetchBlocked {
		t.Fatalf("kind = %v, want blocked", fe.Kind)
	}
}

func TestNitterChallengePageIsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Making sure you're not a bot</html>"))
	}))
	t.Cleanup(srv.Close)

	src := newNitter(t, srv.URL)
	_, err := src.Fetch(context.Background(), "whitehouse")
	var fe *models.FetchError
	if !errors.As(err, &fe) || fe.Kind != models.FetchBlocked {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestNitterErrorPanelIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><div class="error-panel">Instance has been rate limited upstream</div></html>`))
	}))
	t.Cleanup(srv.Close)

	src := newNitter(t, srv.URL)
	_, err := src.Fetch(context.Background(), "whitehouse")
	var fe *models.FetchError
	if !errors.As(err, &fe) || fe.Kind != models.FetchTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestNitterPostLimit(t *testing.T) {
	srv := timelineServer(t)
	src := NewNitterSource([]string{srv.URL}, 1, 600, 2*time.Second, ratelimit.New(), testLogger(t))

	posts, err := src.Fetch(context.Background(), "whitehouse")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected post limit 1, got %d", len(posts))
	}
}
