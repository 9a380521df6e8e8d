package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Fed Wire</title>
    <item>
      <title>Fed signals rate cut</title>
      <link>https://news.example/fed-rate-cut</link>
      <guid>fed-2025-06-01</guid>
      <pubDate>Sun, 01 Jun 2025 13:00:00 +0000</pubDate>
      <description>&lt;p&gt;The central bank hinted at easing in &lt;b&gt;September&lt;/b&gt;.&lt;/p&gt;</description>
    </item>
    <item>
      <title></title>
      <link>https://news.example/empty</link>
      <description></description>
    </item>
  </channel>
</rss>`

func TestRSSFetchParsesFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	t.Cleanup(srv.Close)

	src := NewRSSSource(map[string]string{"fed": srv.URL}, 5, 2*time.Second, testLogger(t))
	posts, err := src.Fetch(context.Background(), "fed")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("empty item must be skipped, got %d posts", len(posts))
	}
	p := posts[0]
	if p.Platform != models.PlatformRSS {
		t.Fatalf("platform = %q", p.Platform)
	}
	if p.Account != "fed" {
		t.Fatalf("account = %q", p.Account)
	}
	want := "Fed signals rate cut. The central bank hinted at easing in September."
	if p.Text != want {
		t.Fatalf("text = %q, want %q", p.Text, want)
	}
	if !p.CreatedAt.Equal(time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("created = %v", p.CreatedAt)
	}
}

func TestRSSItemIDStable(t *testing.T) {
	item := rssItem{GUID: "fed-2025-06-01", Link: "https://news.example/a"}
	if itemID("fed", item) != itemID("fed", item) {
		t.Fatalf("item id must be deterministic")
	}
	other := rssItem{GUID: "fed-2025-06-02"}
	if itemID("fed", item) == itemID("fed", other) {
		t.Fatalf("distinct guids must hash differently")
	}
	noGUID := rssItem{Link: "https://news.example/a"}
	if itemID("fed", noGUID) == "" {
		t.Fatalf("link fallback must produce an id")
	}
}

func TestRSSUnknownFeed(t *testing.T) {
	src := NewRSSSource(map[string]string{"fed": "https://unused.example"}, 5, time.Second, testLogger(t))
	if _, err := src.Fetch(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for unknown label")
	}
}

func TestRSSLabels(t *testing.T) {
	src := NewRSSSource(map[string]string{"fed": "u1", "treasury": "u2"}, 5, time.Second, testLogger(t))
	labels := src.Labels()
	sort.Strings(labels)
	if len(labels) != 2 || labels[0] != "fed" || labels[1] != "treasury" {
		t.Fatalf("labels = %v", labels)
	}
}
