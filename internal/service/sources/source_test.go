package sources

import (
	"errors"
	"testing"

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

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		code int
		body string
		want models.FetchErrorKind
		ok   bool
	}{
		{code: 429, want: models.FetchRateLimited},
		{code: 403, want: models.FetchBlocked},
		{code: 401, want: models.FetchBlocked},
		{code: 503, want: models.FetchTransient},
		{code: 404, want: models.FetchTransient},
		{code: 200, body: "<html>Making sure you're not a bot</html>", want: models.FetchBlocked},
		{code: 200, body: "Just a moment...", want: models.FetchBlocked},
		{code: 200, body: "<html>timeline</html>", ok: true},
	}
	for _, tc := range cases {
		got := classifyStatus(models.PlatformX, tc.code, tc.body)
		if tc.ok {
			if got != nil {
				t.Fatalf("status %d: expected nil, got %v", tc.code, got)
			}
			continue
		}
		if got == nil || got.Kind != tc.want {
			t.Fatalf("status %d: got %v, want kind %v", tc.code, got, tc.want)
		}
	}
}

func TestWorseOfKeepsMostSevere(t *testing.T) {
	transient := models.NewFetchError(models.FetchTransient, models.PlatformX, errors.New("t"))
	limited := models.NewFetchError(models.FetchRateLimited, models.PlatformX, errors.New("r"))
	blocked := models.NewFetchError(models.FetchBlocked, models.PlatformX, errors.New("b"))

	if got := worseOf(transient, blocked); got.Kind != models.FetchBlocked {
		t.Fatalf("got %v", got.Kind)
	}
	if got := worseOf(blocked, limited); got.Kind != models.FetchBlocked {
		t.Fatalf("got %v", got.Kind)
	}
	if got := worseOf(nil, limited); got.Kind != models.FetchRateLimited {
		t.Fatalf("got %v", got.Kind)
	}
	if got := worseOf(transient, nil); got.Kind != models.FetchTransient {
		t.Fatalf("got %v", got.Kind)
	}
}

func TestRotationStableOrder(t *testing.T) {
	rot := newRotation([]string{"a.example", "b.example", "c.example"})
	order := rot.order()
	if len(order) != 3 {
		t.Fatalf("unexpected order %v", order)
	}
	for i := 0; i < 6; i++ {
		if got := rot.next(); got != order[i%3] {
			t.Fatalf("cursor %d: got %q, want %q", i, got, order[i%3])
		}
	}
}

func TestEnsureScheme(t *testing.T) {
	cases := map[string]string{
		"nitter.net":            "https://nitter.net",
		"nitter.net/":           "https://nitter.net",
		"http://localhost:8081": "http://localhost:8081",
		"https://x.example/":    "https://x.example",
	}
	for in, want := range cases {
		if got := ensureScheme(in); got != want {
			t.Fatalf("ensureScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	cases := map[string]string{
		"<p>Big tariff news<br>coming Monday</p>":        "Big tariff news coming Monday",
		"plain   text  already":                          "plain text already",
		`<a href="https://x.com">link label</a> trailer`: "link label trailer",
		"":                                               "",
	}
	for in, want := range cases {
		if got := StripHTML(in); got != want {
			t.Fatalf("StripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}
