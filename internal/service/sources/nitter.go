package sources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"

	"github.com/PuerkitoBio/goquery"
)

var statusLinkRe = regexp.MustCompile(`/status/(\d+)`)

// nitterDateLayouts cover the timeline title attribute formats across
// instance versions.
var nitterDateLayouts = []string{
	"Jan 2, 2006 · 3:04 PM MST",
	"Jan 2, 2006 · 15:04 MST",
	"2/1/2006, 15:04:05",
}

// NitterSource fetches X timelines through a rotating set of Nitter
// mirror instances.
type NitterSource struct {
	rot        *rotation
	client     *xhttp.Client
	limiter    *ratelimit.Limiter
	postLimit  int
	ratePerMin float64
	logger     *applogger.Logger
}

func NewNitterSource(instances []string, postLimit, ratePerMin int, timeout time.Duration, limiter *ratelimit.Limiter, logger *applogger.Logger) *NitterSource {
	if postLimit <= 0 {
		postLimit = defaultPostLimit
	}
	if ratePerMin <= 0 {
		ratePerMin = 30
	}
	return &NitterSource{
		rot:        newRotation(instances),
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter:    limiter,
		postLimit:  postLimit,
		ratePerMin: float64(ratePerMin),
		logger:     logger,
	}
}

func (s *NitterSource) Platform() models.Platform { return models.PlatformX }

// Instances returns the rotation order, fixed since construction.
func (s *NitterSource) Instances() []string { return s.rot.order() }

// Fetch walks the instance rotation until one mirror serves the
// account's timeline. After every instance has failed, the most severe
// error surfaces so the scheduler can pick a backoff.
func (s *NitterSource) Fetch(ctx context.Context, account string) ([]*models.Post, error) {
	var worst *models.FetchError

	for i := 0; i < s.rot.size(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, models.NewFetchError(models.FetchTransient, models.PlatformX, err)
		}
		instance := s.rot.next()
		posts, ferr := s.fetchFrom(ctx, instance, account)
		if ferr == nil {
			return posts, nil
		}
		s.logger.Warn("nitter instance failed",
			applogger.String("instance", instance),
			applogger.String("account", account),
			applogger.String("kind", ferr.Kind.String()),
			applogger.Error(ferr.Err))
		worst = worseOf(worst, ferr)
	}

	if worst == nil {
		worst = models.NewFetchError(models.FetchTransient, models.PlatformX, fmt.Errorf("no instances configured"))
	}
	return nil, worst
}

// fetchFrom tries one instance, retrying transient failures a couple of
// times before giving up on it. Blocked and rate-limited answers rotate
// immediately.
func (s *NitterSource) fetchFrom(ctx context.Context, instance, account string) ([]*models.Post, *models.FetchError) {
	if !s.limiter.Allow("nitter:"+instance, s.ratePerMin, s.ratePerMin/60) {
		return nil, models.NewFetchError(models.FetchTransient, models.PlatformX, fmt.Errorf("instance request budget exhausted"))
	}

	url := ensureScheme(instance) + "/" + account
	var last *models.FetchError

	for attempt := 0; attempt <= transientRetries; attempt++ {
		resp, err := s.client.SendRequest(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     url,
			Headers: map[string]string{"User-Agent": browserUserAgent},
		})
		if err != nil {
			last = models.NewFetchError(models.FetchTransient, models.PlatformX, err)
			continue
		}

		body := peekBody(resp.Body)
		resp.Body.Close()

		if ferr := classifyStatus(models.PlatformX, resp.StatusCode, body); ferr != nil {
			if ferr.Kind != models.FetchTransient {
				return nil, ferr
			}
			last = ferr
			continue
		}

		posts, perr := s.parseTimeline(body, account)
		if perr != nil {
			last = models.NewFetchError(models.FetchTransient, models.PlatformX, perr)
			continue
		}
		return posts, nil
	}
	return nil, last
}

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

func (s *NitterSource) parseTimeline(body, account string) ([]*models.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse timeline: %w", err)
	}

	if msg := strings.TrimSpace(doc.Find(".error-panel").Text()); msg != "" {
		return nil, fmt.Errorf("instance error page: %s", msg)
	}

	posts := make([]*models.Post, 0, s.postLimit)
	seen := make(map[string]bool)

	doc.Find(".timeline-item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(posts) >= s.postLimit {
			return false
		}
		if sel.HasClass("show-more") {
			return true
		}

		link, _ := sel.Find("a.tweet-link").Attr("href")
		id := statusID(link)
		if id == "" || seen[id] {
			return true
		}

		text := normalizeSpace(sel.Find(".tweet-content").Text())
		if text == "" {
			return true
		}

		created := time.Now().UTC()
		if title, ok := sel.Find(".tweet-date a").Attr("title"); ok {
			if t, ok := parseNitterDate(title); ok {
				created = t
			}
		}

		seen[id] = true
		posts = append(posts, &models.Post{
			Platform:  models.PlatformX,
			Account:   account,
			ID:        id,
			Text:      text,
			URL:       fmt.Sprintf("https://x.com/%s/status/%s", account, id),
			CreatedAt: created,
		})
		return true
	})

	return posts, nil
}

func statusID(link string) string {
	m := statusLinkRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

func parseNitterDate(s string) (time.Time, bool) {
	for _, layout := range nitterDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
