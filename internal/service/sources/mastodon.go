package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"
)

// MastodonSource fetches accounts through the Mastodon-compatible API
// that Truth Social exposes: account lookup once, then statuses.
type MastodonSource struct {
	platform   models.Platform
	base       string
	client     *xhttp.Client
	limiter    *ratelimit.Limiter
	postLimit  int
	ratePerMin float64
	logger     *applogger.Logger

	mu         sync.Mutex
	accountIDs map[string]string
}

func NewMastodonSource(platform models.Platform, instance string, postLimit, ratePerMin int, timeout time.Duration, limiter *ratelimit.Limiter, logger *applogger.Logger) *MastodonSource {
	if postLimit <= 0 {
		postLimit = defaultPostLimit
	}
	if ratePerMin <= 0 {
		ratePerMin = 30
	}
	return &MastodonSource{
		platform:   platform,
		base:       ensureScheme(instance),
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter:    limiter,
		postLimit:  postLimit,
		ratePerMin: float64(ratePerMin),
		logger:     logger,
		accountIDs: make(map[string]string),
	}
}

func (s *MastodonSource) Platform() models.Platform { return s.platform }

type mastodonAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type mastodonAttachment struct {
	Type       string `json:"type"`
	URL        string `json:"url"`
	PreviewURL string `json:"preview_url"`
}

type mastodonStatus struct {
	ID          string               `json:"id"`
	Content     string               `json:"content"`
	CreatedAt   string               `json:"created_at"`
	URL         string               `json:"url"`
	Attachments []mastodonAttachment `json:"media_attachments"`
}

// Fetch resolves the account ID (cached after the first call) and pulls
// its latest statuses.
func (s *MastodonSource) Fetch(ctx context.Context, account string) ([]*models.Post, error) {
	if !s.limiter.Allow("mastodon:"+s.base, s.ratePerMin, s.ratePerMin/60) {
		return nil, models.NewFetchError(models.FetchTransient, s.platform, fmt.Errorf("instance request budget exhausted"))
	}

	id, ferr := s.accountID(ctx, account)
	if ferr != nil {
		return nil, ferr
	}

	statusesURL := fmt.Sprintf("%s/api/v1/accounts/%s/statuses?limit=%d&exclude_replies=true", s.base, id, s.postLimit)
	var statuses []mastodonStatus
	if ferr := s.getJSON(ctx, statusesURL, &statuses); ferr != nil {
		return nil, ferr
	}

	posts := make([]*models.Post, 0, len(statuses))
	for _, st := range statuses {
		text := StripHTML(st.Content)
		media := make([]models.Media, 0, len(st.Attachments))
		for _, att := range st.Attachments {
			u := att.URL
			if u == "" {
				u = att.PreviewURL
			}
			if u != "" {
				media = append(media, models.Media{Type: att.Type, URL: u})
			}
		}
		if text == "" && len(media) == 0 {
			continue
		}
		posts = append(posts, &models.Post{
			Platform:  s.platform,
			Account:   account,
			ID:        st.ID,
			Text:      text,
			URL:       st.URL,
			CreatedAt: util.ParseTimeDefault(st.CreatedAt, time.Now().UTC()),
			Media:     media,
		})
	}
	return posts, nil
}

func (s *MastodonSource) accountID(ctx context.Context, account string) (string, *models.FetchError) {
	s.mu.Lock()
	if id, ok := s.accountIDs[account]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	lookupURL := fmt.Sprintf("%s/api/v1/accounts/lookup?acct=%s", s.base, url.QueryEscape(account))
	var acc mastodonAccount
	if ferr := s.getJSON(ctx, lookupURL, &acc); ferr != nil {
		return "", ferr
	}
	if acc.ID == "" {
		return "", models.NewFetchError(models.FetchTransient, s.platform, fmt.Errorf("account %q not found", account))
	}

	s.mu.Lock()
	s.accountIDs[account] = acc.ID
	s.mu.Unlock()
	return acc.ID, nil
}

func (s *MastodonSource) getJSON(ctx context.Context, rawURL string, dest interface{}) *models.FetchError {
	resp, err := s.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     rawURL,
		Headers: map[string]string{"User-Agent": browserUserAgent, "Accept": "application/json"},
	})
	if err != nil {
		return models.NewFetchError(models.FetchTransient, s.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := peekBody(resp.Body)
		if ferr := classifyStatus(s.platform, resp.StatusCode, body); ferr != nil {
			return ferr
		}
		return models.NewFetchError(models.FetchTransient, s.platform, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return models.NewFetchError(models.FetchTransient, s.platform, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
