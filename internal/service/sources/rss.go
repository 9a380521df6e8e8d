package sources

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// RSSSource treats each configured feed as an "account": Fetch is
// called with the feed label and reads its latest items.
type RSSSource struct {
	feeds     map[string]string
	client    *xhttp.Client
	postLimit int
	logger    *applogger.Logger
}

func NewRSSSource(feeds map[string]string, postLimit int, timeout time.Duration, logger *applogger.Logger) *RSSSource {
	if postLimit <= 0 {
		postLimit = defaultPostLimit
	}
	return &RSSSource{
		feeds:     feeds,
		client:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		postLimit: postLimit,
		logger:    logger,
	}
}

func (s *RSSSource) Platform() models.Platform { return models.PlatformRSS }

// Labels returns the configured feed labels.
func (s *RSSSource) Labels() []string {
	out := make([]string, 0, len(s.feeds))
	for label := range s.feeds {
		out = append(out, label)
	}
	return out
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
}

var rssDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

func (s *RSSSource) Fetch(ctx context.Context, label string) ([]*models.Post, error) {
	feedURL, ok := s.feeds[label]
	if !ok {
		return nil, models.NewFetchError(models.FetchTransient, models.PlatformRSS, fmt.Errorf("unknown feed %q", label))
	}

	resp, err := s.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     feedURL,
		Headers: map[string]string{"User-Agent": browserUserAgent},
	})
	if err != nil {
		return nil, models.NewFetchError(models.FetchTransient, models.PlatformRSS, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := peekBody(resp.Body)
		if ferr := classifyStatus(models.PlatformRSS, resp.StatusCode, body); ferr != nil {
			return nil, ferr
		}
		return nil, models.NewFetchError(models.FetchTransient, models.PlatformRSS, fmt.Errorf("status %d", resp.StatusCode))
	}

	var doc rssDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, models.NewFetchError(models.FetchTransient, models.PlatformRSS, fmt.Errorf("decode feed: %w", err))
	}

	posts := make([]*models.Post, 0, s.postLimit)
	for _, item := range doc.Channel.Items {
		if len(posts) >= s.postLimit {
			break
		}
		text := normalizeSpace(item.Title)
		if desc := StripHTML(item.Description); desc != "" {
			if text != "" {
				text += ". "
			}
			text += desc
		}
		if text == "" {
			continue
		}
		posts = append(posts, &models.Post{
			Platform:  models.PlatformRSS,
			Account:   label,
			ID:        itemID(label, item),
			Text:      text,
			URL:       item.Link,
			CreatedAt: parseRSSDate(item.PubDate),
		})
	}
	return posts, nil
}

// itemID builds a stable identity from the GUID when present, falling
// back to a hash of the link/title.
func itemID(label string, item rssItem) string {
	base := item.GUID
	if base == "" {
		base = item.Link
	}
	if base == "" {
		base = item.Title
	}
	sum := sha1.Sum([]byte(base))
	return fmt.Sprintf("%s_%s", label, hex.EncodeToString(sum[:8]))
}

func parseRSSDate(s string) time.Time {
	for _, layout := range rssDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
