package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

const (
	maxDescriptionLen = 600
	maxReasoningLen   = 500
	maxKeyEvents      = 3
)

// Embed colors per score band.
const (
	colorCritical = 0xFF0000 // >= 75
	colorHigh     = 0xFF8C00 // >= 50
	colorMedium   = 0xFFD700 // >= alert threshold
	colorLow      = 0x2ECC71
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	URL         string       `json:"url,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

// Notifier sends market-impact alerts as Discord webhook embeds.
// Delivery retries a bounded number of times with a fixed delay, then
// the alert is dropped with a logged error.
type Notifier struct {
	webhookURL string
	username   string
	maxRetries int
	retryDelay time.Duration
	client     *xhttp.Client
	logger     *applogger.Logger
}

func NewNotifier(webhookURL, username string, maxRetries int, retryDelay time.Duration, logger *applogger.Logger) *Notifier {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Notifier{
		webhookURL: webhookURL,
		username:   username,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		client:     xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		logger:     logger,
	}
}

// SendAlert dispatches one alert. The returned error means every
// attempt failed; callers log and move on, never retry a delivered
// alert.
func (n *Notifier) SendAlert(ctx context.Context, post *models.Post, lexical int, a *models.SemanticAnalysis) error {
	payload := webhookPayload{
		Username: n.username,
		Embeds:   []embed{n.buildEmbed(post, lexical, a)},
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(n.retryDelay):
			case <-ctx.Done():
				return fmt.Errorf("alert dispatch canceled: %w", ctx.Err())
			}
		}

		err := n.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    n.webhookURL,
			Body:   payload,
		}, nil)
		if err == nil {
			return nil
		}
		lastErr = err
		n.logger.Warn("alert delivery failed",
			applogger.Int("attempt", attempt),
			applogger.Int("max", n.maxRetries),
			applogger.Error(err))
	}
	return fmt.Errorf("alert dropped after %d attempts: %w", n.maxRetries, lastErr)
}

func (n *Notifier) buildEmbed(post *models.Post, lexical int, a *models.SemanticAnalysis) embed {
	desc := post.Text
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen] + "..."
	}

	fields := []embedField{}
	if a.Reasoning != "" {
		reasoning := a.Reasoning
		if len(reasoning) > maxReasoningLen {
			reasoning = reasoning[:maxReasoningLen] + "..."
		}
		fields = append(fields, embedField{Name: "Analysis", Value: reasoning})
	}
	fields = append(fields,
		embedField{Name: "Stocks", Value: a.Direction.Stocks, Inline: true},
		embedField{Name: "Crypto", Value: a.Direction.Crypto, Inline: true},
		embedField{Name: "USD", Value: a.Direction.Forex, Inline: true},
		embedField{Name: "Commodities", Value: a.Direction.Commodities, Inline: true},
		embedField{Name: "Urgency", Value: string(a.Urgency), Inline: true},
		embedField{Name: "Keyword Score", Value: fmt.Sprintf("%d", lexical), Inline: true},
	)
	if len(a.KeyEvents) > 0 {
		events := a.KeyEvents
		if len(events) > maxKeyEvents {
			events = events[:maxKeyEvents]
		}
		fields = append(fields, embedField{Name: "Key Events", Value: "- " + strings.Join(events, "\n- ")})
	}

	return embed{
		Title:       fmt.Sprintf("%s: Score %d", impactLevel(a.Score), a.Score),
		Description: fmt.Sprintf("**@%s** (%s)\n\n%s", post.Account, post.Platform, desc),
		Color:       scoreColor(a.Score),
		URL:         post.URL,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func impactLevel(score int) string {
	switch {
	case score >= 75:
		return "CRITICAL"
	case score >= 50:
		return "HIGH"
	case score >= 25:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func scoreColor(score int) int {
	switch {
	case score >= 75:
		return colorCritical
	case score >= 50:
		return colorHigh
	case score >= 25:
		return colorMedium
	default:
		return colorLow
	}
}
