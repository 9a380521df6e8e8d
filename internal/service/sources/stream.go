package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/gorilla/websocket"
)

// StreamClient implements a SocialStream over the Mastodon-compatible
// streaming WebSocket, pushing live statuses between polling cycles.
type StreamClient struct {
	wsURL          string
	accessToken    string
	reconnectDelay time.Duration
	logger         *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// NewStreamClient creates a streaming watcher for the given WS endpoint.
func NewStreamClient(wsURL, accessToken string, reconnectDelay time.Duration, logger *applogger.Logger) drepo.SocialStream {
	return &StreamClient{
		wsURL:          wsURL,
		accessToken:    accessToken,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Connect establishes the WebSocket connection on the user stream.
func (c *StreamClient) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?stream=user", c.wsURL)
	if c.accessToken != "" {
		u += "&access_token=" + url.QueryEscape(c.accessToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Info("social stream connected")
	return nil
}

type streamEvent struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// Read streams posts and errors. Non-update frames are skipped; posts
// are dropped on backpressure rather than stalling the socket.
func (c *StreamClient) Read(ctx context.Context) (<-chan *models.Post, <-chan error) {
	posts := make(chan *models.Post, 256)
	errs := make(chan error, 1)

	go func() {
		defer close(posts)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var ev streamEvent
				if err := json.Unmarshal(b, &ev); err != nil {
					continue
				}
				if ev.Event != "update" {
					continue
				}
				post, ok := decodeStreamStatus(ev.Payload)
				if !ok {
					continue
				}
				select {
				case posts <- post:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return posts, errs
}

// decodeStreamStatus turns an update payload (a JSON-encoded status
// string) into a Post.
func decodeStreamStatus(payload string) (*models.Post, bool) {
	var st struct {
		ID        string `json:"id"`
		Content   string `json:"content"`
		CreatedAt string `json:"created_at"`
		URL       string `json:"url"`
		Account   struct {
			Acct string `json:"acct"`
		} `json:"account"`
	}
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return nil, false
	}
	text := StripHTML(st.Content)
	if st.ID == "" || text == "" {
		return nil, false
	}
	return &models.Post{
		Platform:  models.PlatformTruthSocial,
		Account:   st.Account.Acct,
		ID:        st.ID,
		Text:      text,
		URL:       st.URL,
		CreatedAt: util.ParseTimeDefault(st.CreatedAt, time.Now().UTC()),
	}, true
}

// Reconnect closes and reconnects after the configured delay.
func (c *StreamClient) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *StreamClient) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *StreamClient) IsConnected() bool { return c.connected }
