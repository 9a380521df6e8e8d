package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

// GenerateOptions are the sampling parameters for one model call.
type GenerateOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	NumPredict  int
	Thinking    bool
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Thinking string `json:"thinking,omitempty"`
}

// Client is a blocking Ollama /api/generate client.
type Client struct {
	baseURL string
	model   string
	http    *xhttp.Client
	logger  *applogger.Logger
}

// NewClient creates an Ollama client. timeout bounds the whole request;
// callers narrow it further per call via context deadlines.
func NewClient(baseURL, model string, timeout time.Duration, logger *applogger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		logger:  logger,
	}
}

func (c *Client) Model() string { return c.model }

// Generate runs one completion and returns the raw model text. Some
// models put their answer in the thinking field with an empty response;
// that text is used when it contains a JSON object.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	options := map[string]interface{}{
		"temperature": opts.Temperature,
		"top_p":       opts.TopP,
		"num_predict": opts.NumPredict,
	}
	if opts.TopK > 0 {
		options["top_k"] = opts.TopK
	}
	if !opts.Thinking {
		options["min_p"] = 0
		options["enable_thinking"] = false
	}

	req := &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/api/generate",
		Body: generateRequest{
			Model:   c.model,
			Prompt:  prompt,
			Stream:  false,
			Options: options,
		},
	}

	var out generateResponse
	if err := c.http.SendAndParse(ctx, req, &out); err != nil {
		return "", classifyCallError(err)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		thinking := strings.TrimSpace(out.Thinking)
		if strings.Contains(thinking, "{") {
			c.logger.Debug("using thinking field as model output")
			text = thinking
		}
	}
	if text == "" {
		return "", models.NewAnalysisError(models.AnalysisMalformed, fmt.Errorf("empty model response"))
	}
	return text, nil
}

func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewAnalysisError(models.AnalysisTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return models.NewAnalysisError(models.AnalysisTimeout, err)
	}
	return models.NewAnalysisError(models.AnalysisUnavailable, err)
}
