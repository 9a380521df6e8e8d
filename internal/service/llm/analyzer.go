package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"MarketPulse/internal/domain/models"
	applogger "MarketPulse/pkg/logger"
)

// Sampling parameters per stage. Analysis runs cold and long for stable
// structured output; the review stage uses the model's non-thinking
// recommendations for a fast direct JSON answer.
var (
	analysisOpts = GenerateOptions{Temperature: 0.1, TopP: 0.9, NumPredict: 2000, Thinking: true}
	reviewOpts   = GenerateOptions{Temperature: 0.7, TopP: 0.8, TopK: 20, NumPredict: 800, Thinking: false}
)

const retryDelay = 2 * time.Second

// Analyzer is the two-stage semantic layer over one Ollama model:
// Analyze produces a validated market read, Review quality-checks it.
type Analyzer struct {
	client        *Client
	maxRetries    int
	reviewTimeout time.Duration
	logger        *applogger.Logger
}

func NewAnalyzer(client *Client, maxRetries int, reviewTimeout time.Duration, logger *applogger.Logger) *Analyzer {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Analyzer{
		client:        client,
		maxRetries:    maxRetries,
		reviewTimeout: reviewTimeout,
		logger:        logger,
	}
}

// analysisPayload is the model's wire format for the analysis stage.
type analysisPayload struct {
	Score          int                    `json:"score"`
	Reasoning      string                 `json:"reasoning"`
	Direction      models.MarketDirection `json:"market_direction"`
	KeyEvents      []string               `json:"key_events"`
	ImportantDates []string               `json:"important_dates"`
	Urgency        string                 `json:"urgency"`
}

// Analyze runs the market-impact analysis with a bounded retry loop.
// Malformed output is retried; after the budget the last error surfaces
// as a typed *models.AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*models.SemanticAnalysis, error) {
	prompt := buildAnalysisPrompt(text)

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		if attempt > 1 {
			a.logger.Info("retrying analysis",
				applogger.Int("attempt", attempt),
				applogger.Int("max", a.maxRetries))
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, models.NewAnalysisError(models.AnalysisTimeout, ctx.Err())
			}
		}

		raw, err := a.client.Generate(ctx, prompt, analysisOpts)
		if err != nil {
			lastErr = err
			continue
		}

		res, err := a.parseAnalysis(raw)
		if err != nil {
			a.logger.Warn("analysis output rejected",
				applogger.Int("attempt", attempt),
				applogger.Error(err))
			lastErr = err
			continue
		}
		return res, nil
	}

	var ae *models.AnalysisError
	if errors.As(lastErr, &ae) {
		return nil, lastErr
	}
	return nil, models.NewAnalysisError(models.AnalysisMalformed, lastErr)
}

func (a *Analyzer) parseAnalysis(raw string) (*models.SemanticAnalysis, error) {
	b, ok := ExtractJSON(raw)
	if !ok {
		return nil, models.NewAnalysisError(models.AnalysisMalformed, fmt.Errorf("no JSON object in model output"))
	}

	var p analysisPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, models.NewAnalysisError(models.AnalysisMalformed, fmt.Errorf("unmarshal analysis: %w", err))
	}

	urgency, ok := models.NormalizeUrgency(p.Urgency)
	if !ok {
		return nil, models.NewAnalysisError(models.AnalysisMalformed, fmt.Errorf("urgency %q not recognized", p.Urgency))
	}

	res := &models.SemanticAnalysis{
		Score:          p.Score,
		Reasoning:      strings.TrimSpace(p.Reasoning),
		Urgency:        urgency,
		Direction:      p.Direction,
		KeyEvents:      p.KeyEvents,
		ImportantDates: p.ImportantDates,
		Model:          a.client.Model(),
	}
	if err := res.Validate(); err != nil {
		return nil, models.NewAnalysisError(models.AnalysisMalformed, err)
	}
	return res, nil
}

// Review runs the quality gate over an analysis. A single attempt with
// a short deadline; callers fail open when it errors.
func (a *Analyzer) Review(ctx context.Context, text string, analysis *models.SemanticAnalysis) (*models.QualityVerdict, error) {
	if a.reviewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.reviewTimeout)
		defer cancel()
	}

	raw, err := a.client.Generate(ctx, buildReviewPrompt(text, analysis), reviewOpts)
	if err != nil {
		return nil, err
	}

	b, ok := ExtractJSON(raw)
	if !ok {
		return nil, models.NewAnalysisError(models.AnalysisMalformed, fmt.Errorf("no JSON object in review output"))
	}

	var v models.QualityVerdict
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, models.NewAnalysisError(models.AnalysisMalformed, fmt.Errorf("unmarshal verdict: %w", err))
	}
	return &v, nil
}
