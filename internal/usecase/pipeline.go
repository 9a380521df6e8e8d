package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/lexical"
	applogger "MarketPulse/pkg/logger"
)

// PipelineConfig holds the scoring thresholds.
type PipelineConfig struct {
	AnalysisThreshold int
	AlertThreshold    int
	MinPostLength     int
}

// Pipeline runs one post through dedup, lexical scoring, semantic
// analysis, the quality gate, training recording, and alerting.
// Failures are scoped per post: a bad post never aborts its cycle.
type Pipeline struct {
	cfg      PipelineConfig
	scorer   *lexical.Scorer
	ledger   domrepo.Ledger
	analyzer domrepo.Analyzer
	store    domrepo.TrainingStore
	notifier domrepo.Notifier
	metrics  domrepo.Metrics
	logger   *applogger.Logger

	totalPosts  atomic.Int64
	totalAlerts atomic.Int64
}

func NewPipeline(
	cfg PipelineConfig,
	scorer *lexical.Scorer,
	ledger domrepo.Ledger,
	analyzer domrepo.Analyzer,
	store domrepo.TrainingStore,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
) *Pipeline {
	if cfg.MinPostLength <= 0 {
		cfg.MinPostLength = 20
	}
	return &Pipeline{
		cfg:      cfg,
		scorer:   scorer,
		ledger:   ledger,
		analyzer: analyzer,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Totals returns lifetime counts of new posts and dispatched alerts.
func (p *Pipeline) Totals() (posts, alerts int64) {
	return p.totalPosts.Load(), p.totalAlerts.Load()
}

// Process handles a single post. The bool result reports whether the
// post was new (passed the dedup check and was marked). A non-nil error
// means the ledger failed; the caller skips the post and carries on
// with the cycle.
func (p *Pipeline) Process(ctx context.Context, post *models.Post) (bool, error) {
	if len([]rune(post.Text)) < p.cfg.MinPostLength {
		p.logger.Debug("post too short, skipping", applogger.String("key", post.Key()))
		return false, nil
	}

	seen, err := p.ledger.Seen(ctx, post.Key())
	if err != nil {
		p.metrics.RecordError("ledger")
		return false, err
	}
	if seen {
		return false, nil
	}
	// The mark must land before any scoring: without it a crash could
	// double-alert the same post on restart.
	if err := p.ledger.MarkSeen(ctx, post.Key()); err != nil {
		p.metrics.RecordError("ledger")
		return false, err
	}

	p.totalPosts.Add(1)
	p.metrics.RecordPostProcessed(string(post.Platform))

	score := p.scorer.Score(post.Text)
	p.metrics.RecordLexicalScore(string(post.Platform), float64(score))
	p.logger.Info("post scored",
		applogger.String("key", post.Key()),
		applogger.String("account", post.Account),
		applogger.Int("lexical_score", score))

	if score < p.cfg.AnalysisThreshold {
		p.logger.Debug("below analysis threshold, skipped",
			applogger.String("key", post.Key()),
			applogger.Int("score", score),
			applogger.Int("threshold", p.cfg.AnalysisThreshold))
		return true, nil
	}

	start := time.Now()
	analysis, aerr := p.analyzer.Analyze(ctx, post.Text)
	p.metrics.RecordLatency("llm_analysis", time.Since(start).Seconds())
	if aerr != nil {
		p.logger.Error("analysis failed, dropping post",
			applogger.String("key", post.Key()),
			applogger.Error(aerr))
		p.metrics.RecordError("analysis_" + analysisKind(aerr))
		return true, nil
	}

	verdict := p.review(ctx, post.Text, analysis)
	patched := false
	if verdict != nil && !verdict.Approved {
		patched = p.applyFixes(post, analysis, verdict.Fixes)
	}

	shouldAlert := analysis.Score >= p.cfg.AlertThreshold

	rec := &models.TrainingRecord{
		Timestamp:    time.Now().UTC(),
		Platform:     post.Platform,
		Account:      post.Account,
		PostID:       post.ID,
		PostText:     post.Text,
		PostURL:      post.URL,
		LexicalScore: score,
		Analysis:     analysis,
		Verdict:      verdict,
		Patched:      patched,
		Alerted:      shouldAlert,
	}
	if err := p.store.Append(ctx, rec); err != nil {
		// Training data is best effort; the alert still goes out.
		p.logger.Error("training record append failed",
			applogger.String("key", post.Key()),
			applogger.Error(err))
		p.metrics.RecordError("training_append")
	}

	if shouldAlert && p.notifier != nil {
		if err := p.notifier.SendAlert(ctx, post, score, analysis); err != nil {
			p.logger.Error("alert dropped",
				applogger.String("key", post.Key()),
				applogger.Error(err))
			p.metrics.RecordError("alert_dropped")
		} else {
			p.totalAlerts.Add(1)
			p.metrics.RecordAlertSent(string(post.Platform))
		}
	}

	return true, nil
}

// review runs the quality gate. Any gate failure fails open: the
// original analysis is forwarded unmodified.
func (p *Pipeline) review(ctx context.Context, text string, analysis *models.SemanticAnalysis) *models.QualityVerdict {
	start := time.Now()
	verdict, err := p.analyzer.Review(ctx, text, analysis)
	p.metrics.RecordLatency("llm_review", time.Since(start).Seconds())
	if err != nil {
		p.logger.Warn("quality gate failed open", applogger.Error(err))
		p.metrics.RecordError("quality_gate")
		return nil
	}
	return verdict
}

// applyFixes patches the analysis with the reviewer's corrections, each
// field at most once. Invalid suggestions keep the original value. A
// rejection without fixes forwards the original (fail open).
func (p *Pipeline) applyFixes(post *models.Post, a *models.SemanticAnalysis, fixes *models.SuggestedFixes) bool {
	if fixes.Empty() {
		p.logger.Info("rejected without fixes, forwarding original",
			applogger.String("key", post.Key()))
		return false
	}

	patched := false
	if r := strings.TrimSpace(fixes.Reasoning); r != "" {
		if looksLikeFinalReasoning(r) {
			a.Reasoning = r
			patched = true
		} else {
			// Reviewer guidance, not replacement prose. Keep it as a
			// note and leave the original reasoning alone.
			a.ReviewNote = r
			p.logger.Info("reasoning suggestion looks like reviewer guidance, kept original",
				applogger.String("key", post.Key()))
		}
	}
	if u := strings.TrimSpace(fixes.Urgency); u != "" {
		if norm, ok := models.NormalizeUrgency(u); ok {
			a.Urgency = norm
			patched = true
		} else {
			p.logger.Info("urgency suggestion not recognized, kept original",
				applogger.String("suggested", u))
		}
	}
	if fixes.Score != nil {
		if *fixes.Score >= 0 && *fixes.Score <= 100 {
			a.Score = *fixes.Score
			patched = true
		} else {
			p.logger.Info("score suggestion out of bounds, kept original",
				applogger.Int("suggested", *fixes.Score))
		}
	}
	return patched
}

var instructionPrefixes = []string{
	"remove ", "keep ", "rewrite", "reframe", "ensure ", "avoid ",
	"do not", "don't", "make sure", "change ", "adjust ", "should ",
	"break out", "mention", "focus on",
}

var guidanceMarkers = []string{
	"remove ", " keep ", " rewrite", " reframe", " should ", " must ", " need to ",
}

// looksLikeFinalReasoning decides whether suggested reasoning reads as
// finished analyst prose rather than instructions back to the model.
func looksLikeFinalReasoning(reasoning string) bool {
	lowered := strings.ToLower(reasoning)
	for _, prefix := range instructionPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return false
		}
	}
	for _, marker := range guidanceMarkers {
		if strings.Contains(lowered, marker) && len(strings.Fields(reasoning)) <= 6 {
			return false
		}
	}
	return strings.ContainsAny(reasoning, ".!?")
}

func analysisKind(err error) string {
	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind.String()
	}
	return "unknown"
}
