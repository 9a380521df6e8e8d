package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// Source fetches the latest posts for one account on one platform.
// Zero posts with a nil error is a legitimate empty result. Failures
// come back as *models.FetchError so callers can pick a backoff.
type Source interface {
	Platform() models.Platform
	Fetch(ctx context.Context, account string) ([]*models.Post, error)
}

// Ledger is the durable dedup set. MarkSeen must succeed before a post
// may be scored; a failed mark is fatal for that post only.
type Ledger interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// BlockHistory checkpoints platform backoff windows so a restart inside
// a block resumes it instead of hammering the platform again.
type BlockHistory interface {
	SaveBlock(ctx context.Context, b models.PlatformBlock) error
	LoadBlocks(ctx context.Context) ([]models.PlatformBlock, error)
	ClearBlock(ctx context.Context, platform models.Platform) error
}

// Analyzer is the two-stage semantic layer: Analyze produces a validated
// analysis, Review runs the quality gate over it.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.SemanticAnalysis, error)
	Review(ctx context.Context, text string, a *models.SemanticAnalysis) (*models.QualityVerdict, error)
}

// TrainingStore is the append-only training data sink.
type TrainingStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Append(ctx context.Context, rec *models.TrainingRecord) error
	Health(ctx context.Context) error
	Close() error
}

// Notifier dispatches alerts for posts that clear the alert threshold.
type Notifier interface {
	SendAlert(ctx context.Context, post *models.Post, lexical int, a *models.SemanticAnalysis) error
}

// SocialStream is an optional live firehose feeding the next cycle.
type SocialStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Post, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordPostsFetched(platform string, n int)
	RecordPostProcessed(platform string)
	RecordAlertSent(platform string)
	RecordError(kind string)
	RecordLexicalScore(platform string, score float64)
	RecordLatency(op string, seconds float64)
	RecordCycleDelay(d time.Duration)
}
