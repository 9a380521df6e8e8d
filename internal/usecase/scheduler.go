package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	mid "MarketPulse/internal/middleware"
	applogger "MarketPulse/pkg/logger"
)

// AccountRef binds one account (or feed label) to its source adapter.
type AccountRef struct {
	Source  domrepo.Source
	Account string
}

// SchedulerConfig holds the adaptive timing parameters. All delays are
// clamped to [MinDelay, MaxDelay].
type SchedulerConfig struct {
	BaseDelay         time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	EmptyThreshold    int
	BackoffFactor     float64
	BlockedBackoffMin time.Duration
	BlockedBackoffMax time.Duration
}

// Scheduler owns the single run loop: fetch every account, feed posts
// through the pipeline, then sleep an adaptive delay. It is the only
// writer of its state; everyone else reads snapshots.
type Scheduler struct {
	cfg      SchedulerConfig
	accounts []AccountRef
	pipeline *Pipeline
	metrics  domrepo.Metrics
	logger   *applogger.Logger
	buffer   *mid.StreamBuffer
	blocks   domrepo.BlockHistory
	now      func() time.Time

	mu          sync.Mutex
	delay       time.Duration
	emptyCycles int
	blocked     map[models.Platform]models.PlatformBlock
	lastCycleAt time.Time
	cyclePosts  int
}

type SchedulerOption func(*Scheduler)

// WithStreamBuffer drains live streamed posts into each cycle.
func WithStreamBuffer(b *mid.StreamBuffer) SchedulerOption {
	return func(s *Scheduler) { s.buffer = b }
}

// WithBlockHistory checkpoints platform backoff windows across restarts.
func WithBlockHistory(h domrepo.BlockHistory) SchedulerOption {
	return func(s *Scheduler) { s.blocks = h }
}

func withClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(cfg SchedulerConfig, accounts []AccountRef, pipeline *Pipeline, metrics domrepo.Metrics, logger *applogger.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		accounts: accounts,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		delay:    cfg.BaseDelay,
		blocked:  make(map[models.Platform]models.PlatformBlock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes cycles until the context is canceled. The current post
// finishes before shutdown; the remaining queue is abandoned (dedup
// makes the next start idempotent).
func (s *Scheduler) Run(ctx context.Context) error {
	s.restoreBlocks(ctx)
	if s.buffer != nil {
		s.buffer.Start(ctx)
	}

	for {
		s.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		d := s.NextDelay(s.now())
		s.metrics.RecordCycleDelay(d)
		s.logger.Debug("cycle complete", applogger.Duration("next_delay", d))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}
	}
}

// RunCycle fetches all unblocked accounts once and processes their
// posts oldest first. Returns the number of new posts.
func (s *Scheduler) RunCycle(ctx context.Context) int {
	start := s.now()
	newPosts := 0

	if s.buffer != nil {
		for _, post := range s.buffer.Drain() {
			if ctx.Err() != nil {
				return newPosts
			}
			if s.processPost(ctx, post) {
				newPosts++
			}
		}
	}

	for _, ref := range s.accounts {
		if ctx.Err() != nil {
			return newPosts
		}
		platform := ref.Source.Platform()
		if s.isBlocked(ctx, platform) {
			continue
		}

		posts, err := ref.Source.Fetch(ctx, ref.Account)
		if err != nil {
			s.handleFetchError(ctx, ref.Account, err)
			continue
		}
		s.metrics.RecordPostsFetched(string(platform), len(posts))

		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.Before(posts[j].CreatedAt)
		})
		for _, post := range posts {
			if ctx.Err() != nil {
				return newPosts
			}
			if s.processPost(ctx, post) {
				newPosts++
			}
		}
	}

	s.observeCycle(newPosts)
	s.metrics.RecordLatency("cycle", s.now().Sub(start).Seconds())
	return newPosts
}

// processPost runs one post and scopes its failure: a ledger error
// skips this post only, never the cycle.
func (s *Scheduler) processPost(ctx context.Context, post *models.Post) bool {
	isNew, err := s.pipeline.Process(ctx, post)
	if err != nil {
		s.logger.Error("post skipped",
			applogger.String("key", post.Key()),
			applogger.Error(err))
		s.metrics.RecordError("post_process")
		return false
	}
	return isNew
}

func (s *Scheduler) handleFetchError(ctx context.Context, account string, err error) {
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		s.logger.Error("fetch failed", applogger.String("account", account), applogger.Error(err))
		s.metrics.RecordError("fetch_transient")
		return
	}

	s.metrics.RecordError("fetch_" + fe.Kind.String())
	switch fe.Kind {
	case models.FetchBlocked:
		s.block(ctx, fe.Platform, s.cfg.BlockedBackoffMax, fe.Kind.String())
	case models.FetchRateLimited:
		s.block(ctx, fe.Platform, s.cfg.BlockedBackoffMin, fe.Kind.String())
	default:
		s.logger.Warn("transient fetch failure",
			applogger.String("account", account),
			applogger.Error(fe.Err))
	}
}

// block opens a backoff window for the platform and checkpoints it.
func (s *Scheduler) block(ctx context.Context, platform models.Platform, d time.Duration, reason string) {
	if d < s.cfg.BlockedBackoffMin {
		d = s.cfg.BlockedBackoffMin
	}
	if d > s.cfg.BlockedBackoffMax {
		d = s.cfg.BlockedBackoffMax
	}
	b := models.PlatformBlock{Platform: platform, Until: s.now().Add(d), Reason: reason}

	s.mu.Lock()
	s.blocked[platform] = b
	s.mu.Unlock()

	s.logger.Warn("platform backoff opened",
		applogger.String("platform", string(platform)),
		applogger.String("reason", reason),
		applogger.Duration("duration", d))

	if s.blocks != nil {
		if err := s.blocks.SaveBlock(ctx, b); err != nil {
			s.logger.Warn("block checkpoint failed", applogger.Error(err))
		}
	}
}

func (s *Scheduler) isBlocked(ctx context.Context, platform models.Platform) bool {
	s.mu.Lock()
	b, ok := s.blocked[platform]
	if ok && !s.now().Before(b.Until) {
		delete(s.blocked, platform)
		ok = false
		s.mu.Unlock()
		if s.blocks != nil {
			if err := s.blocks.ClearBlock(ctx, platform); err != nil {
				s.logger.Warn("block checkpoint clear failed", applogger.Error(err))
			}
		}
		s.logger.Info("platform backoff expired", applogger.String("platform", string(platform)))
		return false
	}
	s.mu.Unlock()
	return ok
}

// observeCycle applies the empty-backoff state machine: any new post
// resets the delay to base; consecutive empty cycles at or past the
// threshold multiply it, clamped at MaxDelay.
func (s *Scheduler) observeCycle(newPosts int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCycleAt = s.now()
	s.cyclePosts = newPosts

	if newPosts > 0 {
		s.emptyCycles = 0
		s.delay = s.cfg.BaseDelay
		return
	}

	s.emptyCycles++
	if s.emptyCycles >= s.cfg.EmptyThreshold {
		s.delay = s.clamp(time.Duration(float64(s.delay) * s.cfg.BackoffFactor))
	}
}

// NextDelay returns the sleep before the next cycle: the adaptive delay
// or the nearest unblock time, whichever is sooner, never below
// MinDelay.
func (s *Scheduler) NextDelay(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.delay
	for _, b := range s.blocked {
		if remaining := b.Until.Sub(now); remaining > 0 && remaining < d {
			d = remaining
		}
	}
	if d < s.cfg.MinDelay {
		d = s.cfg.MinDelay
	}
	return d
}

func (s *Scheduler) clamp(d time.Duration) time.Duration {
	if d < s.cfg.MinDelay {
		return s.cfg.MinDelay
	}
	if d > s.cfg.MaxDelay {
		return s.cfg.MaxDelay
	}
	return d
}

func (s *Scheduler) restoreBlocks(ctx context.Context) {
	if s.blocks == nil {
		return
	}
	saved, err := s.blocks.LoadBlocks(ctx)
	if err != nil {
		s.logger.Warn("block history restore failed", applogger.Error(err))
		return
	}
	s.mu.Lock()
	for _, b := range saved {
		s.blocked[b.Platform] = b
	}
	s.mu.Unlock()
	for _, b := range saved {
		s.logger.Info("resumed platform backoff",
			applogger.String("platform", string(b.Platform)),
			applogger.Duration("remaining", time.Until(b.Until)))
	}
}

// Snapshot returns a read-only copy of the scheduler state.
func (s *Scheduler) Snapshot() models.SchedulerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	blocked := make([]models.PlatformBlock, 0, len(s.blocked))
	for _, b := range s.blocked {
		if now.Before(b.Until) {
			blocked = append(blocked, b)
		}
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i].Platform < blocked[j].Platform })

	mode := models.ModeNormal
	switch {
	case len(blocked) > 0:
		mode = models.ModeBlocked
	case s.emptyCycles >= s.cfg.EmptyThreshold:
		mode = models.ModeEmptyBackoff
	}

	posts, alerts := s.pipeline.Totals()
	return models.SchedulerSnapshot{
		Mode:         mode,
		CurrentDelay: s.delay,
		DelaySeconds: s.delay.Seconds(),
		EmptyCycles:  s.emptyCycles,
		Blocked:      blocked,
		LastCycleAt:  s.lastCycleAt,
		CyclePosts:   s.cyclePosts,
		TotalPosts:   posts,
		TotalAlerts:  alerts,
	}
}
