package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/service/lexical"
)

type fakeSource struct {
	platform models.Platform
	mu       sync.Mutex
	posts    []*models.Post
	err      error
	fetches  int
}

func (f *fakeSource) Platform() models.Platform { return f.platform }

func (f *fakeSource) Fetch(ctx context.Context, account string) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	out := f.posts
	f.posts = nil
	return out, nil
}

type fakeBlockHistory struct {
	mu      sync.Mutex
	saved   map[models.Platform]models.PlatformBlock
	cleared []models.Platform
}

func newFakeBlockHistory() *fakeBlockHistory {
	return &fakeBlockHistory{saved: make(map[models.Platform]models.PlatformBlock)}
}

func (f *fakeBlockHistory) SaveBlock(ctx context.Context, b models.PlatformBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[b.Platform] = b
	return nil
}

func (f *fakeBlockHistory) LoadBlocks(ctx context.Context) ([]models.PlatformBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PlatformBlock, 0, len(f.saved))
	for _, b := range f.saved {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBlockHistory) ClearBlock(ctx context.Context, platform models.Platform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, platform)
	f.cleared = append(f.cleared, platform)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BaseDelay:         10 * time.Second,
		MinDelay:          5 * time.Second,
		MaxDelay:          60 * time.Second,
		EmptyThreshold:    1,
		BackoffFactor:     2,
		BlockedBackoffMin: 30 * time.Second,
		BlockedBackoffMax: 5 * time.Minute,
	}
}

func quietPipeline(t *testing.T, ledger *fakeLedger) *Pipeline {
	t.Helper()
	return NewPipeline(
		PipelineConfig{AnalysisThreshold: 20, AlertThreshold: 25, MinPostLength: 20},
		lexical.NewScorer(map[string]int{"tariff": 30}),
		ledger,
		&fakeAnalyzer{
			analysis: &models.SemanticAnalysis{Score: 10, Reasoning: "Routine announcement, no market relevance.", Urgency: models.UrgencyWeeks},
			verdict:  &models.QualityVerdict{Approved: true},
		},
		&fakeStore{},
		nil,
		noopMetrics{},
		testLogger(t),
	)
}

func plainPost(id string) *models.Post {
	return &models.Post{
		Platform:  models.PlatformX,
		Account:   "newsdesk",
		ID:        id,
		Text:      "Quarterly town hall moved to Thursday afternoon, agenda unchanged.",
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestScheduler(t *testing.T, cfg SchedulerConfig, refs []AccountRef, clock *fakeClock, opts ...SchedulerOption) *Scheduler {
	t.Helper()
	opts = append(opts, withClock(clock.Now))
	return NewScheduler(cfg, refs, quietPipeline(t, newFakeLedger()), noopMetrics{}, testLogger(t), opts...)
}

func TestSchedulerEmptyBackoffDoubles(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{platform: models.PlatformX}
	s := newTestScheduler(t, testSchedulerConfig(), []AccountRef{{Source: src, Account: "newsdesk"}}, clock)
	ctx := context.Background()

	want := []time.Duration{20 * time.Second, 40 * time.Second, 60 * time.Second, 60 * time.Second}
	for i, expect := range want {
		s.RunCycle(ctx)
		if got := s.NextDelay(clock.Now()); got != expect {
			t.Fatalf("cycle %d: delay = %v, want %v", i+1, got, expect)
		}
	}
}

func TestSchedulerResetsOnNewPost(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{platform: models.PlatformX}
	cfg := testSchedulerConfig()
	s := newTestScheduler(t, cfg, []AccountRef{{Source: src, Account: "newsdesk"}}, clock)
	ctx := context.Background()

	s.RunCycle(ctx)
	s.RunCycle(ctx)
	if got := s.NextDelay(clock.Now()); got != 40*time.Second {
		t.Fatalf("after two empty cycles delay = %v, want 40s", got)
	}

	src.mu.Lock()
	src.posts = []*models.Post{plainPost("1")}
	src.mu.Unlock()
	if got := s.RunCycle(ctx); got != 1 {
		t.Fatalf("expected 1 new post, got %d", got)
	}
	if got := s.NextDelay(clock.Now()); got != cfg.BaseDelay {
		t.Fatalf("delay after new post = %v, want base %v", got, cfg.BaseDelay)
	}

	snap := s.Snapshot()
	if snap.Mode != models.ModeNormal {
		t.Fatalf("mode = %q, want normal", snap.Mode)
	}
	if snap.EmptyCycles != 0 {
		t.Fatalf("empty cycles not reset, got %d", snap.EmptyCycles)
	}
}

func TestSchedulerEmptyThresholdHoldsBase(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{platform: models.PlatformX}
	cfg := testSchedulerConfig()
	cfg.EmptyThreshold = 3
	s := newTestScheduler(t, cfg, []AccountRef{{Source: src, Account: "newsdesk"}}, clock)
	ctx := context.Background()

	s.RunCycle(ctx)
	s.RunCycle(ctx)
	if got := s.NextDelay(clock.Now()); got != cfg.BaseDelay {
		t.Fatalf("delay before threshold = %v, want base %v", got, cfg.BaseDelay)
	}
	s.RunCycle(ctx)
	if got := s.NextDelay(clock.Now()); got != 20*time.Second {
		t.Fatalf("delay at threshold = %v, want 20s", got)
	}
}

func TestSchedulerBlockedPlatformIsolated(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	blockedSrc := &fakeSource{
		platform: models.PlatformX,
		err:      models.NewFetchError(models.FetchBlocked, models.PlatformX, context.DeadlineExceeded),
	}
	healthySrc := &fakeSource{platform: models.PlatformRSS}
	s := newTestScheduler(t, testSchedulerConfig(), []AccountRef{
		{Source: blockedSrc, Account: "newsdesk"},
		{Source: healthySrc, Account: "markets"},
	}, clock)
	ctx := context.Background()

	s.RunCycle(ctx)
	if blockedSrc.fetches != 1 {
		t.Fatalf("expected one fetch before block, got %d", blockedSrc.fetches)
	}

	s.RunCycle(ctx)
	if blockedSrc.fetches != 1 {
		t.Fatalf("blocked platform must not be fetched, got %d fetches", blockedSrc.fetches)
	}
	if healthySrc.fetches != 2 {
		t.Fatalf("healthy platform must keep polling, got %d fetches", healthySrc.fetches)
	}

	snap := s.Snapshot()
	if snap.Mode != models.ModeBlocked {
		t.Fatalf("mode = %q, want blocked", snap.Mode)
	}
	if len(snap.Blocked) != 1 || snap.Blocked[0].Platform != models.PlatformX {
		t.Fatalf("unexpected block list: %+v", snap.Blocked)
	}
}

func TestSchedulerBlockExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{
		platform: models.PlatformX,
		err:      models.NewFetchError(models.FetchRateLimited, models.PlatformX, context.DeadlineExceeded),
	}
	cfg := testSchedulerConfig()
	history := newFakeBlockHistory()
	s := newTestScheduler(t, cfg, []AccountRef{{Source: src, Account: "newsdesk"}}, clock, WithBlockHistory(history))
	ctx := context.Background()

	s.RunCycle(ctx)
	if len(history.saved) != 1 {
		t.Fatalf("block not checkpointed")
	}

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()

	clock.Advance(cfg.BlockedBackoffMin + time.Second)
	s.RunCycle(ctx)
	if src.fetches != 2 {
		t.Fatalf("expired block must resume fetching, got %d fetches", src.fetches)
	}
	if len(history.cleared) != 1 {
		t.Fatalf("checkpoint not cleared on expiry")
	}
}

func TestSchedulerNextDelayCapsAtUnblock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{
		platform: models.PlatformX,
		err:      models.NewFetchError(models.FetchRateLimited, models.PlatformX, context.DeadlineExceeded),
	}
	cfg := testSchedulerConfig()
	cfg.BaseDelay = 2 * time.Minute
	cfg.MaxDelay = 10 * time.Minute
	cfg.MinDelay = 5 * time.Second
	s := newTestScheduler(t, cfg, []AccountRef{{Source: src, Account: "newsdesk"}}, clock)
	ctx := context.Background()

	s.RunCycle(ctx)
	if got := s.NextDelay(clock.Now()); got != cfg.BlockedBackoffMin {
		t.Fatalf("delay = %v, want unblock remaining %v", got, cfg.BlockedBackoffMin)
	}

	// Even right before the unblock instant, never spin below MinDelay.
	clock.Advance(cfg.BlockedBackoffMin - time.Second)
	if got := s.NextDelay(clock.Now()); got != cfg.MinDelay {
		t.Fatalf("delay = %v, want MinDelay %v", got, cfg.MinDelay)
	}
}

func TestSchedulerRestoresBlocksOnStart(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	history := newFakeBlockHistory()
	history.saved[models.PlatformX] = models.PlatformBlock{
		Platform: models.PlatformX,
		Until:    clock.Now().Add(3 * time.Minute),
		Reason:   "blocked",
	}
	src := &fakeSource{platform: models.PlatformX}
	s := newTestScheduler(t, testSchedulerConfig(), []AccountRef{{Source: src, Account: "newsdesk"}}, clock, WithBlockHistory(history))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Blocked) != 1 {
		t.Fatalf("saved block not restored: %+v", snap.Blocked)
	}
	if src.fetches != 0 {
		t.Fatalf("restored block must suppress fetching")
	}
}

func TestSchedulerProcessesOldestFirst(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	newer := plainPost("2")
	newer.CreatedAt = base.Add(time.Hour)
	older := plainPost("1")
	older.CreatedAt = base
	src := &fakeSource{platform: models.PlatformX, posts: []*models.Post{newer, older}}

	ledger := newFakeLedger()
	s := NewScheduler(testSchedulerConfig(), []AccountRef{{Source: src, Account: "newsdesk"}},
		quietPipeline(t, ledger), noopMetrics{}, testLogger(t), withClock(clock.Now))

	if got := s.RunCycle(context.Background()); got != 2 {
		t.Fatalf("expected 2 new posts, got %d", got)
	}
	if len(ledger.marked) != 2 || ledger.marked[0] != older.Key() || ledger.marked[1] != newer.Key() {
		t.Fatalf("posts processed out of order: %v", ledger.marked)
	}
}

func TestSchedulerTransientErrorDoesNotBlock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{
		platform: models.PlatformX,
		err:      models.NewFetchError(models.FetchTransient, models.PlatformX, context.DeadlineExceeded),
	}
	s := newTestScheduler(t, testSchedulerConfig(), []AccountRef{{Source: src, Account: "newsdesk"}}, clock)
	ctx := context.Background()

	s.RunCycle(ctx)
	s.RunCycle(ctx)
	if src.fetches != 2 {
		t.Fatalf("transient failure must not open a block, got %d fetches", src.fetches)
	}
	if snap := s.Snapshot(); len(snap.Blocked) != 0 {
		t.Fatalf("unexpected block: %+v", snap.Blocked)
	}
}
