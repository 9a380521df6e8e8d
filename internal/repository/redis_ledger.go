package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/cache"
)

// RedisLedger is the durable dedup set and block-history checkpoint,
// both on the shared Redis client. Keys survive restarts; SeenTTL of
// zero means entries never expire.
type RedisLedger struct {
	cache   *cache.RedisCache
	seenTTL time.Duration
}

func NewRedisLedger(c *cache.RedisCache, seenTTL time.Duration) *RedisLedger {
	return &RedisLedger{cache: c, seenTTL: seenTTL}
}

func seenKey(key string) string { return "seen:" + key }

func blockKey(p models.Platform) string { return fmt.Sprintf("block:%s", p) }

// Seen reports whether the post key was already processed.
func (l *RedisLedger) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := l.cache.Exists(ctx, seenKey(key))
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrLedgerUnavailable, err)
	}
	return ok, nil
}

// MarkSeen records the post key. Must succeed before scoring starts.
func (l *RedisLedger) MarkSeen(ctx context.Context, key string) error {
	if err := l.cache.Set(ctx, seenKey(key), "1", l.seenTTL); err != nil {
		return fmt.Errorf("%w: %v", models.ErrLedgerUnavailable, err)
	}
	return nil
}

// SaveBlock checkpoints a platform backoff window. The key expires on
// its own shortly after the window ends.
func (l *RedisLedger) SaveBlock(ctx context.Context, b models.PlatformBlock) error {
	ttl := time.Until(b.Until) + time.Minute
	if ttl <= 0 {
		return nil
	}
	if err := l.cache.Set(ctx, blockKey(b.Platform), b, ttl); err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

// LoadBlocks returns still-active backoff windows for all platforms.
func (l *RedisLedger) LoadBlocks(ctx context.Context) ([]models.PlatformBlock, error) {
	platforms := []models.Platform{models.PlatformX, models.PlatformTruthSocial, models.PlatformRSS}
	var out []models.PlatformBlock
	for _, p := range platforms {
		var b models.PlatformBlock
		err := l.cache.Get(ctx, blockKey(p), &b)
		if errors.Is(err, cache.ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load block %s: %w", p, err)
		}
		if time.Now().Before(b.Until) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ClearBlock removes a platform's checkpoint once the window passed.
func (l *RedisLedger) ClearBlock(ctx context.Context, p models.Platform) error {
	return l.cache.Delete(ctx, blockKey(p))
}
