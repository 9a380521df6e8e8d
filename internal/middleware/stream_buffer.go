package middleware

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
)

// StreamBuffer sits between the live social stream and the polling
// scheduler. Posts arriving over the WebSocket are parked in a bounded
// buffer and handed over in bulk at the start of the next cycle, so the
// pipeline keeps its single-writer model.
type StreamBuffer struct {
	stream  domrepo.SocialStream
	metrics domrepo.Metrics
	logger  *applogger.Logger
	bufCh   chan *models.Post
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

type StreamBufferOption func(*StreamBuffer)

// WithBufferSize sets how many live posts are held between cycles.
func WithBufferSize(n int) StreamBufferOption {
	return func(b *StreamBuffer) {
		if n > 0 {
			b.bufCh = make(chan *models.Post, n)
		}
	}
}

// NewStreamBuffer creates a buffer over a connected stream.
func NewStreamBuffer(stream domrepo.SocialStream, metrics domrepo.Metrics, logger *applogger.Logger, opts ...StreamBufferOption) *StreamBuffer {
	b := &StreamBuffer{
		stream:  stream,
		metrics: metrics,
		logger:  logger,
		bufCh:   make(chan *models.Post, 256),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the read loop with reconnects. Safe to call once.
func (b *StreamBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *StreamBuffer) run(ctx context.Context) {
	if err := b.stream.Connect(ctx); err != nil {
		b.logger.Warn("stream connect failed", applogger.Error(err))
		b.metrics.RecordError("stream_connect")
	}

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !b.stream.IsConnected() {
			if err := b.stream.Reconnect(ctx); err != nil {
				b.logger.Warn("stream reconnect failed", applogger.Error(err))
				b.metrics.RecordError("stream_reconnect")
				select {
				case <-time.After(5 * time.Second):
				case <-b.stopCh:
					return
				case <-ctx.Done():
					return
				}
				continue
			}
		}

		posts, errs := b.stream.Read(ctx)
	readLoop:
		for {
			select {
			case <-b.stopCh:
				return
			case <-ctx.Done():
				return
			case p, ok := <-posts:
				if !ok {
					break readLoop
				}
				select {
				case b.bufCh <- p:
				default:
					b.metrics.RecordError("stream_buffer_full")
				}
			case err, ok := <-errs:
				if ok && err != nil {
					b.logger.Warn("stream read error", applogger.Error(err))
					b.metrics.RecordError("stream_read")
				}
				_ = b.stream.Close()
				break readLoop
			}
		}
	}
}

// Drain returns everything buffered since the last call, deduplicated
// within the batch. Never blocks.
func (b *StreamBuffer) Drain() []*models.Post {
	var out []*models.Post
	seen := make(map[string]bool)
	for {
		select {
		case p := <-b.bufCh:
			if p == nil || seen[p.Key()] {
				continue
			}
			seen[p.Key()] = true
			out = append(out, p)
		default:
			return out
		}
	}
}

// Stop stops the read loop and closes the stream.
func (b *StreamBuffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	close(b.stopCh)
	_ = b.stream.Close()
}
