package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	mid "MarketPulse/internal/middleware"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/discord"
	"MarketPulse/internal/service/lexical"
	"MarketPulse/internal/service/llm"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/sources"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lgr, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return lgr, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis client used for the dedup ledger
// and block checkpoints.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port %q: %w", portStr, err)
	}

	opts := []cache.RedisOption{
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Redis.KeyPrefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Redis.KeyPrefix))
	}

	c, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return c, nil
}

// ProvideLedger creates the Redis-backed dedup ledger. The same value
// serves as the scheduler's block history.
func ProvideLedger(c *cache.RedisCache, cfg *config.Config) *internalrepo.RedisLedger {
	return internalrepo.NewRedisLedger(c, cfg.Redis.SeenTTL)
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the training schema. Returns nil when the Kafka backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != "clickhouse" {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		"CREATE TABLE IF NOT EXISTS " + db + `.training_records (
			ts DateTime,
			platform String,
			account String,
			post_id String,
			post_text String,
			post_url String,
			lexical_score Int32,
			score Int32,
			urgency String,
			analysis String,
			verdict String,
			patched UInt8,
			alerted UInt8
		) ENGINE=MergeTree ORDER BY (platform, ts)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTrainingStore selects the training record backend.
func ProvideTrainingStore(cfg *config.Config, chClient *pkgch.Client) (repository.TrainingStore, error) {
	switch cfg.Backend.Type {
	case "clickhouse":
		table := cfg.ClickHouse.Database + ".training_records"
		return internalrepo.NewClickHouseTrainingStore(chClient.DB(), table), nil
	case "kafka":
		producer, err := ProvideKafkaProducer(cfg)
		if err != nil {
			return nil, err
		}
		return internalrepo.NewKafkaTrainingStore(producer, cfg.Kafka.Topic), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}

// ProvideAnalyzer creates the two-stage LLM analyzer.
func ProvideAnalyzer(cfg *config.Config, lgr *applogger.Logger) repository.Analyzer {
	client := llm.NewClient(cfg.LLM.URL, cfg.LLM.Model, cfg.LLM.Timeout, lgr)
	return llm.NewAnalyzer(client, cfg.LLM.MaxRetries, cfg.LLM.ReviewTimeout, lgr)
}

// ProvideNotifier creates the Discord notifier, or nil when disabled.
func ProvideNotifier(cfg *config.Config, lgr *applogger.Logger) repository.Notifier {
	if !cfg.Discord.Enabled {
		return nil
	}
	return discord.NewNotifier(
		cfg.Discord.WebhookURL,
		cfg.Discord.Username,
		cfg.Discord.MaxRetries,
		cfg.Discord.RetryDelay,
		lgr,
	)
}

// ProvideScorer creates the keyword scorer from the configured table.
func ProvideScorer(cfg *config.Config) *lexical.Scorer {
	return lexical.NewScorer(cfg.Scoring.Keywords)
}

// ProvidePipeline creates the per-post processing pipeline.
func ProvidePipeline(
	cfg *config.Config,
	scorer *lexical.Scorer,
	ledger *internalrepo.RedisLedger,
	analyzer repository.Analyzer,
	store repository.TrainingStore,
	notifier repository.Notifier,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(
		usecase.PipelineConfig{
			AnalysisThreshold: cfg.Scoring.AnalysisThreshold,
			AlertThreshold:    cfg.Scoring.AlertThreshold,
			MinPostLength:     cfg.Scoring.MinPostLength,
		},
		scorer, ledger, analyzer, store, notifier, m, lgr,
	)
}

// ProvideAccounts builds one AccountRef per monitored account or feed.
// Source adapters are shared per platform so instance rotation and rate
// limiting apply across accounts.
func ProvideAccounts(cfg *config.Config, lgr *applogger.Logger) []usecase.AccountRef {
	var refs []usecase.AccountRef
	limiter := ratelimit.New()
	timeout := cfg.Sources.RequestTimeout
	ratePerMin := cfg.Sources.RatePerMinute

	if cfg.Sources.X.Enabled {
		src := sources.NewNitterSource(
			cfg.Sources.X.Instances,
			cfg.Sources.X.PostLimit,
			ratePerMin,
			timeout,
			limiter,
			lgr,
		)
		for _, acct := range cfg.Sources.X.Accounts {
			refs = append(refs, usecase.AccountRef{Source: src, Account: acct})
		}
	}

	if cfg.Sources.TruthSocial.Enabled {
		src := sources.NewMastodonSource(
			models.PlatformTruthSocial,
			cfg.Sources.TruthSocial.Instance,
			cfg.Sources.TruthSocial.PostLimit,
			ratePerMin,
			timeout,
			limiter,
			lgr,
		)
		for _, acct := range cfg.Sources.TruthSocial.Accounts {
			refs = append(refs, usecase.AccountRef{Source: src, Account: acct})
		}
	}

	if cfg.Sources.RSS.Enabled {
		src := sources.NewRSSSource(cfg.Sources.RSS.Feeds, 0, timeout, lgr)
		for _, label := range src.Labels() {
			refs = append(refs, usecase.AccountRef{Source: src, Account: label})
		}
	}

	return refs
}

// ProvideStreamBuffer creates the live-stream buffer, or nil when
// streaming is disabled.
func ProvideStreamBuffer(cfg *config.Config, m repository.Metrics, lgr *applogger.Logger) *mid.StreamBuffer {
	if !cfg.Sources.Stream.Enabled {
		return nil
	}
	stream := sources.NewStreamClient(
		cfg.Sources.Stream.URL,
		cfg.Sources.Stream.AccessToken,
		cfg.Sources.Stream.ReconnectDelay,
		lgr,
	)
	var opts []mid.StreamBufferOption
	if cfg.Sources.Stream.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Sources.Stream.BufferSize))
	}
	return mid.NewStreamBuffer(stream, m, lgr, opts...)
}

// ProvideScheduler creates the adaptive polling scheduler.
func ProvideScheduler(
	cfg *config.Config,
	accounts []usecase.AccountRef,
	pipeline *usecase.Pipeline,
	buffer *mid.StreamBuffer,
	ledger *internalrepo.RedisLedger,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.Scheduler {
	opts := []usecase.SchedulerOption{
		usecase.WithBlockHistory(ledger),
	}
	if buffer != nil {
		opts = append(opts, usecase.WithStreamBuffer(buffer))
	}
	return usecase.NewScheduler(
		usecase.SchedulerConfig{
			BaseDelay:         cfg.Scheduler.BaseDelay,
			MinDelay:          cfg.Scheduler.MinDelay,
			MaxDelay:          cfg.Scheduler.MaxDelay,
			EmptyThreshold:    cfg.Scheduler.EmptyThreshold,
			BackoffFactor:     cfg.Scheduler.BackoffFactor,
			BlockedBackoffMin: cfg.Scheduler.BlockedBackoffMin,
			BlockedBackoffMax: cfg.Scheduler.BlockedBackoffMax,
		},
		accounts, pipeline, m, lgr, opts...,
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	scheduler *usecase.Scheduler,
	store repository.TrainingStore,
	chClient *pkgch.Client,
	redis *cache.RedisCache,
) *server.App {
	return server.New(cfg, lgr, scheduler, store, chClient, redis)
}
