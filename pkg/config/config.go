package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Scheduler struct {
		BaseDelay         time.Duration `yaml:"base_delay"`
		MinDelay          time.Duration `yaml:"min_delay"`
		MaxDelay          time.Duration `yaml:"max_delay"`
		EmptyThreshold    int           `yaml:"empty_fetch_threshold"`
		BackoffFactor     float64       `yaml:"backoff_factor"`
		BlockedBackoffMin time.Duration `yaml:"blocked_backoff_min"`
		BlockedBackoffMax time.Duration `yaml:"blocked_backoff_max"`
	} `yaml:"scheduler"`
	Scoring struct {
		AnalysisThreshold int            `yaml:"analysis_threshold"`
		AlertThreshold    int            `yaml:"alert_threshold"`
		MinPostLength     int            `yaml:"min_post_length"`
		Keywords          map[string]int `yaml:"keywords"`
	} `yaml:"scoring"`
	Sources struct {
		X struct {
			Enabled   bool     `yaml:"enabled"`
			Instances []string `yaml:"instances"`
			Accounts  []string `yaml:"accounts"`
			PostLimit int      `yaml:"post_limit"`
		} `yaml:"x"`
		TruthSocial struct {
			Enabled   bool     `yaml:"enabled"`
			Instance  string   `yaml:"instance"`
			Accounts  []string `yaml:"accounts"`
			PostLimit int      `yaml:"post_limit"`
		} `yaml:"truthsocial"`
		RSS struct {
			Enabled bool              `yaml:"enabled"`
			Feeds   map[string]string `yaml:"feeds"`
		} `yaml:"rss"`
		Stream struct {
			Enabled        bool          `yaml:"enabled"`
			URL            string        `yaml:"url"`
			AccessToken    string        `yaml:"access_token"`
			ReconnectDelay time.Duration `yaml:"reconnect_delay"`
			BufferSize     int           `yaml:"buffer_size"`
		} `yaml:"stream"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		RatePerMinute  int           `yaml:"rate_per_minute"`
	} `yaml:"sources"`
	LLM struct {
		URL           string        `yaml:"url"`
		Model         string        `yaml:"model"`
		Timeout       time.Duration `yaml:"timeout"`
		ReviewTimeout time.Duration `yaml:"review_timeout"`
		MaxRetries    int           `yaml:"max_retries"`
	} `yaml:"llm"`
	Discord struct {
		Enabled    bool          `yaml:"enabled"`
		WebhookURL string        `yaml:"webhook_url"`
		Username   string        `yaml:"username"`
		MaxRetries int           `yaml:"max_retries"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"discord"`
	Redis struct {
		Addr      string        `yaml:"addr"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		KeyPrefix string        `yaml:"key_prefix"`
		SeenTTL   time.Duration `yaml:"seen_ttl"`
	} `yaml:"redis"`
	Backend struct {
		Type string `yaml:"type"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			BatchTimeout time.Duration `yaml:"batch_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Secrets and account lists are the override surface; structural settings
// stay in the file.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	return c, nil
}

// ApplyEnv overrides config values from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Discord.WebhookURL = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.LLM.URL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("X_ACCOUNTS"); v != "" {
		c.Sources.X.Accounts = splitList(v)
	}
	if v := os.Getenv("TRUTH_ACCOUNTS"); v != "" {
		c.Sources.TruthSocial.Accounts = splitList(v)
	}
	if v := os.Getenv("NITTER_INSTANCES"); v != "" {
		c.Sources.X.Instances = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if len(c.Scoring.Keywords) == 0 {
		return fmt.Errorf("scoring.keywords cannot be empty")
	}
	if c.Scoring.AnalysisThreshold <= 0 {
		return fmt.Errorf("scoring.analysis_threshold must be positive")
	}
	if c.Scoring.AlertThreshold <= 0 {
		return fmt.Errorf("scoring.alert_threshold must be positive")
	}
	s := c.Scheduler
	if s.MinDelay <= 0 {
		return fmt.Errorf("scheduler.min_delay must be positive")
	}
	if s.BaseDelay < s.MinDelay {
		return fmt.Errorf("scheduler.base_delay must be >= min_delay")
	}
	if s.MaxDelay < s.BaseDelay {
		return fmt.Errorf("scheduler.max_delay must be >= base_delay")
	}
	if s.EmptyThreshold < 1 {
		return fmt.Errorf("scheduler.empty_fetch_threshold must be >= 1")
	}
	if s.BackoffFactor <= 1 {
		return fmt.Errorf("scheduler.backoff_factor must be > 1")
	}
	if s.BlockedBackoffMax < s.BlockedBackoffMin {
		return fmt.Errorf("scheduler.blocked_backoff_max must be >= blocked_backoff_min")
	}
	if !c.Sources.X.Enabled && !c.Sources.TruthSocial.Enabled && !c.Sources.RSS.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if c.Sources.X.Enabled {
		if len(c.Sources.X.Instances) == 0 {
			return fmt.Errorf("sources.x.instances cannot be empty")
		}
		if len(c.Sources.X.Accounts) == 0 {
			return fmt.Errorf("sources.x.accounts cannot be empty")
		}
	}
	if c.Sources.TruthSocial.Enabled {
		if c.Sources.TruthSocial.Instance == "" {
			return fmt.Errorf("sources.truthsocial.instance is required")
		}
		if len(c.Sources.TruthSocial.Accounts) == 0 {
			return fmt.Errorf("sources.truthsocial.accounts cannot be empty")
		}
	}
	if c.Sources.RSS.Enabled && len(c.Sources.RSS.Feeds) == 0 {
		return fmt.Errorf("sources.rss.feeds cannot be empty")
	}
	if c.LLM.URL == "" {
		return fmt.Errorf("llm.url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required when discord is enabled")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}
