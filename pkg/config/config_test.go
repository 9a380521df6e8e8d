package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
environment: test
server:
  port: 8080
  read_timeout: 5s
  write_timeout: 10s
  shutdown_timeout: 15s
logging:
  level: info
  format: json
  output: stdout
scheduler:
  base_delay: 60s
  min_delay: 30s
  max_delay: 900s
  empty_fetch_threshold: 3
  backoff_factor: 1.5
  blocked_backoff_min: 300s
  blocked_backoff_max: 1800s
scoring:
  analysis_threshold: 20
  alert_threshold: 25
  min_post_length: 20
  keywords:
    tariff: 20
    "100% tariff": 30
    sanctions: 40
sources:
  request_timeout: 20s
  rate_per_minute: 30
  x:
    enabled: true
    instances: [nitter.net, nitter.poast.org]
    accounts: [whitehouse]
    post_limit: 5
  truthsocial:
    enabled: false
  rss:
    enabled: false
llm:
  url: http://localhost:11434
  model: qwen3:8b
  timeout: 120s
  review_timeout: 60s
  max_retries: 3
discord:
  enabled: true
  webhook_url: https://discord.com/api/webhooks/x/y
  username: MarketPulse
  max_retries: 3
  retry_delay: 2s
redis:
  addr: localhost:6379
  db: 0
  key_prefix: marketpulse
  seen_ttl: 720h
backend:
  type: clickhouse
clickhouse:
  host: localhost
  port: 9000
  database: marketpulse
  user: default
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.BaseDelay != time.Minute {
		t.Fatalf("base delay = %v", cfg.Scheduler.BaseDelay)
	}
	if cfg.Scoring.Keywords["100% tariff"] != 30 {
		t.Fatalf("phrase keyword lost: %v", cfg.Scoring.Keywords)
	}
	if len(cfg.Sources.X.Instances) != 2 {
		t.Fatalf("instances = %v", cfg.Sources.X.Instances)
	}
	if cfg.Redis.SeenTTL != 720*time.Hour {
		t.Fatalf("seen ttl = %v", cfg.Redis.SeenTTL)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Backend.Type = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected backend validation error")
	}
}

func TestValidateDelayOrdering(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Scheduler.MaxDelay = cfg.Scheduler.BaseDelay - time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected max_delay ordering error")
	}

	cfg, _ = Load(writeConfig(t, validYAML))
	cfg.Scheduler.BackoffFactor = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected backoff_factor error")
	}
}

func TestValidateRequiresASource(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Sources.X.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected at-least-one-source error")
	}
}

func TestValidateRequiresWebhookWhenEnabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Discord.WebhookURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected webhook validation error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/env")
	t.Setenv("OLLAMA_MODEL", "qwen3:14b")
	t.Setenv("X_ACCOUNTS", "potus, treasury ,fed")
	t.Setenv("NITTER_INSTANCES", "nitter.example")
	t.Setenv("BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discord.WebhookURL != "https://discord.com/api/webhooks/env" {
		t.Fatalf("webhook not overridden")
	}
	if cfg.LLM.Model != "qwen3:14b" {
		t.Fatalf("model not overridden")
	}
	want := []string{"potus", "treasury", "fed"}
	if len(cfg.Sources.X.Accounts) != 3 {
		t.Fatalf("accounts = %v", cfg.Sources.X.Accounts)
	}
	for i, acct := range want {
		if cfg.Sources.X.Accounts[i] != acct {
			t.Fatalf("accounts = %v, want %v", cfg.Sources.X.Accounts, want)
		}
	}
	if cfg.Backend.Type != "kafka" {
		t.Fatalf("backend not overridden")
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestSplitListTrimsAndDropsEmpty(t *testing.T) {
	got := splitList(" a, ,b,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("splitList = %v", got)
	}
}
