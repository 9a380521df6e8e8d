package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// ClickHouseTrainingStore appends TrainingRecords to an append-only
// ClickHouse table. Analysis and verdict are stored as JSON columns so
// the schema survives prompt evolution.
type ClickHouseTrainingStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseTrainingStore creates the ClickHouse-backed store.
func NewClickHouseTrainingStore(db *sql.DB, table string) repository.TrainingStore {
	return &ClickHouseTrainingStore{db: db, table: table}
}

func (s *ClickHouseTrainingStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseTrainingStore) Append(ctx context.Context, rec *models.TrainingRecord) error {
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	verdictJSON := []byte("{}")
	if rec.Verdict != nil {
		if verdictJSON, err = json.Marshal(rec.Verdict); err != nil {
			return fmt.Errorf("marshal verdict: %w", err)
		}
	}

	score := 0
	urgency := ""
	if rec.Analysis != nil {
		score = rec.Analysis.Score
		urgency = string(rec.Analysis.Urgency)
	}

	q := fmt.Sprintf("INSERT INTO %s (ts, platform, account, post_id, post_text, post_url, lexical_score, score, urgency, analysis, verdict, patched, alerted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err = s.db.ExecContext(ctx, q,
		rec.Timestamp,
		string(rec.Platform),
		rec.Account,
		rec.PostID,
		rec.PostText,
		rec.PostURL,
		int32(rec.LexicalScore),
		int32(score),
		urgency,
		string(analysisJSON),
		string(verdictJSON),
		boolToUint8(rec.Patched),
		boolToUint8(rec.Alerted),
	)
	return err
}

func (s *ClickHouseTrainingStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTrainingStore) Close() error {
	return nil // Managed by pkg
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// KafkaTrainingStore publishes TrainingRecords to a topic instead of
// writing them locally, for deployments where a downstream consumer
// owns persistence.
type KafkaTrainingStore struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTrainingStore creates the Kafka-backed store.
func NewKafkaTrainingStore(producer *pkgkafka.Producer, topic string) repository.TrainingStore {
	return &KafkaTrainingStore{producer: producer, topic: topic}
}

func (s *KafkaTrainingStore) Init(ctx context.Context) error { return nil }

func (s *KafkaTrainingStore) Append(ctx context.Context, rec *models.TrainingRecord) error {
	key := []byte(fmt.Sprintf("%s:%s", rec.Platform, rec.PostID))
	return s.producer.Publish(ctx, s.topic, key, rec)
}

func (s *KafkaTrainingStore) Health(ctx context.Context) error { return nil }

func (s *KafkaTrainingStore) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
