package models

import "time"

// TrainingRecord is one append-only row of pipeline output kept for
// future fine-tuning and audit. Verdict is nil when the quality gate
// was skipped or failed open.
type TrainingRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	Platform     Platform          `json:"platform"`
	Account      string            `json:"account"`
	PostID       string            `json:"post_id"`
	PostText     string            `json:"post_text"`
	PostURL      string            `json:"post_url,omitempty"`
	LexicalScore int               `json:"lexical_score"`
	Analysis     *SemanticAnalysis `json:"analysis"`
	Verdict      *QualityVerdict   `json:"verdict,omitempty"`
	Patched      bool              `json:"patched"`
	Alerted      bool              `json:"alerted"`
}
