package models

import "time"

// SchedulerMode names the scheduler's adaptive state.
type SchedulerMode string

const (
	ModeNormal       SchedulerMode = "normal"
	ModeEmptyBackoff SchedulerMode = "empty_backoff"
	ModeBlocked      SchedulerMode = "blocked"
)

// PlatformBlock is one platform's active backoff window.
type PlatformBlock struct {
	Platform Platform  `json:"platform"`
	Until    time.Time `json:"until"`
	Reason   string    `json:"reason"`
}

// SchedulerSnapshot is a read-only copy of the scheduler's state for the
// status API. The scheduler owns the live state; handlers only ever see
// these copies.
type SchedulerSnapshot struct {
	Mode         SchedulerMode   `json:"mode"`
	CurrentDelay time.Duration   `json:"-"`
	DelaySeconds float64         `json:"current_delay_seconds"`
	EmptyCycles  int             `json:"consecutive_empty_cycles"`
	Blocked      []PlatformBlock `json:"blocked,omitempty"`
	LastCycleAt  time.Time       `json:"last_cycle_at"`
	CyclePosts   int             `json:"last_cycle_posts"`
	TotalPosts   int64           `json:"total_posts"`
	TotalAlerts  int64           `json:"total_alerts"`
}

// StatusRequest narrows the status payload to one section.
type StatusRequest struct {
	Section string `query:"section" default:"all" validate:"oneof=all scheduler blocks"`
}

// StatusResponse is the public status payload.
type StatusResponse struct {
	Uptime    string             `json:"uptime,omitempty"`
	Scheduler *SchedulerSnapshot `json:"scheduler,omitempty"`
	Blocked   []PlatformBlock    `json:"blocked,omitempty"`
}
