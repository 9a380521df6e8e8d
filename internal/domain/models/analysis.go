package models

import (
	"fmt"
	"strings"
)

// Urgency buckets how quickly the described event can move markets.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyHours     Urgency = "hours"
	UrgencyDays      Urgency = "days"
	UrgencyWeeks     Urgency = "weeks"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyImmediate, UrgencyHours, UrgencyDays, UrgencyWeeks:
		return true
	}
	return false
}

// urgencyAliases maps common model phrasings onto the canonical values.
var urgencyAliases = map[string]Urgency{
	"hour":        UrgencyHours,
	"hrs":         UrgencyHours,
	"day":         UrgencyDays,
	"week":        UrgencyWeeks,
	"immediately": UrgencyImmediate,
	"now":         UrgencyImmediate,
}

// NormalizeUrgency lowercases, trims, and resolves aliases. Returns
// (urgency, true) when the value maps to a canonical bucket.
func NormalizeUrgency(s string) (Urgency, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if u := Urgency(v); u.Valid() {
		return u, true
	}
	if u, ok := urgencyAliases[v]; ok {
		return u, true
	}
	return "", false
}

// MarketDirection holds the per-asset-class directional calls. Each field
// has its own enum: stocks/crypto are bullish|bearish|neutral, forex is
// usd_up|usd_down|neutral, commodities is up|down|neutral.
type MarketDirection struct {
	Stocks      string `json:"stocks"`
	Crypto      string `json:"crypto"`
	Forex       string `json:"forex"`
	Commodities string `json:"commodities"`
}

func (m MarketDirection) Validate() error {
	if !oneOf(m.Stocks, "bullish", "bearish", "neutral") {
		return fmt.Errorf("stocks direction %q invalid", m.Stocks)
	}
	if !oneOf(m.Crypto, "bullish", "bearish", "neutral") {
		return fmt.Errorf("crypto direction %q invalid", m.Crypto)
	}
	if !oneOf(m.Forex, "usd_up", "usd_down", "neutral") {
		return fmt.Errorf("forex direction %q invalid", m.Forex)
	}
	if !oneOf(m.Commodities, "up", "down", "neutral") {
		return fmt.Errorf("commodities direction %q invalid", m.Commodities)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// SemanticAnalysis is the model's structured read of a post.
type SemanticAnalysis struct {
	Score          int             `json:"market_impact_score"`
	Reasoning      string          `json:"reasoning"`
	Urgency        Urgency         `json:"urgency"`
	Direction      MarketDirection `json:"market_direction"`
	KeyEvents      []string        `json:"key_events,omitempty"`
	ImportantDates []string        `json:"important_dates,omitempty"`
	Model          string          `json:"model,omitempty"`
	ReviewNote     string          `json:"review_note,omitempty"`
}

// Validate enforces the strict output contract: score in [0,100],
// non-empty reasoning, canonical urgency, valid per-class directions.
func (a *SemanticAnalysis) Validate() error {
	if a.Score < 0 || a.Score > 100 {
		return fmt.Errorf("score %d out of range [0,100]", a.Score)
	}
	if strings.TrimSpace(a.Reasoning) == "" {
		return fmt.Errorf("reasoning is empty")
	}
	if !a.Urgency.Valid() {
		return fmt.Errorf("urgency %q invalid", a.Urgency)
	}
	if err := a.Direction.Validate(); err != nil {
		return fmt.Errorf("market direction: %w", err)
	}
	return nil
}

// SuggestedFixes carries the reviewer's corrections. Nil/empty fields mean
// no change for that field.
type SuggestedFixes struct {
	Reasoning string `json:"reasoning,omitempty"`
	Urgency   string `json:"urgency,omitempty"`
	Score     *int   `json:"score,omitempty"`
}

func (f *SuggestedFixes) Empty() bool {
	return f == nil || (f.Reasoning == "" && f.Urgency == "" && f.Score == nil)
}

// QualityVerdict is the quality gate's assessment of an analysis.
type QualityVerdict struct {
	Approved     bool            `json:"approved"`
	QualityScore int             `json:"quality_score"`
	IssuesFound  []string        `json:"issues_found,omitempty"`
	Fixes        *SuggestedFixes `json:"suggested_fixes,omitempty"`
}
