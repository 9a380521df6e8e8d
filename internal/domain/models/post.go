package models

import (
	"fmt"
	"time"
)

// Platform identifies the social platform a post originated from.
type Platform string

const (
	PlatformX           Platform = "x"
	PlatformTruthSocial Platform = "truthsocial"
	PlatformRSS         Platform = "rss"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformX, PlatformTruthSocial, PlatformRSS:
		return true
	}
	return false
}

// Media is an attachment on a post (image, video, preview card).
type Media struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Post is a normalized social media post after HTML cleanup.
// Text holds the cleaned plain text; ID is the platform-native identifier.
type Post struct {
	Platform  Platform  `json:"platform"`
	Account   string    `json:"account"`
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Media     []Media   `json:"media,omitempty"`
}

// Key is the dedup identity: stable across sources and restarts.
func (p *Post) Key() string {
	return fmt.Sprintf("%s:%s", p.Platform, p.ID)
}
