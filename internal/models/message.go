package models

import "time"

// Message represents agent-to-agent communication. MessageID is derived
// from sender, recipient, content, send time, and the sender's running
// send count, so repeated identical content still yields distinct IDs.
// Seq preserves insertion order for per-recipient history queries.
type Message struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	MessageID   string `gorm:"uniqueIndex;size:64;not null"`
	FromAgent   string `gorm:"size:64;not null;index"`
	ToAgent     string `gorm:"size:64;not null;index"`
	Content     string `gorm:"type:text;not null"`
	MessageType string `gorm:"size:64"`
	SentAt      time.Time
	Delivered   bool `gorm:"default:false;index"`
}

// RateLimitState is per-sender rate-limit bookkeeping. TotalSent is the
// monotonic send counter salted into message IDs; SentInWindow resets
// lazily when a send arrives after the window has elapsed.
type RateLimitState struct {
	Owner         string `gorm:"primaryKey;size:64"`
	LastMessageAt time.Time
	SentInWindow  int
	TotalSent     uint64
}

// RouterSetting is a singleton row holding mutable router tuning. The
// minimum inter-message delay is stored in nanoseconds so the pause
// authority's updates survive restarts.
type RouterSetting struct {
	ID                uint  `gorm:"primaryKey"`
	MessageDelayNanos int64 `gorm:"not null"`
}
