package models

import "time"

// Reputation bounds. Every agent starts at ReputationDefault; the pause
// authority moves it in saturating steps, never past the bounds.
const (
	ReputationMin     = 0
	ReputationMax     = 200
	ReputationDefault = 100
)

// Agent is a registered participant in the directory. Owner is the
// identity key and is set exactly once at registration; an empty Owner on
// a looked-up record means "never registered".
type Agent struct {
	Owner        string `gorm:"primaryKey;size:64"`
	Name         string `gorm:"size:128;not null"`
	Endpoint     string `gorm:"size:256;not null"`
	Reputation   int    `gorm:"default:100"`
	Active       bool   `gorm:"default:true;index"`
	RegisteredAt time.Time
}

// Registered reports whether this record belongs to a registered agent,
// as opposed to the zero value returned for unknown identities.
func (a Agent) Registered() bool { return a.Owner != "" }

// AgentCapability is one row of the capability index. Rows are written
// only at registration and never removed: deactivated agents stay
// discoverable, and liveness is the caller's concern.
type AgentCapability struct {
	Capability string `gorm:"primaryKey;size:128"`
	Owner      string `gorm:"primaryKey;size:64"`
}

// DirectoryState is a singleton row carrying roster-wide aggregates.
// ActiveAgents is updated in the same transaction as the lifecycle
// mutation that changes it.
type DirectoryState struct {
	ID           uint `gorm:"primaryKey"`
	ActiveAgents int64
}
