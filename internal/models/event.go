package models

import "time"

// EventRecord is one entry of the append-only event log. Seq doubles as
// the emission sequence number external indexers key on. Rows are written
// through the transaction of the mutation that produced them, so the log
// never shows an event whose mutation rolled back.
type EventRecord struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	Kind      string `gorm:"size:64;not null;index"`
	Agent     string `gorm:"size:64;index"`
	MessageID string `gorm:"size:64"`
	Detail    string `gorm:"type:text"`
	CreatedAt time.Time
}
