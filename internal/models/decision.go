package models

import "time"

// Decision is one link of the hash-chained provenance ledger. Hash covers
// PrevHash, the acting agent, the action, and the payload; PrevHash of
// the first record is empty.
type Decision struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	Agent      string `gorm:"size:64;not null;index"`
	Action     string `gorm:"size:128;not null"`
	Payload    string `gorm:"type:text"`
	PrevHash   string `gorm:"size:64"`
	Hash       string `gorm:"size:64;not null;uniqueIndex"`
	Signature  string `gorm:"type:text"`
	RecordedAt time.Time
}
