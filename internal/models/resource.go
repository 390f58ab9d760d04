package models

import "time"

// Resource is a discoverable piece of owner-scoped metadata: a dataset,
// model endpoint, document, or similar. Name is globally unique; only the
// owner may update or remove a record.
type Resource struct {
	Name      string `gorm:"primaryKey;size:128"`
	Owner     string `gorm:"size:64;not null;index"`
	URI       string `gorm:"size:256;not null"`
	Metadata  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
