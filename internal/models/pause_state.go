package models

// PauseState is the halt switch for one pause domain. Directory and
// router each own a domain, so one can be halted without the other.
// Authority is the single identity allowed to flip the switch and to
// administer reputation.
type PauseState struct {
	Domain    string `gorm:"primaryKey;size:32"`
	Paused    bool   `gorm:"default:false"`
	Authority string `gorm:"size:64;not null"`
}
