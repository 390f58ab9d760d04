// Package pausegate implements the emergency halt switch: one paused
// flag and one authority identity per domain. Every mutating directory
// and router operation consults its gate first.
package pausegate

import (
	"errors"
	"fmt"

	"github.com/parlane/switchyard/internal/faults"
	"github.com/parlane/switchyard/internal/models"
	"gorm.io/gorm"
)

// Pause domains. The directory and the router are halted independently.
const (
	DomainDirectory = "directory"
	DomainRouter    = "router"
)

// Gate is a handle on one domain's pause state. The row must exist
// before use (db.Seed creates it).
type Gate struct {
	db     *gorm.DB
	domain string
}

// New creates a Gate for the given domain.
func New(gormDB *gorm.DB, domain string) (*Gate, error) {
	if gormDB == nil {
		return nil, fmt.Errorf("pausegate: db is required")
	}
	if domain == "" {
		return nil, fmt.Errorf("pausegate: domain is required")
	}
	return &Gate{db: gormDB, domain: domain}, nil
}

// Domain returns the domain this gate guards.
func (g *Gate) Domain() string { return g.domain }

func (g *Gate) state() (models.PauseState, error) {
	var ps models.PauseState
	err := g.db.First(&ps, "domain = ?", g.domain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ps, fmt.Errorf("pausegate: domain %q not seeded", g.domain)
	}
	if err != nil {
		return ps, fmt.Errorf("pausegate: read %q: %w", g.domain, err)
	}
	return ps, nil
}

// IsPaused reports whether the domain is currently halted.
func (g *Gate) IsPaused() (bool, error) {
	ps, err := g.state()
	if err != nil {
		return false, err
	}
	return ps.Paused, nil
}

// CheckUnpaused returns a PausedError when the domain is halted. It is
// the first check of every mutating operation behind this gate.
func (g *Gate) CheckUnpaused() error {
	paused, err := g.IsPaused()
	if err != nil {
		return err
	}
	if paused {
		return &faults.PausedError{Domain: g.domain}
	}
	return nil
}

// Authority returns the identity permitted to pause this domain and
// administer reputation.
func (g *Gate) Authority() (string, error) {
	ps, err := g.state()
	if err != nil {
		return "", err
	}
	return ps.Authority, nil
}

// AssertAuthority fails with an AuthorizationError unless caller is the
// domain's current authority.
func (g *Gate) AssertAuthority(caller string) error {
	authority, err := g.Authority()
	if err != nil {
		return err
	}
	if caller == "" || caller != authority {
		return faults.Authorizationf("%q is not the pause authority for %s", caller, g.domain)
	}
	return nil
}

// Pause halts the domain. Authority-gated; StateError when already paused.
func (g *Gate) Pause(caller string) error {
	return g.setPaused(caller, true)
}

// Unpause resumes the domain. Authority-gated; StateError when not paused.
func (g *Gate) Unpause(caller string) error {
	return g.setPaused(caller, false)
}

func (g *Gate) setPaused(caller string, paused bool) error {
	if err := g.AssertAuthority(caller); err != nil {
		return err
	}
	ps, err := g.state()
	if err != nil {
		return err
	}
	if ps.Paused == paused {
		if paused {
			return faults.Statef("%s is already paused", g.domain)
		}
		return faults.Statef("%s is not paused", g.domain)
	}
	if err := g.db.Model(&models.PauseState{}).
		Where("domain = ?", g.domain).
		Update("paused", paused).Error; err != nil {
		return fmt.Errorf("pausegate: update %q: %w", g.domain, err)
	}
	return nil
}

// TransferAuthority hands the pause-authority role to next. Only the
// current authority may transfer it.
func (g *Gate) TransferAuthority(caller, next string) error {
	if err := g.AssertAuthority(caller); err != nil {
		return err
	}
	if next == "" {
		return faults.Validationf("new authority identity is required")
	}
	if err := g.db.Model(&models.PauseState{}).
		Where("domain = ?", g.domain).
		Update("authority", next).Error; err != nil {
		return fmt.Errorf("pausegate: transfer authority for %q: %w", g.domain, err)
	}
	return nil
}
