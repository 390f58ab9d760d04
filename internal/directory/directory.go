// Package directory implements the agent registry: identity records, the
// capability index, reputation administration, and the active-agent
// aggregate. It is the source of truth for whether a party may act.
package directory

import (
	"fmt"
	"sync"
	"time"

	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/faults"
	"github.com/parlane/switchyard/internal/models"
	"github.com/parlane/switchyard/internal/pausegate"
	"gorm.io/gorm"
)

// Directory owns Agent records and the capability index. All mutations
// run under one mutex and one transaction so the index and the active
// counter can never drift from the roster.
type Directory struct {
	db   *gorm.DB
	gate *pausegate.Gate
	now  func() time.Time

	mu sync.Mutex
}

// Opts holds parameters for creating a Directory.
type Opts struct {
	DB   *gorm.DB
	Gate *pausegate.Gate  // defaults to a gate on the directory domain
	Now  func() time.Time // defaults to time.Now; injectable for tests
}

// New creates a Directory.
func New(opts Opts) (*Directory, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("directory: db is required")
	}
	gate := opts.Gate
	if gate == nil {
		var err error
		gate, err = pausegate.New(opts.DB, pausegate.DomainDirectory)
		if err != nil {
			return nil, fmt.Errorf("directory: build gate: %w", err)
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Directory{db: opts.DB, gate: gate, now: now}, nil
}

// Gate returns the pause gate guarding this directory.
func (d *Directory) Gate() *pausegate.Gate { return d.gate }

// Register creates the caller's agent record. The caller identity is the
// owner key and cannot be changed afterwards. Capabilities are indexed
// once, here, and never removed.
func (d *Directory) Register(caller, name, endpoint string, capabilities []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.gate.CheckUnpaused(); err != nil {
		return err
	}
	if caller == "" {
		return faults.Validationf("caller identity is required")
	}
	if name == "" {
		return faults.Validationf("name is required")
	}
	if endpoint == "" {
		return faults.Validationf("endpoint is required")
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Agent
		if err := tx.Limit(1).Find(&existing, "owner = ?", caller).Error; err != nil {
			return fmt.Errorf("directory: lookup %s: %w", caller, err)
		}
		if existing.Registered() {
			return faults.Validationf("agent %s is already registered", caller)
		}

		agent := models.Agent{
			Owner:        caller,
			Name:         name,
			Endpoint:     endpoint,
			Reputation:   models.ReputationDefault,
			Active:       true,
			RegisteredAt: d.now(),
		}
		if err := tx.Create(&agent).Error; err != nil {
			return fmt.Errorf("directory: create %s: %w", caller, err)
		}

		seen := make(map[string]bool, len(capabilities))
		for _, capability := range capabilities {
			if capability == "" || seen[capability] {
				continue
			}
			seen[capability] = true
			row := models.AgentCapability{Capability: capability, Owner: caller}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("directory: index capability %q for %s: %w", capability, caller, err)
			}
		}

		if err := adjustActiveCount(tx, +1); err != nil {
			return err
		}

		return events.Record(tx, events.Event{
			Kind:  events.KindAgentRegistered,
			Agent: caller,
			Detail: map[string]any{
				"name":     name,
				"endpoint": endpoint,
			},
		})
	})
}

// UpdateEndpoint replaces the caller's endpoint. Owner-only.
func (d *Directory) UpdateEndpoint(caller, endpoint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.gate.CheckUnpaused(); err != nil {
		return err
	}
	if endpoint == "" {
		return faults.Validationf("endpoint is required")
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		agent, err := lookup(tx, caller)
		if err != nil {
			return err
		}
		if !agent.Registered() {
			return faults.Authorizationf("%q is not a registered agent", caller)
		}

		if err := tx.Model(&models.Agent{}).
			Where("owner = ?", caller).
			Update("endpoint", endpoint).Error; err != nil {
			return fmt.Errorf("directory: update endpoint for %s: %w", caller, err)
		}

		return events.Record(tx, events.Event{
			Kind:   events.KindAgentUpdated,
			Agent:  caller,
			Detail: map[string]any{"endpoint": endpoint},
		})
	})
}

// Deactivate soft-deletes the caller's record. The agent stays in the
// roster and the capability index but can no longer send or receive.
func (d *Directory) Deactivate(caller string) error {
	return d.setActive(caller, false)
}

// Reactivate restores a deactivated agent.
func (d *Directory) Reactivate(caller string) error {
	return d.setActive(caller, true)
}

func (d *Directory) setActive(caller string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.gate.CheckUnpaused(); err != nil {
		return err
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		agent, err := lookup(tx, caller)
		if err != nil {
			return err
		}
		if !agent.Registered() {
			if active {
				return faults.Statef("%q was never registered", caller)
			}
			return faults.Authorizationf("%q is not a registered agent", caller)
		}
		if agent.Active == active {
			if active {
				return faults.Statef("agent %s is already active", caller)
			}
			return faults.Statef("agent %s is already inactive", caller)
		}

		if err := tx.Model(&models.Agent{}).
			Where("owner = ?", caller).
			Update("active", active).Error; err != nil {
			return fmt.Errorf("directory: set active=%v for %s: %w", active, caller, err)
		}

		delta := int64(-1)
		kind := events.KindAgentDeactivated
		if active {
			delta = +1
			kind = events.KindAgentReactivated
		}
		if err := adjustActiveCount(tx, delta); err != nil {
			return err
		}
		return events.Record(tx, events.Event{Kind: kind, Agent: caller})
	})
}

// IncreaseReputation raises the agent's reputation by amount, saturating
// at the upper bound. Pause-authority only.
func (d *Directory) IncreaseReputation(caller, owner string, amount int) error {
	return d.adjustReputation(caller, owner, amount)
}

// DecreaseReputation lowers the agent's reputation by amount, saturating
// at the lower bound. Pause-authority only.
func (d *Directory) DecreaseReputation(caller, owner string, amount int) error {
	return d.adjustReputation(caller, owner, -amount)
}

func (d *Directory) adjustReputation(caller, owner string, amount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.gate.CheckUnpaused(); err != nil {
		return err
	}
	if err := d.gate.AssertAuthority(caller); err != nil {
		return err
	}
	if amount == 0 {
		return faults.Validationf("amount must be non-zero")
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		agent, err := lookup(tx, owner)
		if err != nil {
			return err
		}
		if !agent.Registered() {
			return faults.Validationf("agent %q was never registered", owner)
		}

		next := agent.Reputation + amount
		if next > models.ReputationMax {
			next = models.ReputationMax
		}
		if next < models.ReputationMin {
			next = models.ReputationMin
		}

		if err := tx.Model(&models.Agent{}).
			Where("owner = ?", owner).
			Update("reputation", next).Error; err != nil {
			return fmt.Errorf("directory: update reputation for %s: %w", owner, err)
		}

		return events.Record(tx, events.Event{
			Kind:  events.KindReputationChanged,
			Agent: owner,
			Detail: map[string]any{
				"delta":     next - agent.Reputation,
				"new_value": next,
			},
		})
	})
}

// Get returns the agent record for owner, or a zero-valued record when
// the identity was never registered. Unknown identities are not errors.
func (d *Directory) Get(owner string) (models.Agent, error) {
	return lookup(d.db, owner)
}

// FindByCapability returns every owner ever indexed under the
// capability, including deactivated ones. Callers needing live agents
// must filter with Get.
func (d *Directory) FindByCapability(capability string) ([]string, error) {
	var rows []models.AgentCapability
	if err := d.db.Where("capability = ?", capability).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("directory: find by capability %q: %w", capability, err)
	}
	owners := make([]string, 0, len(rows))
	for _, row := range rows {
		owners = append(owners, row.Owner)
	}
	return owners, nil
}

// Capabilities returns the capabilities indexed for one owner, sorted.
func (d *Directory) Capabilities(owner string) ([]string, error) {
	var rows []models.AgentCapability
	if err := d.db.Where("owner = ?", owner).Order("capability ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("directory: capabilities of %q: %w", owner, err)
	}
	caps := make([]string, 0, len(rows))
	for _, row := range rows {
		caps = append(caps, row.Capability)
	}
	return caps, nil
}

// Roster returns all registered agents in registration order.
func (d *Directory) Roster() ([]models.Agent, error) {
	var agents []models.Agent
	if err := d.db.Order("registered_at ASC, owner ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("directory: roster: %w", err)
	}
	return agents, nil
}

// ActiveCount returns the maintained active-agent counter.
func (d *Directory) ActiveCount() (int64, error) {
	var state models.DirectoryState
	if err := d.db.First(&state, 1).Error; err != nil {
		return 0, fmt.Errorf("directory: read state: %w", err)
	}
	return state.ActiveAgents, nil
}

// CheckActiveCountInvariant compares the maintained counter against a
// fresh count of active rows and fails when they disagree.
func (d *Directory) CheckActiveCountInvariant() error {
	count, err := d.ActiveCount()
	if err != nil {
		return err
	}
	var actual int64
	if err := d.db.Model(&models.Agent{}).Where("active = ?", true).Count(&actual).Error; err != nil {
		return fmt.Errorf("directory: count active rows: %w", err)
	}
	if count != actual {
		return fmt.Errorf("directory: active counter %d disagrees with roster count %d", count, actual)
	}
	return nil
}

// lookup fetches an agent record, returning the zero value when absent.
func lookup(tx *gorm.DB, owner string) (models.Agent, error) {
	var agent models.Agent
	if owner == "" {
		return agent, nil
	}
	if err := tx.Limit(1).Find(&agent, "owner = ?", owner).Error; err != nil {
		return models.Agent{}, fmt.Errorf("directory: lookup %s: %w", owner, err)
	}
	return agent, nil
}

// adjustActiveCount moves the aggregate inside the caller's transaction.
func adjustActiveCount(tx *gorm.DB, delta int64) error {
	result := tx.Model(&models.DirectoryState{}).
		Where("id = ?", 1).
		Update("active_agents", gorm.Expr("active_agents + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("directory: adjust active count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("directory: state row not seeded")
	}
	return nil
}
