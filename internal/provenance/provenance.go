// Package provenance keeps a hash-chained audit trail of AI-produced
// decisions. Each record's hash covers its predecessor's hash, so any
// tampering with a stored record breaks verification from that link on.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parlane/switchyard/internal/directory"
	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/faults"
	"github.com/parlane/switchyard/internal/models"
	"gorm.io/gorm"
)

// Verifier checks an agent's signature over a decision payload. The
// signature scheme is supplied by the caller; the ledger only records
// the opaque signature string alongside the chain.
type Verifier interface {
	Verify(agent, action, payload, signature string) error
}

// AcceptAll is a Verifier that admits every signature. Useful for tests
// and for deployments that defer verification to an external auditor.
type AcceptAll struct{}

func (AcceptAll) Verify(agent, action, payload, signature string) error { return nil }

type Ledger struct {
	db       *gorm.DB
	dir      *directory.Directory
	verifier Verifier
	now      func() time.Time

	mu sync.Mutex
}

type Opts struct {
	DB        *gorm.DB
	Directory *directory.Directory
	// Verifier defaults to AcceptAll.
	Verifier Verifier
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(opts Opts) (*Ledger, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("provenance: database handle is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("provenance: directory is required")
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = AcceptAll{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{db: opts.DB, dir: opts.Directory, verifier: verifier, now: now}, nil
}

// Record appends a decision for caller. The caller must be a registered
// agent, and the signature must pass the configured verifier.
func (l *Ledger) Record(caller, action, payload, signature string) (models.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if action == "" {
		return models.Decision{}, faults.Validationf("decision action must not be empty")
	}
	agent, err := l.dir.Get(caller)
	if err != nil {
		return models.Decision{}, err
	}
	if !agent.Registered() {
		return models.Decision{}, faults.Validationf("agent %s is not registered", caller)
	}
	if err := l.verifier.Verify(caller, action, payload, signature); err != nil {
		return models.Decision{}, faults.Authorizationf("signature rejected for %s: %v", caller, err)
	}

	var decision models.Decision
	err = l.db.Transaction(func(tx *gorm.DB) error {
		prevHash, err := headHash(tx)
		if err != nil {
			return err
		}
		decision = models.Decision{
			Agent:      caller,
			Action:     action,
			Payload:    payload,
			PrevHash:   prevHash,
			Hash:       chainHash(prevHash, caller, action, payload),
			Signature:  signature,
			RecordedAt: l.now(),
		}
		if err := tx.Create(&decision).Error; err != nil {
			return fmt.Errorf("provenance: store decision: %w", err)
		}
		return events.Record(tx, events.Event{
			Kind:  events.KindDecisionRecorded,
			Agent: caller,
			Detail: map[string]any{
				"action": action,
				"hash":   decision.Hash,
			},
		})
	})
	if err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}

// VerifyChain walks the ledger from the first record and reports the
// sequence number of the first broken link.
func (l *Ledger) VerifyChain() error {
	var decisions []models.Decision
	if err := l.db.Order("seq ASC").Find(&decisions).Error; err != nil {
		return fmt.Errorf("provenance: load chain: %w", err)
	}

	prevHash := ""
	for _, d := range decisions {
		if d.PrevHash != prevHash {
			return fmt.Errorf("provenance: chain broken at seq %d: prev hash mismatch", d.Seq)
		}
		if d.Hash != chainHash(d.PrevHash, d.Agent, d.Action, d.Payload) {
			return fmt.Errorf("provenance: chain broken at seq %d: record hash mismatch", d.Seq)
		}
		prevHash = d.Hash
	}
	return nil
}

// List returns the full chain in recording order, optionally filtered
// to one agent.
func (l *Ledger) List(agent string) ([]models.Decision, error) {
	query := l.db.Order("seq ASC")
	if agent != "" {
		query = query.Where("agent = ?", agent)
	}
	var decisions []models.Decision
	if err := query.Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("provenance: list decisions: %w", err)
	}
	return decisions, nil
}

// Head returns the most recent decision, or a zero-valued record for an
// empty ledger.
func (l *Ledger) Head() (models.Decision, error) {
	var decision models.Decision
	err := l.db.Order("seq DESC").First(&decision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Decision{}, nil
	}
	if err != nil {
		return models.Decision{}, fmt.Errorf("provenance: load head: %w", err)
	}
	return decision, nil
}

func headHash(tx *gorm.DB) (string, error) {
	var decision models.Decision
	err := tx.Order("seq DESC").First(&decision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("provenance: load head: %w", err)
	}
	return decision.Hash, nil
}

func chainHash(prevHash, agent, action, payload string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s", prevHash, agent, action, payload))
	return hex.EncodeToString(sum[:])
}
