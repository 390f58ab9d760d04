// Package events provides the append-only event log consumed by the
// telegraph daemon and external indexers.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/parlane/switchyard/internal/models"
	"gorm.io/gorm"
)

// Event kinds emitted by the directory, router, and provenance ledger.
const (
	KindAgentRegistered   = "agent.registered"
	KindAgentUpdated      = "agent.updated"
	KindAgentDeactivated  = "agent.deactivated"
	KindAgentReactivated  = "agent.reactivated"
	KindReputationChanged = "reputation.changed"
	KindMessageSent       = "message.sent"
	KindMessageDelivered  = "message.delivered"
	KindRateLimitUpdated  = "ratelimit.updated"
	KindDecisionRecorded  = "decision.recorded"
)

// Event is one observability record before persistence. Detail holds
// kind-specific fields and is stored as JSON.
type Event struct {
	Kind      string
	Agent     string
	MessageID string
	Detail    map[string]any
}

// Record appends the event through tx. Callers pass the transaction of
// the mutation that produced the event, so a rolled-back mutation never
// leaves a stray event behind.
func Record(tx *gorm.DB, evt Event) error {
	if evt.Kind == "" {
		return fmt.Errorf("events: kind is required")
	}

	detail := ""
	if len(evt.Detail) > 0 {
		data, err := json.Marshal(evt.Detail)
		if err != nil {
			return fmt.Errorf("events: marshal detail for %s: %w", evt.Kind, err)
		}
		detail = string(data)
	}

	rec := models.EventRecord{
		Kind:      evt.Kind,
		Agent:     evt.Agent,
		MessageID: evt.MessageID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("events: record %s: %w", evt.Kind, err)
	}
	return nil
}

// After returns up to limit events with Seq greater than seq, in
// emission order. limit <= 0 means no limit.
func After(gormDB *gorm.DB, seq uint, limit int) ([]models.EventRecord, error) {
	q := gormDB.Where("seq > ?", seq).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []models.EventRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("events: after %d: %w", seq, err)
	}
	return recs, nil
}

// LatestSeq returns the highest sequence number in the log, zero when
// the log is empty.
func LatestSeq(gormDB *gorm.DB) (uint, error) {
	var rec models.EventRecord
	err := gormDB.Order("seq DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("events: latest seq: %w", err)
	}
	return rec.Seq, nil
}

// DetailMap unmarshals a record's detail JSON, returning an empty map
// for records with no detail.
func DetailMap(rec models.EventRecord) (map[string]any, error) {
	if rec.Detail == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(rec.Detail), &m); err != nil {
		return nil, fmt.Errorf("events: unmarshal detail of seq %d: %w", rec.Seq, err)
	}
	return m, nil
}
