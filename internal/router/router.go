// Package router moves messages between registered agents. Every send
// passes the directory's liveness checks and a two-tier rate limit
// before anything is persisted, and each mutation commits the message,
// the sender's rate-limit bookkeeping, and the emitted event as one
// transaction.
package router

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/parlane/switchyard/internal/directory"
	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/faults"
	"github.com/parlane/switchyard/internal/models"
	"github.com/parlane/switchyard/internal/pausegate"
	"gorm.io/gorm"
)

// Bounds for the mutable minimum inter-message delay.
const (
	MinMessageDelay = time.Second
	MaxMessageDelay = time.Hour
)

// Defaults applied when Opts leaves the window settings zero.
const (
	DefaultWindow       = time.Hour
	DefaultMaxPerWindow = 100
)

type Router struct {
	db           *gorm.DB
	dir          *directory.Directory
	gate         *pausegate.Gate
	now          func() time.Time
	window       time.Duration
	maxPerWindow int

	mu sync.Mutex
}

type Opts struct {
	DB        *gorm.DB
	Directory *directory.Directory
	// Gate defaults to a pause gate over DomainRouter.
	Gate *pausegate.Gate
	// Now defaults to time.Now; tests inject a fake clock.
	Now          func() time.Time
	Window       time.Duration
	MaxPerWindow int
}

func New(opts Opts) (*Router, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("router: database handle is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("router: directory is required")
	}
	gate := opts.Gate
	if gate == nil {
		var err error
		gate, err = pausegate.New(opts.DB, pausegate.DomainRouter)
		if err != nil {
			return nil, err
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	maxPerWindow := opts.MaxPerWindow
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	return &Router{
		db:           opts.DB,
		dir:          opts.Directory,
		gate:         gate,
		now:          now,
		window:       window,
		maxPerWindow: maxPerWindow,
	}, nil
}

// Gate exposes the router's pause gate for administrative commands.
func (r *Router) Gate() *pausegate.Gate { return r.gate }

// Send routes a message from caller to the recipient and returns the
// new message ID. Checks run cheapest first: sender liveness, content,
// recipient liveness, then the stateful rate limit.
func (r *Router) Send(caller, to, content, messageType string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gate.CheckUnpaused(); err != nil {
		return "", err
	}

	sender, err := r.dir.Get(caller)
	if err != nil {
		return "", err
	}
	if !sender.Registered() || !sender.Active {
		return "", faults.Authorizationf("sender %s is not an active agent", caller)
	}
	if content == "" {
		return "", faults.Validationf("message content must not be empty")
	}
	recipient, err := r.dir.Get(to)
	if err != nil {
		return "", err
	}
	if !recipient.Registered() || !recipient.Active {
		return "", faults.Validationf("recipient %s is not an active agent", to)
	}

	var messageID string
	err = r.db.Transaction(func(tx *gorm.DB) error {
		var state models.RateLimitState
		if err := tx.Where("owner = ?", caller).Limit(1).Find(&state).Error; err != nil {
			return fmt.Errorf("router: load rate-limit state for %s: %w", caller, err)
		}
		delay, err := messageDelay(tx)
		if err != nil {
			return err
		}

		now := r.now()
		if state.TotalSent > 0 && now.Before(state.LastMessageAt.Add(delay)) {
			return faults.RateLimited(faults.RuleTooFrequent,
				"must wait %s between messages", delay)
		}
		// Lazy window rollover: the counter resets on the first send
		// at or past the window boundary, not on a timer.
		if state.TotalSent == 0 || !now.Before(state.LastMessageAt.Add(r.window)) {
			state.SentInWindow = 0
		}
		if state.SentInWindow >= r.maxPerWindow {
			return faults.RateLimited(faults.RuleWindowExceeded,
				"at most %d messages per %s", r.maxPerWindow, r.window)
		}

		messageID = deriveMessageID(caller, to, content, now, state.TotalSent)
		if err := tx.Create(&models.Message{
			MessageID:   messageID,
			FromAgent:   caller,
			ToAgent:     to,
			Content:     content,
			MessageType: messageType,
			SentAt:      now,
		}).Error; err != nil {
			return fmt.Errorf("router: store message: %w", err)
		}

		fresh := state.Owner == ""
		state.Owner = caller
		state.LastMessageAt = now
		state.SentInWindow++
		state.TotalSent++
		if fresh {
			err = tx.Create(&state).Error
		} else {
			err = tx.Save(&state).Error
		}
		if err != nil {
			return fmt.Errorf("router: update rate-limit state for %s: %w", caller, err)
		}

		return events.Record(tx, events.Event{
			Kind:      events.KindMessageSent,
			Agent:     caller,
			MessageID: messageID,
			Detail: map[string]any{
				"to":           to,
				"message_type": messageType,
			},
		})
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// MarkDelivered sets the delivered flag. Only the recipient may confirm
// delivery, and a delivered message never reverts.
func (r *Router) MarkDelivered(caller, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gate.CheckUnpaused(); err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		if err := tx.Where("message_id = ?", messageID).Limit(1).Find(&msg).Error; err != nil {
			return fmt.Errorf("router: lookup message %s: %w", messageID, err)
		}
		if msg.MessageID == "" {
			return faults.Validationf("unknown message %s", messageID)
		}
		if caller != msg.ToAgent {
			return faults.Authorizationf("only the recipient may mark %s delivered", messageID)
		}
		if msg.Delivered {
			return faults.Statef("message %s already delivered", messageID)
		}

		if err := tx.Model(&models.Message{}).
			Where("message_id = ?", messageID).
			Update("delivered", true).Error; err != nil {
			return fmt.Errorf("router: mark %s delivered: %w", messageID, err)
		}

		return events.Record(tx, events.Event{
			Kind:      events.KindMessageDelivered,
			Agent:     caller,
			MessageID: messageID,
		})
	})
}

// Get returns the message with the given ID.
func (r *Router) Get(messageID string) (models.Message, error) {
	var msg models.Message
	if err := r.db.Where("message_id = ?", messageID).Limit(1).Find(&msg).Error; err != nil {
		return models.Message{}, fmt.Errorf("router: lookup message %s: %w", messageID, err)
	}
	if msg.MessageID == "" {
		return models.Message{}, faults.Validationf("unknown message %q", messageID)
	}
	return msg, nil
}

// Messages returns the full inbox for agent in insertion order.
func (r *Router) Messages(agent string) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.Where("to_agent = ?", agent).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("router: list messages for %s: %w", agent, err)
	}
	return msgs, nil
}

// UndeliveredMessages returns the inbox filtered to undelivered
// messages, order preserved.
func (r *Router) UndeliveredMessages(agent string) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.Where("to_agent = ? AND delivered = ?", agent, false).
		Order("seq ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("router: list undelivered messages for %s: %w", agent, err)
	}
	return msgs, nil
}

// MessageDelay reads the current minimum inter-message delay.
func (r *Router) MessageDelay() (time.Duration, error) {
	return messageDelay(r.db)
}

// UpdateDelay replaces the minimum inter-message delay. Restricted to
// the pause authority; the new delay must lie in
// [MinMessageDelay, MaxMessageDelay].
func (r *Router) UpdateDelay(caller string, delay time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.gate.AssertAuthority(caller); err != nil {
		return err
	}
	if delay < MinMessageDelay || delay > MaxMessageDelay {
		return faults.Validationf("message delay %s outside [%s, %s]",
			delay, MinMessageDelay, MaxMessageDelay)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RouterSetting{}).
			Where("id = ?", 1).
			Update("message_delay_nanos", delay.Nanoseconds())
		if result.Error != nil {
			return fmt.Errorf("router: update message delay: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("router: settings row not seeded")
		}
		return events.Record(tx, events.Event{
			Kind:  events.KindRateLimitUpdated,
			Agent: caller,
			Detail: map[string]any{
				"new_delay": delay.String(),
			},
		})
	})
}

func messageDelay(tx *gorm.DB) (time.Duration, error) {
	var setting models.RouterSetting
	if err := tx.Where("id = ?", 1).Limit(1).Find(&setting).Error; err != nil {
		return 0, fmt.Errorf("router: load settings: %w", err)
	}
	if setting.ID == 0 {
		return 0, fmt.Errorf("router: settings row not seeded")
	}
	return time.Duration(setting.MessageDelayNanos), nil
}

// deriveMessageID hashes the send parameters together with the sender's
// running send count. The counter component makes repeated identical
// sends yield distinct IDs even at identical timestamps.
func deriveMessageID(from, to, content string, at time.Time, totalSent uint64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%d|%d",
		from, to, content, at.UnixNano(), totalSent))
	return hex.EncodeToString(sum[:])
}
