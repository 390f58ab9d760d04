package telegraph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/models"
	"gorm.io/gorm"
)

// DefaultPollInterval is the event log poll cadence when none is configured.
const DefaultPollInterval = 15 * time.Second

// pollBatchSize caps how many events one poll picks up.
const pollBatchSize = 64

// Watcher tails the event log. It remembers the last sequence number it
// has forwarded, so restarts only pick up events recorded after the
// watcher came online.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration

	mu            sync.Mutex
	lastSeq       uint
	lastDigestSeq uint
}

// WatcherOpts holds parameters for creating a Watcher.
type WatcherOpts struct {
	DB           *gorm.DB
	PollInterval time.Duration // defaults to DefaultPollInterval
}

// NewWatcher creates a Watcher positioned at the current tail of the
// event log. Pre-existing events are not replayed.
func NewWatcher(opts WatcherOpts) (*Watcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("telegraph: watcher: db is required")
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	tail, err := events.LatestSeq(opts.DB)
	if err != nil {
		return nil, fmt.Errorf("telegraph: watcher: seek tail: %w", err)
	}
	return &Watcher{
		db:            opts.DB,
		pollInterval:  poll,
		lastSeq:       tail,
		lastDigestSeq: tail,
	}, nil
}

// Poll runs one detection cycle and returns the events recorded since
// the previous poll, oldest first.
func (w *Watcher) Poll() ([]models.EventRecord, error) {
	w.mu.Lock()
	after := w.lastSeq
	w.mu.Unlock()

	recs, err := events.After(w.db, after, pollBatchSize)
	if err != nil {
		return nil, fmt.Errorf("telegraph: watcher: poll: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	w.lastSeq = recs[len(recs)-1].Seq
	w.mu.Unlock()
	return recs, nil
}

// Run starts the watcher loop. It polls on the configured interval and
// sends new events to the returned channel, which is closed when the
// context is cancelled.
func (w *Watcher) Run(ctx context.Context) <-chan models.EventRecord {
	ch := make(chan models.EventRecord, pollBatchSize)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recs, err := w.Poll()
				if err != nil {
					continue
				}
				for _, rec := range recs {
					select {
					case ch <- rec:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch
}

// BuildDigest summarizes activity since the previous digest. Returns
// nil when nothing happened, so quiet periods post no digest.
func (w *Watcher) BuildDigest() (*FormattedEvent, error) {
	w.mu.Lock()
	since := w.lastDigestSeq
	w.mu.Unlock()

	type kindCount struct {
		Kind  string
		Count int64
	}
	var counts []kindCount
	if err := w.db.Model(&models.EventRecord{}).
		Select("kind, COUNT(*) as count").
		Where("seq > ?", since).
		Group("kind").
		Order("kind ASC").
		Find(&counts).Error; err != nil {
		return nil, fmt.Errorf("telegraph: watcher: digest counts: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	tail, err := events.LatestSeq(w.db)
	if err != nil {
		return nil, fmt.Errorf("telegraph: watcher: digest tail: %w", err)
	}
	w.mu.Lock()
	w.lastDigestSeq = tail
	w.mu.Unlock()

	var total int64
	fields := make([]Field, 0, len(counts))
	for _, kc := range counts {
		total += kc.Count
		fields = append(fields, Field{
			Name:  kc.Kind,
			Value: fmt.Sprintf("%d", kc.Count),
			Short: true,
		})
	}

	return &FormattedEvent{
		Title:    "Switchyard digest",
		Body:     fmt.Sprintf("%d events since the last digest", total),
		Severity: "info",
		Color:    ColorInfo,
		Fields:   fields,
	}, nil
}

// LastSeq returns the newest sequence number the watcher has forwarded.
func (w *Watcher) LastSeq() uint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeq
}
