// Package telegraph forwards Switchyard events to chat platforms
// (Slack, Discord). The daemon tails the event log and posts each new
// event, plus a cron-scheduled activity digest.
package telegraph

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/parlane/switchyard/internal/config"
	"gorm.io/gorm"
)

// Adapter is the interface platform-specific implementations satisfy.
// Telegraph only posts; it never reads from the platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	Channel string           // target channel (empty for the adapter default)
	Text    string           // plain message text
	Events  []FormattedEvent // structured event attachments
}

// FormattedEvent is a Switchyard event formatted for display in chat.
type FormattedEvent struct {
	Title    string  // headline (e.g. "Agent agent-a registered")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Daemon is the main telegraph process. It connects to a chat platform
// via an Adapter, forwards events from the watcher, and fires digests
// on the configured cron schedule.
type Daemon struct {
	db      *gorm.DB
	cfg     *config.Config
	adapter Adapter
	out     io.Writer
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB      *gorm.DB
	Config  *config.Config
	Adapter Adapter
	Out     io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("telegraph: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("telegraph: config is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("telegraph: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		db:      opts.DB,
		cfg:     opts.Config,
		adapter: opts.Adapter,
		out:     out,
	}, nil
}

// Run starts the telegraph daemon. It connects the adapter, starts the
// event watcher and digest scheduler, and blocks until the context is
// cancelled. On shutdown it closes the adapter gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Telegraph connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("telegraph: connect: %w", err)
	}

	watcher, err := NewWatcher(WatcherOpts{
		DB:           d.db,
		PollInterval: d.cfg.Telegraph.PollInterval.Std(),
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("telegraph: build watcher: %w", err)
	}
	eventsCh := watcher.Run(ctx)

	go d.runDigestScheduler(ctx, watcher)

	fmt.Fprintf(d.out, "Telegraph online\n")
	if err := d.adapter.Send(ctx, OutboundMessage{
		Channel: d.cfg.Telegraph.Channel,
		Text:    "Telegraph online",
	}); err != nil {
		log.Printf("telegraph: send online message: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Telegraph shutting down...\n")
			d.sendShutdown()
			if err := d.adapter.Close(); err != nil {
				log.Printf("telegraph: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Telegraph stopped\n")
			return nil

		case rec, ok := <-eventsCh:
			if !ok {
				return nil
			}
			formatted, err := FormatEvent(rec)
			if err != nil {
				log.Printf("telegraph: format event %d: %v", rec.Seq, err)
				continue
			}
			if err := d.adapter.Send(ctx, OutboundMessage{
				Channel: d.cfg.Telegraph.Channel,
				Events:  []FormattedEvent{formatted},
			}); err != nil {
				log.Printf("telegraph: send event %d: %v", rec.Seq, err)
			}
		}
	}
}

// runDigestScheduler fires activity digests on the configured cron
// expression. It returns immediately when no schedule is configured.
func (d *Daemon) runDigestScheduler(ctx context.Context, watcher *Watcher) {
	expr := d.cfg.Telegraph.DigestCron
	if expr == "" {
		return
	}

	var timer *time.Timer
	if wait := nextCronDuration(expr); wait > 0 {
		timer = time.NewTimer(wait)
	} else {
		log.Printf("telegraph: invalid digest cron %q, digests disabled", expr)
		return
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.fireDigest(ctx, watcher)
			if wait := nextCronDuration(expr); wait > 0 {
				timer.Reset(wait)
			} else {
				return
			}
		}
	}
}

// fireDigest builds and sends one activity digest (best-effort).
func (d *Daemon) fireDigest(ctx context.Context, watcher *Watcher) {
	digest, err := watcher.BuildDigest()
	if err != nil {
		log.Printf("telegraph: digest: %v", err)
		return
	}
	if digest == nil {
		// No activity since the last digest.
		return
	}
	if err := d.adapter.Send(ctx, OutboundMessage{
		Channel: d.cfg.Telegraph.Channel,
		Events:  []FormattedEvent{*digest},
	}); err != nil {
		log.Printf("telegraph: send digest: %v", err)
	}
}

// sendShutdown posts a shutdown message to the adapter (best-effort).
func (d *Daemon) sendShutdown() {
	if err := d.adapter.Send(context.Background(), OutboundMessage{
		Channel: d.cfg.Telegraph.Channel,
		Text:    "Telegraph shutting down",
	}); err != nil {
		log.Printf("telegraph: send shutdown message: %v", err)
	}
}
