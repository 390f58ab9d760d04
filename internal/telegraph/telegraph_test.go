package telegraph

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/parlane/switchyard/internal/config"
	"github.com/parlane/switchyard/internal/events"
)

func testConfig() *config.Config {
	return &config.Config{
		Authority: "ops-console",
		Telegraph: config.TelegraphConfig{
			Platform:     "slack",
			Token:        "xoxb-test",
			Channel:      "#switchyard",
			PollInterval: config.Duration(10 * time.Millisecond),
		},
	}
}

func TestNewDaemon_Validation(t *testing.T) {
	gormDB := openTestDB(t)
	adapter := NewMockAdapter()
	cfg := testConfig()

	if _, err := NewDaemon(DaemonOpts{Config: cfg, Adapter: adapter}); err == nil {
		t.Error("missing DB accepted")
	}
	if _, err := NewDaemon(DaemonOpts{DB: gormDB, Adapter: adapter}); err == nil {
		t.Error("missing config accepted")
	}
	if _, err := NewDaemon(DaemonOpts{DB: gormDB, Config: cfg}); err == nil {
		t.Error("missing adapter accepted")
	}
}

func TestDaemon_ForwardsEvents(t *testing.T) {
	gormDB := openTestDB(t)
	adapter := NewMockAdapter()
	var out bytes.Buffer

	daemon, err := NewDaemon(DaemonOpts{
		DB:      gormDB,
		Config:  testConfig(),
		Adapter: adapter,
		Out:     &out,
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Run(ctx) }()

	// Wait for the online announcement.
	deadline := time.After(2 * time.Second)
	for adapter.SentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("daemon never came online")
		case <-time.After(5 * time.Millisecond):
		}
	}

	recordEvent(t, gormDB, events.KindAgentRegistered, "agent-a")

	deadline = time.After(2 * time.Second)
	for {
		if msg, ok := lastEventMessage(adapter); ok {
			if msg.Events[0].Title != "Agent agent-a registered" {
				t.Errorf("title = %q", msg.Events[0].Title)
			}
			if msg.Channel != "#switchyard" {
				t.Errorf("channel = %q", msg.Channel)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never forwarded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never stopped")
	}

	if !adapter.Closed() {
		t.Error("adapter not closed on shutdown")
	}
	if !strings.Contains(out.String(), "Telegraph online") {
		t.Errorf("output = %q", out.String())
	}
}

// lastEventMessage finds the most recent sent message carrying a
// formatted event attachment.
func lastEventMessage(adapter *MockAdapter) (OutboundMessage, bool) {
	all := adapter.AllSent()
	for i := len(all) - 1; i >= 0; i-- {
		if len(all[i].Events) > 0 {
			return all[i], true
		}
	}
	return OutboundMessage{}, false
}

func TestDaemon_FireDigest(t *testing.T) {
	gormDB := openTestDB(t)
	adapter := NewMockAdapter()
	if err := adapter.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	daemon, err := NewDaemon(DaemonOpts{
		DB:      gormDB,
		Config:  testConfig(),
		Adapter: adapter,
		Out:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	watcher, err := NewWatcher(WatcherOpts{DB: gormDB})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	// No activity: digest suppressed.
	daemon.fireDigest(context.Background(), watcher)
	if adapter.SentCount() != 0 {
		t.Errorf("sent = %d, want 0", adapter.SentCount())
	}

	recordEvent(t, gormDB, events.KindMessageSent, "agent-a")
	daemon.fireDigest(context.Background(), watcher)
	msg, ok := adapter.LastSent()
	if !ok || len(msg.Events) != 1 {
		t.Fatalf("digest not sent: %+v", msg)
	}
	if msg.Events[0].Title != "Switchyard digest" {
		t.Errorf("title = %q", msg.Events[0].Title)
	}
}
