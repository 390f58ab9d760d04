package telegraph

import (
	"context"
	"testing"
	"time"

	"github.com/parlane/switchyard/internal/events"
	"github.com/parlane/switchyard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gormDB.AutoMigrate(&models.EventRecord{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gormDB
}

func recordEvent(t *testing.T, gormDB *gorm.DB, kind, agent string) {
	t.Helper()
	err := gormDB.Transaction(func(tx *gorm.DB) error {
		return events.Record(tx, events.Event{Kind: kind, Agent: agent})
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
}

func TestWatcher_StartsAtTail(t *testing.T) {
	gormDB := openTestDB(t)
	recordEvent(t, gormDB, events.KindAgentRegistered, "agent-a")

	w, err := NewWatcher(WatcherOpts{DB: gormDB})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	// The pre-existing event is not replayed.
	recs, err := w.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("len(recs) = %d, want 0", len(recs))
	}
}

func TestWatcher_PollAdvances(t *testing.T) {
	gormDB := openTestDB(t)
	w, err := NewWatcher(WatcherOpts{DB: gormDB})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	recordEvent(t, gormDB, events.KindAgentRegistered, "agent-a")
	recordEvent(t, gormDB, events.KindMessageSent, "agent-a")

	recs, err := w.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Kind != events.KindAgentRegistered || recs[1].Kind != events.KindMessageSent {
		t.Errorf("order = [%s %s]", recs[0].Kind, recs[1].Kind)
	}

	// A second poll with no new events returns nothing.
	recs, err = w.Poll()
	if err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("second poll returned %d events", len(recs))
	}
}

func TestWatcher_RunDeliversNewEvents(t *testing.T) {
	gormDB := openTestDB(t)
	w, err := NewWatcher(WatcherOpts{DB: gormDB, PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := w.Run(ctx)

	recordEvent(t, gormDB, events.KindAgentDeactivated, "agent-a")

	select {
	case rec := <-ch:
		if rec.Kind != events.KindAgentDeactivated {
			t.Errorf("kind = %q", rec.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	// The channel closes after cancellation.
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("channel never closed")
		}
	}
}

func TestWatcher_BuildDigest(t *testing.T) {
	gormDB := openTestDB(t)
	w, err := NewWatcher(WatcherOpts{DB: gormDB})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	// Quiet period: no digest.
	digest, err := w.BuildDigest()
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if digest != nil {
		t.Errorf("digest = %+v, want nil for no activity", digest)
	}

	recordEvent(t, gormDB, events.KindAgentRegistered, "agent-a")
	recordEvent(t, gormDB, events.KindAgentRegistered, "agent-b")
	recordEvent(t, gormDB, events.KindMessageSent, "agent-a")

	digest, err = w.BuildDigest()
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if digest == nil {
		t.Fatal("digest = nil, want activity summary")
	}
	if len(digest.Fields) != 2 {
		t.Errorf("fields = %+v, want one per kind", digest.Fields)
	}

	// The follow-up digest only covers newer events.
	digest, err = w.BuildDigest()
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if digest != nil {
		t.Errorf("repeat digest = %+v, want nil", digest)
	}
}
