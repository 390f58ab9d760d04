package provenance

import (
	"fmt"
	"testing"

	"github.com/parlane/switchyard/internal/directory"
	"github.com/parlane/switchyard/internal/faults"
	"github.com/parlane/switchyard/internal/models"
	"github.com/parlane/switchyard/internal/pausegate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// rejectAll is a Verifier that refuses every signature.
type rejectAll struct{}

func (rejectAll) Verify(agent, action, payload, signature string) error {
	return fmt.Errorf("signature invalid")
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&models.Agent{},
		&models.AgentCapability{},
		&models.DirectoryState{},
		&models.Decision{},
		&models.PauseState{},
		&models.EventRecord{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	if err := gormDB.Create(&models.PauseState{
		Domain:    pausegate.DomainDirectory,
		Authority: "ops-console",
	}).Error; err != nil {
		t.Fatalf("seed pause state: %v", err)
	}
	if err := gormDB.Create(&models.DirectoryState{ID: 1}).Error; err != nil {
		t.Fatalf("seed directory state: %v", err)
	}
	return gormDB
}

func newTestLedger(t *testing.T, verifier Verifier) (*Ledger, *gorm.DB) {
	t.Helper()
	gormDB := openTestDB(t)
	dir, err := directory.New(directory.Opts{DB: gormDB})
	if err != nil {
		t.Fatalf("directory.New: %v", err)
	}
	if err := dir.Register("agent-a", "A", "http://a", nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	ledger, err := New(Opts{DB: gormDB, Directory: dir, Verifier: verifier})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ledger, gormDB
}

func TestRecord_ChainsHashes(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)

	first, err := ledger.Record("agent-a", "approve", `{"req":1}`, "sig-1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.PrevHash != "" {
		t.Errorf("first PrevHash = %q, want empty", first.PrevHash)
	}
	if len(first.Hash) != 64 {
		t.Errorf("hash %q, want 64 hex chars", first.Hash)
	}

	second, err := ledger.Record("agent-a", "reject", `{"req":2}`, "sig-2")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if second.PrevHash != first.Hash {
		t.Errorf("second PrevHash = %q, want %q", second.PrevHash, first.Hash)
	}
	if second.Hash == first.Hash {
		t.Error("consecutive records share a hash")
	}

	if err := ledger.VerifyChain(); err != nil {
		t.Errorf("VerifyChain: %v", err)
	}
}

func TestRecord_UnregisteredAgent(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	_, err := ledger.Record("nobody", "approve", "", "sig")
	if !faults.IsValidation(err) {
		t.Errorf("Record = %v, want ValidationError", err)
	}
}

func TestRecord_EmptyAction(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	_, err := ledger.Record("agent-a", "", "", "sig")
	if !faults.IsValidation(err) {
		t.Errorf("Record = %v, want ValidationError", err)
	}
}

func TestRecord_SignatureRejected(t *testing.T) {
	ledger, gormDB := newTestLedger(t, rejectAll{})
	_, err := ledger.Record("agent-a", "approve", "", "bad-sig")
	if !faults.IsAuthorization(err) {
		t.Errorf("Record = %v, want AuthorizationError", err)
	}

	// Nothing was appended.
	var count int64
	if err := gormDB.Model(&models.Decision{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("decision count = %d, want 0", count)
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	ledger, gormDB := newTestLedger(t, nil)

	for i := range 3 {
		if _, err := ledger.Record("agent-a", "approve", fmt.Sprintf(`{"req":%d}`, i), "sig"); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	if err := ledger.VerifyChain(); err != nil {
		t.Fatalf("VerifyChain before tampering: %v", err)
	}

	// Rewrite the middle record's payload behind the ledger's back.
	if err := gormDB.Model(&models.Decision{}).
		Where("seq = ?", 2).
		Update("payload", `{"req":99}`).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if err := ledger.VerifyChain(); err == nil {
		t.Error("VerifyChain missed the tampered record")
	}
}

func TestList_FilterByAgent(t *testing.T) {
	ledger, gormDB := newTestLedger(t, nil)

	dir, err := directory.New(directory.Opts{DB: gormDB})
	if err != nil {
		t.Fatalf("directory.New: %v", err)
	}
	if err := dir.Register("agent-b", "B", "http://b", nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := ledger.Record("agent-a", "approve", "", "sig"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := ledger.Record("agent-b", "reject", "", "sig"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := ledger.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(all) = %d, want 2", len(all))
	}

	mine, err := ledger.List("agent-b")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 1 || mine[0].Action != "reject" {
		t.Errorf("filtered list = %+v", mine)
	}
}

func TestHead_EmptyLedger(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	head, err := ledger.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Seq != 0 || head.Hash != "" {
		t.Errorf("head = %+v, want zero value", head)
	}
}
