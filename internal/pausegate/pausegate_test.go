package pausegate

import (
	"testing"

	"github.com/parlane/switchyard/internal/faults"
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
	if err := gormDB.AutoMigrate(&models.PauseState{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gormDB
}

func newTestGate(t *testing.T, authority string) (*Gate, *gorm.DB) {
	t.Helper()
	gormDB := openTestDB(t)
	if err := gormDB.Create(&models.PauseState{
		Domain:    DomainDirectory,
		Authority: authority,
	}).Error; err != nil {
		t.Fatalf("seed pause state: %v", err)
	}
	gate, err := New(gormDB, DomainDirectory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gate, gormDB
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, DomainDirectory); err == nil {
		t.Error("expected error for nil db")
	}
	if _, err := New(openTestDB(t), ""); err == nil {
		t.Error("expected error for empty domain")
	}
}

func TestIsPaused_DefaultsFalse(t *testing.T) {
	gate, _ := newTestGate(t, "ops")
	paused, err := gate.IsPaused()
	if err != nil {
		t.Fatalf("IsPaused: %v", err)
	}
	if paused {
		t.Error("fresh gate should not be paused")
	}
	if err := gate.CheckUnpaused(); err != nil {
		t.Errorf("CheckUnpaused on fresh gate: %v", err)
	}
}

func TestPauseUnpause_Cycle(t *testing.T) {
	gate, _ := newTestGate(t, "ops")

	if err := gate.Pause("ops"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := gate.CheckUnpaused(); !faults.IsPaused(err) {
		t.Errorf("CheckUnpaused after pause = %v, want PausedError", err)
	}

	// Pausing twice is a state error.
	if err := gate.Pause("ops"); !faults.IsState(err) {
		t.Errorf("second Pause = %v, want StateError", err)
	}

	if err := gate.Unpause("ops"); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	if err := gate.Unpause("ops"); !faults.IsState(err) {
		t.Errorf("second Unpause = %v, want StateError", err)
	}
}

func TestPause_NonAuthorityRejected(t *testing.T) {
	gate, _ := newTestGate(t, "ops")
	if err := gate.Pause("mallory"); !faults.IsAuthorization(err) {
		t.Errorf("Pause by non-authority = %v, want AuthorizationError", err)
	}
	if err := gate.Pause(""); !faults.IsAuthorization(err) {
		t.Errorf("Pause by empty caller = %v, want AuthorizationError", err)
	}
	paused, _ := gate.IsPaused()
	if paused {
		t.Error("rejected pause still flipped the switch")
	}
}

func TestTransferAuthority(t *testing.T) {
	gate, _ := newTestGate(t, "ops")

	if err := gate.TransferAuthority("mallory", "mallory"); !faults.IsAuthorization(err) {
		t.Errorf("transfer by non-authority = %v, want AuthorizationError", err)
	}
	if err := gate.TransferAuthority("ops", ""); !faults.IsValidation(err) {
		t.Errorf("transfer to empty identity = %v, want ValidationError", err)
	}

	if err := gate.TransferAuthority("ops", "ops-2"); err != nil {
		t.Fatalf("TransferAuthority: %v", err)
	}
	authority, err := gate.Authority()
	if err != nil {
		t.Fatalf("Authority: %v", err)
	}
	if authority != "ops-2" {
		t.Errorf("authority = %q, want %q", authority, "ops-2")
	}

	// The old authority has lost its powers.
	if err := gate.Pause("ops"); !faults.IsAuthorization(err) {
		t.Errorf("Pause by old authority = %v, want AuthorizationError", err)
	}
	if err := gate.Pause("ops-2"); err != nil {
		t.Errorf("Pause by new authority: %v", err)
	}
}

func TestGate_UnseededDomain(t *testing.T) {
	gormDB := openTestDB(t)
	gate, err := New(gormDB, DomainRouter)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := gate.IsPaused(); err == nil {
		t.Error("expected error for unseeded domain")
	}
}

func TestGates_IndependentDomains(t *testing.T) {
	gormDB := openTestDB(t)
	for _, domain := range []string{DomainDirectory, DomainRouter} {
		if err := gormDB.Create(&models.PauseState{Domain: domain, Authority: "ops"}).Error; err != nil {
			t.Fatalf("seed %s: %v", domain, err)
		}
	}
	dirGate, _ := New(gormDB, DomainDirectory)
	routerGate, _ := New(gormDB, DomainRouter)

	if err := dirGate.Pause("ops"); err != nil {
		t.Fatalf("pause directory: %v", err)
	}
	paused, _ := routerGate.IsPaused()
	if paused {
		t.Error("pausing the directory also paused the router")
	}
}
