package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ning0612/pkgyaml/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestNewManager(t *testing.T) {
	tmpDir := t.TempDir()

	manager, err := NewManager(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer manager.Close()

	if manager.db == nil {
		t.Error("Database connection is nil")
	}

	dbPath := filepath.Join(tmpDir, DBName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewManager_EmptyDir(t *testing.T) {
	_, err := NewManager("")
	if err == nil {
		t.Error("Expected error for empty directory, got nil")
	}
}

func TestSaveAndGetPass(t *testing.T) {
	manager := newTestManager(t)

	record := PassRecord{
		PassID:    "3f0c",
		Root:      "/work/app",
		Phase:     domain.PhaseBefore,
		Requested: domain.ConflictAsk,
		Resolved:  domain.ConflictUseYAML,
		Outcome:   string(domain.OutcomeSynced),
		Merged:    true,
		Reason:    "merged changes from both files",
		StartTime: time.Now().Add(-time.Second),
		EndTime:   time.Now(),
		JSONSum:   "xxh64:00ff",
		YAMLSum:   "xxh64:ff00",
	}

	if err := manager.SavePass(record); err != nil {
		t.Fatalf("Failed to save pass: %v", err)
	}

	history, err := manager.GetHistory("/work/app", 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(history))
	}

	got := history[0]
	if got.Phase != record.Phase {
		t.Errorf("Expected phase %s, got %s", record.Phase, got.Phase)
	}
	if got.Resolved != record.Resolved {
		t.Errorf("Expected resolved %s, got %s", record.Resolved, got.Resolved)
	}
	if !got.Merged {
		t.Errorf("Expected merged flag to round-trip")
	}
	if got.Reason != record.Reason {
		t.Errorf("Expected reason %q, got %q", record.Reason, got.Reason)
	}
	if got.PassID != record.PassID || got.JSONSum != record.JSONSum || got.YAMLSum != record.YAMLSum {
		t.Errorf("Expected pass id and fingerprints to round-trip, got %+v", got)
	}
}

func TestGetLastSynced(t *testing.T) {
	manager := newTestManager(t)

	records := []PassRecord{
		{Root: "/app", Phase: domain.PhaseSync, Outcome: "synced", Reason: "first", StartTime: time.Now().Add(-30 * time.Minute), EndTime: time.Now().Add(-30 * time.Minute)},
		{Root: "/app", Phase: domain.PhaseSync, Outcome: "ask", StartTime: time.Now().Add(-20 * time.Minute), EndTime: time.Now().Add(-20 * time.Minute)},
		{Root: "/app", Phase: domain.PhaseAfter, Outcome: "synced", Reason: "second", StartTime: time.Now().Add(-10 * time.Minute), EndTime: time.Now().Add(-10 * time.Minute)},
	}
	for _, record := range records {
		if err := manager.SavePass(record); err != nil {
			t.Fatalf("Failed to save pass: %v", err)
		}
	}

	last, err := manager.GetLastSynced("/app")
	if err != nil {
		t.Fatalf("Failed to get last synced: %v", err)
	}
	if last == nil {
		t.Fatal("Expected last synced, got nil")
	}
	if last.Reason != "second" || last.Phase != domain.PhaseAfter {
		t.Errorf("Expected the most recent synced pass, got %+v", last)
	}
}

func TestGetLastSynced_None(t *testing.T) {
	manager := newTestManager(t)

	record := PassRecord{Root: "/app", Phase: domain.PhaseSync, Outcome: "failed", StartTime: time.Now(), EndTime: time.Now(), Error: "write failed"}
	if err := manager.SavePass(record); err != nil {
		t.Fatalf("Failed to save pass: %v", err)
	}

	last, err := manager.GetLastSynced("/app")
	if err != nil {
		t.Fatalf("Failed to get last synced: %v", err)
	}
	if last != nil {
		t.Error("Expected nil for last synced, got a record")
	}
}

func TestGetAllHistory(t *testing.T) {
	manager := newTestManager(t)

	records := []PassRecord{
		{Root: "/a", Phase: domain.PhaseSync, Outcome: "synced", StartTime: time.Now().Add(-30 * time.Minute), EndTime: time.Now()},
		{Root: "/b", Phase: domain.PhaseSync, Outcome: "synced", StartTime: time.Now().Add(-20 * time.Minute), EndTime: time.Now()},
		{Root: "/a", Phase: domain.PhaseBefore, Outcome: "ask", StartTime: time.Now().Add(-10 * time.Minute), EndTime: time.Now()},
	}
	for _, record := range records {
		if err := manager.SavePass(record); err != nil {
			t.Fatalf("Failed to save pass: %v", err)
		}
	}

	all, err := manager.GetAllHistory(100)
	if err != nil {
		t.Fatalf("Failed to get all history: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].Root != "/a" || all[0].Outcome != "ask" {
		t.Error("Expected most recent record to be the /a ask pass")
	}
}

func TestGetHistory_Limit(t *testing.T) {
	manager := newTestManager(t)

	for i := 0; i < 5; i++ {
		record := PassRecord{
			Root:      "/app",
			Phase:     domain.PhaseSync,
			Outcome:   "synced",
			Reason:    string(rune('a' + i)),
			StartTime: time.Now().Add(time.Duration(-i*10) * time.Minute),
			EndTime:   time.Now(),
		}
		if err := manager.SavePass(record); err != nil {
			t.Fatalf("Failed to save pass: %v", err)
		}
	}

	history, err := manager.GetHistory("/app", 3)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(history))
	}
	if history[0].Reason != "a" {
		t.Errorf("Expected most recent record first, got %q", history[0].Reason)
	}
}

func TestSavePass_Invalid(t *testing.T) {
	manager := newTestManager(t)

	if err := manager.SavePass(PassRecord{Root: "/app", Outcome: "maybe", StartTime: time.Now(), EndTime: time.Now()}); err == nil {
		t.Error("Expected error for invalid outcome, got nil")
	}
	if err := manager.SavePass(PassRecord{Outcome: "synced", StartTime: time.Now(), EndTime: time.Now()}); err == nil {
		t.Error("Expected error for empty root, got nil")
	}
}

func TestGetHistory_InvalidLimit(t *testing.T) {
	manager := newTestManager(t)

	if _, err := manager.GetHistory("/app", 0); err == nil {
		t.Error("Expected error for limit=0, got nil")
	}
	if _, err := manager.GetAllHistory(-1); err == nil {
		t.Error("Expected error for limit=-1, got nil")
	}
}

func TestNewPassRecord(t *testing.T) {
	start := time.Now()
	res := domain.SyncResult{Outcome: domain.OutcomeSynced, Requested: domain.ConflictAsk, Resolved: domain.ConflictUseJSON}

	rec := NewPassRecord("/app", domain.PhaseAfter, res, start, nil)
	if rec.Outcome != "synced" || rec.Resolved != domain.ConflictUseJSON {
		t.Errorf("Unexpected record: %+v", rec)
	}
	if rec.EndTime.Before(start) {
		t.Errorf("EndTime before StartTime")
	}

	rec = NewPassRecord("/app", domain.PhaseAfter, domain.SyncResult{}, start, errors.New("boom"))
	if rec.Outcome != OutcomeError || rec.Error != "boom" {
		t.Errorf("Expected error record, got %+v", rec)
	}
}
