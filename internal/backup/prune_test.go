package backup

import (
	"testing"
)

func TestManager_Prune(t *testing.T) {
	manager, tmpDir := newTestManager(t)
	binary := writeBinary(t, tmpDir, "selfup", "binary")

	for _, v := range []string{"1.0.0", "1.1.0", "1.2.0", "1.3.0", "1.4.0"} {
		if _, err := manager.Create(binary, v); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := manager.Prune(2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}

	if result.Kept != 2 {
		t.Errorf("Prune() Kept = %v, want 2", result.Kept)
	}
	if len(result.Deleted) != 3 {
		t.Errorf("Prune() Deleted count = %v, want 3", len(result.Deleted))
	}

	backups, err := manager.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("List() after prune = %v, want 2", len(backups))
	}
	if backups[0].Version != "1.4.0" || backups[1].Version != "1.3.0" {
		t.Errorf("Prune() kept %s and %s, want the newest two", backups[0].Version, backups[1].Version)
	}
}

func TestManager_PruneNoOp(t *testing.T) {
	manager, tmpDir := newTestManager(t)
	binary := writeBinary(t, tmpDir, "selfup", "binary")

	if _, err := manager.Create(binary, "1.0.0"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := manager.Prune(3)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if result.Kept != 1 {
		t.Errorf("Prune() Kept = %v, want 1", result.Kept)
	}
	if len(result.Deleted) != 0 {
		t.Errorf("Prune() Deleted = %v, want none", result.Deleted)
	}
}

func TestManager_PruneNegative(t *testing.T) {
	manager, _ := newTestManager(t)

	if _, err := manager.Prune(-1); err == nil {
		t.Error("Prune(-1) expected error")
	}
}
