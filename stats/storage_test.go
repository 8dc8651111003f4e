package stats

import (
	"os"
	"testing"
	"time"
)

func TestStorage(t *testing.T) {
	// Create temporary directory for test
	tempDir, err := os.MkdirTemp("", "stats-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// Create new storage
	storage, err := NewStorage(tempDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	// Test incrementing stats
	t.Run("IncrementStats", func(t *testing.T) {
		storage.IncrementStats(1, 2, 3, 4, 5)
		stats := storage.GetCurrentStats()

		if stats.SnapshotsTaken != 1 {
			t.Errorf("Expected 1 snapshot, got %d", stats.SnapshotsTaken)
		}
		if stats.DiffsComputed != 2 {
			t.Errorf("Expected 2 diffs, got %d", stats.DiffsComputed)
		}
		if stats.SignificantChanges != 3 {
			t.Errorf("Expected 3 significant changes, got %d", stats.SignificantChanges)
		}
		if stats.JudgeCalls != 4 {
			t.Errorf("Expected 4 judge calls, got %d", stats.JudgeCalls)
		}
		if stats.JudgeFailures != 5 {
			t.Errorf("Expected 5 judge failures, got %d", stats.JudgeFailures)
		}
	})

	// Test persistence
	t.Run("Persistence", func(t *testing.T) {
		if err := storage.Shutdown(); err != nil {
			t.Fatalf("Failed to save storage: %v", err)
		}

		// Create new storage instance pointing to same directory
		storage2, err := NewStorage(tempDir)
		if err != nil {
			t.Fatalf("Failed to create second storage: %v", err)
		}

		stats := storage2.GetCurrentStats()
		if stats.SnapshotsTaken != 1 {
			t.Errorf("Expected 1 snapshot after reload, got %d", stats.SnapshotsTaken)
		}
	})

	// Test month bookkeeping
	t.Run("Months", func(t *testing.T) {
		months := storage.GetAllMonths()
		if len(months) != 1 {
			t.Fatalf("Expected 1 month, got %d", len(months))
		}
		current := time.Now().Format("2006-01")
		if months[0] != current {
			t.Errorf("Expected month %s, got %s", current, months[0])
		}
		if _, ok := storage.GetMonthlyStats(current); !ok {
			t.Errorf("Expected stats for current month")
		}
		if _, ok := storage.GetMonthlyStats("1999-01"); ok {
			t.Errorf("Did not expect stats for 1999-01")
		}
	})

	// Test pruning of old months
	t.Run("Cleanup", func(t *testing.T) {
		storage.mutex.Lock()
		storage.stats["2020-01"] = &MonthlyStats{SnapshotsTaken: 9, LastUpdated: time.Now()}
		storage.mutex.Unlock()

		storage.Cleanup()

		if _, ok := storage.GetMonthlyStats("2020-01"); ok {
			t.Errorf("Expected 2020-01 to be pruned")
		}
		current := time.Now().Format("2006-01")
		if _, ok := storage.GetMonthlyStats(current); !ok {
			t.Errorf("Expected current month to survive cleanup")
		}
	})
}
