package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "in.jsonl", "out.jsonl", "claude2")
	if err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if runID == "" {
		t.Fatal("BeginRun returned empty ID")
	}

	results := []*RecordResult{
		{RunID: runID, Index: 1, Title: "A", Processed: true, Items: 3, Rows: 3},
		{RunID: runID, Index: 2, Title: "B", Processed: false, Items: 1, Rows: 0, FailureReason: "min_items<3,missing_validation"},
		{RunID: runID, Index: 3, Title: "C", Processed: false, Items: 4, Rows: 0, FailureReason: "missing_validation"},
	}
	for _, r := range results {
		if err := s.AddResult(ctx, r); err != nil {
			t.Fatalf("AddResult failed: %v", err)
		}
	}
	if err := s.FinishRun(ctx, runID, 3, 1); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Runs != 1 {
		t.Errorf("Runs = %d, want 1", stats.Runs)
	}
	if stats.Records != 3 || stats.Processed != 1 || stats.Failed != 2 {
		t.Errorf("Record counts = %d/%d/%d, want 3/1/2", stats.Records, stats.Processed, stats.Failed)
	}
	if stats.LastFinished == nil {
		t.Error("LastFinished should be set after FinishRun")
	}
	if len(stats.TopFailures) != 2 {
		t.Fatalf("Expected 2 distinct failure reasons, got %d", len(stats.TopFailures))
	}
}

func TestGetStats_EmptyLedger(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Runs != 0 || stats.Records != 0 {
		t.Errorf("Empty ledger should report zeros, got %+v", stats)
	}
	if stats.LastFinished != nil {
		t.Error("LastFinished should be nil on empty ledger")
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open should create parent directories: %v", err)
	}
	s.Close()
}
