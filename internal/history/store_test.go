package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	first, err := store.Record(ctx, Run{
		StartedAt:  base,
		Kinematics: "cartesian",
		Command:    "G28",
		Duration:   1500 * time.Millisecond,
		Moves:      6,
		Position:   [4]int32{0, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("record first run: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated run id")
	}

	if _, err := store.Record(ctx, Run{
		StartedAt:   base.Add(time.Minute),
		Kinematics:  "delta",
		Command:     "G28",
		Moves:       3,
		Untriggered: 1,
		Position:    [4]int32{0, 0, 250000, 0},
		Err:         "sim: machine shut down",
	}); err != nil {
		t.Fatalf("record second run: %v", err)
	}

	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Kinematics != "delta" || runs[0].OK() {
		t.Fatalf("expected failed delta run first, got %+v", runs[0])
	}
	if runs[0].Position[2] != 250000 || runs[0].Untriggered != 1 {
		t.Fatalf("unexpected delta run fields: %+v", runs[0])
	}
	if runs[1].ID != first.ID || runs[1].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected first run: %+v", runs[1])
	}
	if !runs[1].StartedAt.Equal(base) {
		t.Fatalf("expected start %s, got %s", base, runs[1].StartedAt)
	}
}

func TestRecentLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := store.Record(ctx, Run{StartedAt: base.Add(time.Duration(i) * time.Second), Command: "G28"}); err != nil {
			t.Fatalf("record run %d: %v", i, err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.Equal(base.Add(4 * time.Second)) {
		t.Fatalf("expected newest run first, got %s", runs[0].StartedAt)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
