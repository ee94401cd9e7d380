package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"bagfuse/internal/ledger"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	if err := store.StartRun(ctx, ledger.Run{ID: id, Mode: "extract", InputDir: "/in", OutputDir: "/out"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	results := []ledger.BundleResult{
		{RunID: id, Bundle: "b1", Status: ledger.StatusSucceeded, OutputPath: "/out/b1", Cameras: 2, FramesWritten: 3600, MessagesCopied: 100, Duration: 1500 * time.Millisecond},
		{RunID: id, Bundle: "b2", Status: ledger.StatusFailed, Error: "malformed video filename"},
	}
	for _, r := range results {
		if err := store.RecordBundle(ctx, r); err != nil {
			t.Fatalf("RecordBundle: %v", err)
		}
	}
	if err := store.FinishRun(ctx, id, ledger.StatusPartial, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != id || run.Status != ledger.StatusPartial || run.Bundles != 2 || run.FailedBundles != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.OptionsJSON != "{}" || run.FinishedAt.IsZero() || run.Error != "" {
		t.Fatalf("unexpected run details: %+v", run)
	}

	bundles, err := store.Bundles(ctx, id)
	if err != nil {
		t.Fatalf("Bundles: %v", err)
	}
	if len(bundles) != 2 || bundles[0].Bundle != "b1" || bundles[0].MessagesCopied != 100 || bundles[0].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected bundles: %+v", bundles)
	}
	if bundles[1].Error != "malformed video filename" || bundles[1].OutputPath != "" {
		t.Fatalf("unexpected failed bundle: %+v", bundles[1])
	}
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.StartRun(ctx, ledger.Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("StartRun: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if runs[0].Status != ledger.StatusRunning || !runs[0].StartedAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("unexpected run: %+v", runs[0])
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	if err := store.FinishRun(context.Background(), "nope", ledger.StatusFailed, "x"); !errors.Is(err, ledger.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		store, err := ledger.Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}
