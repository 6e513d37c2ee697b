package manifest_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"snaplapse/internal/manifest"
)

func openStore(t *testing.T) (*manifest.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "manifest.db")
	store, err := manifest.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestUpsertAndGet(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	rec := manifest.Record{
		DateKey: "2026-03-01", Path: "/tl/timelapse_2026-03-01.mp4",
		Frames: 3, Skipped: 1, Bytes: 2048, FPS: 30, Width: 1920, Height: 1080,
		CorrelationID: "abc", CreatedAt: created,
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Frames != 3 || got.Skipped != 1 || got.Width != 1920 || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected record: %#v", got)
	}

	rec.Frames = 5
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	got, _ = store.Get(ctx, "2026-03-01")
	if got.Frames != 5 {
		t.Fatalf("expected replaced frames=5, got %d", got.Frames)
	}

	missing, err := store.Get(ctx, "1999-01-01")
	if err != nil || missing != nil {
		t.Fatalf("missing record: %#v, %v", missing, err)
	}
}

func TestUpsertRequiresDateKey(t *testing.T) {
	store, _ := openStore(t)
	if err := store.Upsert(context.Background(), manifest.Record{Path: "x"}); err == nil {
		t.Fatal("expected error for empty date key")
	}
}

func TestListAndReconcile(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	for _, key := range []string{"2026-03-02", "2026-02-28", "2026-03-01"} {
		if err := store.Upsert(ctx, manifest.Record{DateKey: key, Path: "/tl/" + key, FPS: 30}); err != nil {
			t.Fatalf("Upsert %s: %v", key, err)
		}
	}
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 || records[0].DateKey != "2026-02-28" || records[2].DateKey != "2026-03-02" {
		t.Fatalf("unexpected order: %#v", records)
	}

	removed, err := store.Reconcile(ctx, func(path string) bool { return path != "/tl/2026-03-01" })
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(removed) != 1 || removed[0] != "2026-03-01" {
		t.Fatalf("removed = %v", removed)
	}
	records, _ = store.List(ctx)
	if len(records) != 2 {
		t.Fatalf("expected 2 records after reconcile, got %d", len(records))
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	store, path := openStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = manifest.Open(context.Background(), path)
	if !errors.Is(err, manifest.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, manifest.Record{DateKey: "2026-03-01", Path: "p", FPS: 30}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	_ = store.Close()

	reopened, err := manifest.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, err := reopened.Get(ctx, "2026-03-01")
	if err != nil || rec == nil {
		t.Fatalf("record lost after reopen: %#v, %v", rec, err)
	}
}
