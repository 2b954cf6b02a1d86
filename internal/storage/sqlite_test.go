package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

func openTestJournal(t *testing.T, path string, maxRows int) *SQLiteJournal {
	t.Helper()
	j, err := OpenSQLite(context.Background(), path, maxRows, logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return j
}

func TestSQLiteJournalRoundTripsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "journal.db")
	ctx := context.Background()

	j := openTestJournal(t, path, 0)
	failed := entry(1, domain.OutcomeFailed)
	failed.Transport = ""
	failed.Detail = "synthesis unavailable"
	for _, e := range []domain.JournalEntry{entry(0, domain.OutcomeSpoken), failed} {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j = openTestJournal(t, path, 0)
	defer j.Close()

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "id-1" || got[0].Outcome != domain.OutcomeFailed || got[0].Detail != "synthesis unavailable" {
		t.Fatalf("unexpected newest entry %+v", got[0])
	}
	if got[1].Outcome != domain.OutcomeSpoken || got[1].Transport != "remote" {
		t.Fatalf("unexpected oldest entry %+v", got[1])
	}
	if !got[0].FinishedAt.Equal(failed.FinishedAt) {
		t.Fatalf("finished_at = %v, want %v", got[0].FinishedAt, failed.FinishedAt)
	}
}

func TestSQLiteJournalPrunes(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.db"), 5)
	defer j.Close()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := j.Record(ctx, entry(i, domain.OutcomeSpoken)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 entries after prune, got %d", len(got))
	}
	if got[0].ID != "id-11" || got[4].ID != "id-7" {
		t.Fatalf("kept wrong rows: first=%s last=%s", got[0].ID, got[4].ID)
	}
}
