// Package storage provides announcement journal implementations.
package storage

import (
	"context"
	"sync"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// DefaultHistoryLimit bounds the in-memory journal.
const DefaultHistoryLimit = 50

// Compile-time interface check.
var _ domain.Journal = (*MemoryJournal)(nil)

// MemoryJournal keeps the most recent announcement outcomes in memory.
// Safe for concurrent access.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []domain.JournalEntry
	limit   int
	log     *logger.Logger
}

// NewMemoryJournal creates an empty journal holding at most limit
// entries. limit <= 0 uses DefaultHistoryLimit.
func NewMemoryJournal(limit int, log *logger.Logger) *MemoryJournal {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryJournal{
		entries: make([]domain.JournalEntry, 0, limit),
		limit:   limit,
		log:     log,
	}
}

// Record appends an entry, evicting the oldest once full.
func (j *MemoryJournal) Record(ctx context.Context, entry domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.entries) == j.limit {
		copy(j.entries, j.entries[1:])
		j.entries = j.entries[:j.limit-1]
	}
	j.entries = append(j.entries, entry)
	j.log.Debug("journal: %s %q via %s", entry.Outcome, entry.Text, entry.Transport)
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns
// everything.
func (j *MemoryJournal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := len(j.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.JournalEntry, 0, n)
	for i := len(j.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (j *MemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}
