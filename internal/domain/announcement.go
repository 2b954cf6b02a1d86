package domain

import "time"

// Outcome describes how an announcement ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSpoken
	OutcomeSkipped // duplicate or inside the dedupe window
	OutcomeDropped // discarded by a later flush
	OutcomeAborted // interrupted by Stop
	OutcomeFailed  // every transport failed
)

// String returns a human-readable outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSpoken:
		return "spoken"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDropped:
		return "dropped"
	case OutcomeAborted:
		return "aborted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) Outcome {
	for o := OutcomePending; o <= OutcomeFailed; o++ {
		if o.String() == s {
			return o
		}
	}
	return OutcomePending
}

// JournalEntry is one recorded announcement outcome.
type JournalEntry struct {
	ID         string
	Text       string
	Priority   string
	Outcome    Outcome
	Transport  string // transport that spoke it, empty when none did
	Detail     string // error detail for failed/aborted entries
	QueuedAt   time.Time
	FinishedAt time.Time
}
