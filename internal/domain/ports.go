package domain

import "context"

// Transport renders text as audible speech. Render blocks until the
// utterance finished, failed, or was cancelled. Cancel stops whatever
// the transport is rendering right now and is a no-op when idle.
// Implementations can call a remote synthesis service or an on-device
// synthesizer.
type Transport interface {
	Name() string
	Render(ctx context.Context, text string) error
	Cancel()
}

// Journal records the final outcome of announcements. Implementations
// can be in-memory or SQLite.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)
}

// GuidanceSource supplies the navigation state that pollers turn into
// announcements. Implementations typically call the navigation API.
type GuidanceSource interface {
	LatestDecision(ctx context.Context, room string) (*Decision, error)
	NextDirection(ctx context.Context, room string, at Location, mode string) (*RouteGuidance, error)
}

// LocationSource reports the walker's current position.
type LocationSource interface {
	Current(ctx context.Context) (Location, error)
}

// Notifier delivers guidance to the user. Implementations can write to
// stdout or speak through the announcement queue.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}

// IntentParser converts raw console input into an Intent.
type IntentParser interface {
	Parse(ctx context.Context, input string) (*Intent, error)
}
