package speech

import "time"

// Audio parameters the output device is opened with. Clips at another
// rate are resampled on decode.
const (
	SampleRate   = 24000
	ChannelCount = 2
	BitDepth     = 16
)

// Defaults for the announcement pipeline.
const (
	// DefaultDedupeWindow suppresses an identical announcement for this
	// long after it was last fully spoken.
	DefaultDedupeWindow = 5 * time.Second

	// DefaultFetchTimeout bounds a single synthesis request.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultPollInterval is how often a playing session checks the device.
	DefaultPollInterval = 20 * time.Millisecond

	// SpeakPath is appended to the API base URL and prefix.
	SpeakPath = "/tts/speak"
)

// Priority levels for announcements.
type Priority int

const (
	PriorityNormal Priority = iota // route guidance, prompts
	PriorityHigh                   // obstacle alerts
)

// String returns a human-readable priority.
func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// EnqueueOption configures a single announcement.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	priority        Priority
	flushExisting   bool
	allowDuplicates bool
	dedupeWindow    time.Duration
}

// WithPriority sets the announcement priority. High priority entries are
// spoken before any pending normal entry.
func WithPriority(p Priority) EnqueueOption {
	return func(o *enqueueOptions) { o.priority = p }
}

// High is shorthand for WithPriority(PriorityHigh).
func High() EnqueueOption { return WithPriority(PriorityHigh) }

// FlushExisting discards every pending (not yet started) entry before
// admitting this one. The active entry keeps playing.
func FlushExisting() EnqueueOption {
	return func(o *enqueueOptions) { o.flushExisting = true }
}

// AllowDuplicates bypasses the dedupe checks.
func AllowDuplicates() EnqueueOption {
	return func(o *enqueueOptions) { o.allowDuplicates = true }
}

// WithDedupeWindow overrides the queue's dedupe window for this entry.
// Negative values are treated as zero.
func WithDedupeWindow(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d < 0 {
			d = 0
		}
		o.dedupeWindow = d
	}
}
