package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

// QueueOption configures the Queue.
type QueueOption func(*Queue)

// WithDefaultDedupeWindow sets the dedupe window used when an
// announcement does not override it.
func WithDefaultDedupeWindow(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d < 0 {
			d = 0
		}
		q.dedupeWindow = d
	}
}

// WithJournal records every final announcement outcome.
func WithJournal(j domain.Journal) QueueOption {
	return func(q *Queue) {
		q.journal = j
	}
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *Metrics) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithClock replaces time.Now for dedupe window checks.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.now = now
	}
}

// request is one admitted announcement.
type request struct {
	id       string
	text     string
	key      string
	opts     enqueueOptions
	queuedAt time.Time
	future   *Future

	// Set while active, guarded by Queue.mu.
	cancel      context.CancelFunc
	interrupted bool
	reason      string
}

type spokenRecord struct {
	key        string
	text       string
	finishedAt time.Time
}

// Queue is the announcement dispatcher. It serializes all speech output
// through a single drain goroutine: admit -> render (remote, then local
// fallback) -> next. Only one announcement is ever being synthesized or
// played at a time. High priority entries are spoken first.
//
// A Queue is owned by the app session: create it at startup, pass it to
// whatever needs to speak, and Close it at teardown.
type Queue struct {
	remote  domain.Transport // nil when no synthesis service is configured
	local   domain.Transport
	log     *logger.Logger
	journal domain.Journal
	metrics *Metrics
	now     func() time.Time

	dedupeWindow time.Duration

	mu         sync.Mutex
	pending    []*request
	active     *request
	lastSpoken *spokenRecord
	draining   bool
	closed     bool
	drained    chan struct{} // closed when the current drain exits
}

// NewQueue creates an announcement queue. remote may be nil, in which
// case every announcement goes straight to local.
func NewQueue(remote, local domain.Transport, log *logger.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		remote:       remote,
		local:        local,
		log:          log,
		now:          time.Now,
		dedupeWindow: DefaultDedupeWindow,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue admits text for speaking and returns immediately. The returned
// future resolves once this announcement finished, was skipped as a
// duplicate, or was dropped by a flush; it rejects with
// domain.ErrPlaybackAborted when Stop interrupts it and with
// domain.ErrSynthesisUnavailable when no transport could speak it.
func (q *Queue) Enqueue(text string, opts ...EnqueueOption) *Future {
	text = strings.TrimSpace(text)
	if text == "" {
		return resolvedFuture(domain.OutcomeSkipped, nil)
	}

	o := enqueueOptions{priority: PriorityNormal, dedupeWindow: q.dedupeWindow}
	for _, opt := range opts {
		opt(&o)
	}
	key := NormalizeKey(text)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return resolvedFuture(domain.OutcomeAborted, domain.ErrQueueClosed)
	}

	if !o.allowDuplicates {
		if why := q.duplicateLocked(key, o.dedupeWindow); why != "" {
			q.mu.Unlock()
			q.log.Debug("queue: skipped (%s): %s", why, truncate(text, 60))
			q.metrics.countOutcome(domain.OutcomeSkipped)
			return resolvedFuture(domain.OutcomeSkipped, nil)
		}
	}

	var flushed []*request
	if o.flushExisting && len(q.pending) > 0 {
		flushed = q.pending
		q.pending = nil
	}

	req := &request{
		id:       uuid.NewString(),
		text:     text,
		key:      key,
		opts:     o,
		queuedAt: q.now(),
		future:   newFuture(),
	}
	q.insertLocked(req)
	depth := len(q.pending)

	start := !q.draining
	if start {
		q.draining = true
		q.drained = make(chan struct{})
	}
	q.mu.Unlock()

	for _, r := range flushed {
		q.finish(r, domain.OutcomeDropped, "", nil)
	}
	if len(flushed) > 0 {
		q.log.Debug("queue: flushed %d pending items", len(flushed))
	}

	q.metrics.setPending(depth)
	q.log.Debug("queue: queued (priority=%s, pending=%d): %s", o.priority, depth, truncate(text, 60))

	if start {
		go q.drain()
	}
	return req.future
}

// duplicateLocked reports why key must be skipped, or "" to admit it.
// Must be called with q.mu held.
func (q *Queue) duplicateLocked(key string, window time.Duration) string {
	// An interrupted entry is only unwinding; it no longer counts.
	if q.active != nil && !q.active.interrupted && q.active.key == key {
		return "active"
	}
	for _, r := range q.pending {
		if r.key == key {
			return "pending"
		}
	}
	if q.lastSpoken != nil && q.lastSpoken.key == key &&
		q.now().Sub(q.lastSpoken.finishedAt) < window {
		return "dedupe window"
	}
	return ""
}

// insertLocked puts high priority entries at the front of pending and
// appends normal ones. Must be called with q.mu held.
func (q *Queue) insertLocked(req *request) {
	if req.opts.priority != PriorityHigh {
		q.pending = append(q.pending, req)
		return
	}
	q.pending = append([]*request{req}, q.pending...)
}

// drain speaks pending entries one at a time until none are left.
// Exactly one drain runs at a time; Enqueue starts it when needed.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			close(q.drained)
			q.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]

		ctx, cancel := context.WithCancel(context.Background())
		req.cancel = cancel
		q.active = req
		depth := len(q.pending)
		q.mu.Unlock()

		q.metrics.setPending(depth)
		q.metrics.setActive(true)
		q.log.Debug("queue: speaking (priority=%s, waited=%s): %s",
			req.opts.priority, time.Since(req.queuedAt).Round(time.Millisecond), truncate(req.text, 60))

		transport, err := q.render(ctx, req)
		cancel()

		q.mu.Lock()
		q.active = nil
		interrupted, reason := req.interrupted, req.reason
		if err == nil && !interrupted {
			q.lastSpoken = &spokenRecord{key: req.key, text: req.text, finishedAt: q.now()}
		}
		q.mu.Unlock()
		q.metrics.setActive(false)

		switch {
		case interrupted:
			q.finish(req, domain.OutcomeAborted, transport, abortError(reason))
		case err == nil:
			q.finish(req, domain.OutcomeSpoken, transport, nil)
		case errors.Is(err, domain.ErrPlaybackAborted):
			q.finish(req, domain.OutcomeAborted, transport, err)
		default:
			q.log.Error("queue: %v", err)
			q.finish(req, domain.OutcomeFailed, "", err)
		}
	}
}

// render tries the remote transport and falls back to local on any
// remote failure. It returns the name of the transport that spoke.
func (q *Queue) render(ctx context.Context, req *request) (string, error) {
	var remoteErr error
	if q.remote != nil {
		err := q.renderWith(ctx, q.remote, req.text)
		if err == nil {
			return q.remote.Name(), nil
		}
		if ctx.Err() != nil || errors.Is(err, domain.ErrPlaybackAborted) {
			return "", abortedBy(err)
		}
		q.log.Warn("queue: %s failed, falling back to %s: %v", q.remote.Name(), q.localName(), err)
		remoteErr = err
	}

	if q.local == nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSynthesisUnavailable, remoteErr)
	}
	err := q.renderWith(ctx, q.local, req.text)
	if err == nil {
		return q.local.Name(), nil
	}
	if ctx.Err() != nil || errors.Is(err, domain.ErrPlaybackAborted) {
		return "", abortedBy(err)
	}
	if remoteErr != nil {
		return "", fmt.Errorf("%w: remote: %v; local: %v", domain.ErrSynthesisUnavailable, remoteErr, err)
	}
	return "", fmt.Errorf("%w: %v", domain.ErrSynthesisUnavailable, err)
}

func (q *Queue) renderWith(ctx context.Context, t domain.Transport, text string) error {
	start := time.Now()
	err := t.Render(ctx, text)
	q.metrics.observeRender(t.Name(), err, time.Since(start))
	return err
}

func (q *Queue) localName() string {
	if q.local == nil {
		return "nothing"
	}
	return q.local.Name()
}

// finish records and resolves a request.
func (q *Queue) finish(req *request, outcome domain.Outcome, transport string, err error) {
	q.metrics.countOutcome(outcome)
	if q.journal != nil {
		entry := domain.JournalEntry{
			ID:         req.id,
			Text:       req.text,
			Priority:   req.opts.priority.String(),
			Outcome:    outcome,
			Transport:  transport,
			QueuedAt:   req.queuedAt,
			FinishedAt: time.Now(),
		}
		if err != nil {
			entry.Detail = err.Error()
		}
		if jerr := q.journal.Record(context.Background(), entry); jerr != nil {
			q.log.Warn("queue: journal record failed: %v", jerr)
		}
	}
	req.future.resolve(outcome, err)
}

// Stop interrupts the active announcement, empties the queue, and clears
// the dedupe memory. Pending and active futures reject with
// domain.ErrPlaybackAborted. Stop returns once cancellation has been
// requested; the transport may still be unwinding. Safe to call
// repeatedly and when idle.
func (q *Queue) Stop(reason string) {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.lastSpoken = nil
	if a := q.active; a != nil && !a.interrupted {
		a.interrupted = true
		a.reason = reason
		a.cancel()
		// Cancelling under q.mu guarantees the transports are still on
		// this entry's session rather than a later one.
		if q.remote != nil {
			q.remote.Cancel()
		}
		if q.local != nil {
			q.local.Cancel()
		}
	}
	q.mu.Unlock()

	q.metrics.setPending(0)
	err := abortError(reason)
	for _, r := range dropped {
		q.finish(r, domain.OutcomeAborted, "", err)
	}
	if len(dropped) > 0 || reason != "" {
		q.log.Debug("queue: stopped (%s), dropped %d pending", reason, len(dropped))
	}
}

// Close stops the queue and rejects later announcements with
// domain.ErrQueueClosed. It waits for the drain goroutine to unwind or
// for ctx to be done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	var drained chan struct{}
	if q.draining {
		drained = q.drained
	}
	q.mu.Unlock()

	q.Stop("queue closed")

	if drained == nil {
		return nil
	}
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsSpeaking returns true while an announcement is being rendered.
func (q *Queue) IsSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active != nil
}

// QueueLen returns the number of pending announcements.
func (q *Queue) QueueLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// LastSpoken returns the most recently completed announcement text, or
// "" when nothing was spoken since the last Stop.
func (q *Queue) LastSpoken() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lastSpoken == nil {
		return ""
	}
	return q.lastSpoken.text
}

func abortError(reason string) error {
	if reason == "" {
		return domain.ErrPlaybackAborted
	}
	return fmt.Errorf("%w: %s", domain.ErrPlaybackAborted, reason)
}

func abortedBy(err error) error {
	if errors.Is(err, domain.ErrPlaybackAborted) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrPlaybackAborted, err)
}

// truncate shortens a string to at most maxLen runes for logging.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
