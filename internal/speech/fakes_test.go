package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.LevelOff, nil)
}

// activeGauge tracks concurrent renders across transports.
type activeGauge struct {
	mu      sync.Mutex
	current int
	max     int
}

func (g *activeGauge) enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	if g.current > g.max {
		g.max = g.current
	}
}

func (g *activeGauge) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current--
}

func (g *activeGauge) peak() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

// fakeTransport records what it was asked to say. With block set, each
// Render waits for a release or for its context to be cancelled; unwind
// delays the return after a cancel. failOn makes Render fail for the
// texts it reports true for.
type fakeTransport struct {
	name   string
	err    error
	block  bool
	delay  time.Duration
	unwind time.Duration
	failOn func(text string) bool
	gauge  *activeGauge

	release chan struct{}
	started chan string

	mu      sync.Mutex
	calls   []string
	cancels int
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{
		name:    name,
		release: make(chan struct{}),
		started: make(chan string, 64),
	}
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Render(ctx context.Context, text string) error {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.gauge != nil {
		f.gauge.enter()
		defer f.gauge.leave()
	}
	f.started <- text

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.block {
		select {
		case <-f.release:
		case <-ctx.Done():
			time.Sleep(f.unwind)
			return domain.ErrPlaybackAborted
		}
	}
	if f.failOn != nil && f.failOn(text) {
		return errors.New(f.name + ": synthesis failed")
	}
	return f.err
}

func (f *fakeTransport) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) CancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// waitStarted blocks until the transport began rendering something.
func (f *fakeTransport) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case text := <-f.started:
		return text
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: render never started", f.name)
		return ""
	}
}

// releaseOne lets exactly one blocked render finish.
func (f *fakeTransport) releaseOne(t *testing.T) {
	t.Helper()
	select {
	case f.release <- struct{}{}:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: nothing waiting for release", f.name)
	}
}

// fakeJournal collects recorded entries.
type fakeJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *fakeJournal) Record(_ context.Context, e domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *fakeJournal) Recent(_ context.Context, limit int) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := append([]domain.JournalEntry(nil), j.entries...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (j *fakeJournal) all() []domain.JournalEntry {
	out, _ := j.Recent(context.Background(), 0)
	return out
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// waitFuture waits for f with a test deadline.
func waitFuture(t *testing.T, f *Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := f.Wait(ctx)
	if err == context.DeadlineExceeded {
		t.Fatalf("future did not resolve")
	}
	return err
}
