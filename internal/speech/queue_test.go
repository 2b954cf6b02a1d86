package speech

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hammamikhairi/navcompanion/internal/domain"
)

func TestEnqueueSpeaksInOrder(t *testing.T) {
	remote := newFakeTransport("remote")
	q := NewQueue(remote, newFakeTransport("local"), testLogger())

	var futures []*Future
	for _, text := range []string{"one", "two", "three"} {
		futures = append(futures, q.Enqueue(text))
	}
	for i, f := range futures {
		if err := waitFuture(t, f); err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if f.Outcome() != domain.OutcomeSpoken {
			t.Fatalf("future %d outcome = %s, want spoken", i, f.Outcome())
		}
	}

	want := []string{"one", "two", "three"}
	if got := remote.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if q.LastSpoken() != "three" {
		t.Fatalf("LastSpoken = %q, want three", q.LastSpoken())
	}
}

func TestEmptyTextResolvesImmediately(t *testing.T) {
	remote := newFakeTransport("remote")
	q := NewQueue(remote, nil, testLogger())

	f := q.Enqueue("   \n\t")
	select {
	case <-f.Done():
	default:
		t.Fatal("expected empty text to resolve immediately")
	}
	if f.Err() != nil || f.Outcome() != domain.OutcomeSkipped {
		t.Fatalf("got (%s, %v), want (skipped, nil)", f.Outcome(), f.Err())
	}
	if q.QueueLen() != 0 || len(remote.Calls()) != 0 {
		t.Fatal("empty text must not touch the queue")
	}
}

func TestDuplicatesOfActiveAndPendingAreSkipped(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.block = true
	q := NewQueue(remote, nil, testLogger())

	first := q.Enqueue("Turn left")
	remote.waitStarted(t)

	tests := []struct {
		name string
		text string
	}{
		{"active exact", "Turn left"},
		{"active case and spacing", "  turn   LEFT "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := q.Enqueue(tt.text)
			if f.Outcome() != domain.OutcomeSkipped {
				t.Fatalf("outcome = %s, want skipped", f.Outcome())
			}
		})
	}

	second := q.Enqueue("Stairs ahead")
	if f := q.Enqueue("stairs ahead"); f.Outcome() != domain.OutcomeSkipped {
		t.Fatalf("pending duplicate outcome = %s, want skipped", f.Outcome())
	}
	if q.QueueLen() != 1 {
		t.Fatalf("QueueLen = %d, want 1", q.QueueLen())
	}

	remote.releaseOne(t)
	remote.waitStarted(t)
	remote.releaseOne(t)

	for _, f := range []*Future{first, second} {
		if err := waitFuture(t, f); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	want := []string{"Turn left", "Stairs ahead"}
	if got := remote.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestDedupeWindow(t *testing.T) {
	clock := newFakeClock()
	remote := newFakeTransport("remote")
	q := NewQueue(remote, nil, testLogger(),
		WithClock(clock.Now), WithDefaultDedupeWindow(5*time.Second))

	if err := waitFuture(t, q.Enqueue("Door ahead")); err != nil {
		t.Fatalf("first: %v", err)
	}

	clock.Advance(2 * time.Second)
	if f := q.Enqueue("door ahead"); f.Outcome() != domain.OutcomeSkipped {
		t.Fatalf("inside window outcome = %s, want skipped", f.Outcome())
	}

	if err := waitFuture(t, q.Enqueue("Door ahead", AllowDuplicates())); err != nil {
		t.Fatalf("allow duplicates: %v", err)
	}

	clock.Advance(time.Second)
	if err := waitFuture(t, q.Enqueue("Door ahead", WithDedupeWindow(0))); err != nil {
		t.Fatalf("zero window: %v", err)
	}

	clock.Advance(6 * time.Second)
	f := q.Enqueue("Door ahead")
	if err := waitFuture(t, f); err != nil || f.Outcome() != domain.OutcomeSpoken {
		t.Fatalf("after window got (%s, %v), want spoken", f.Outcome(), err)
	}

	if got := len(remote.Calls()); got != 4 {
		t.Fatalf("render count = %d, want 4", got)
	}
}

func TestHighPriorityOvertakesNormal(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.block = true
	q := NewQueue(remote, nil, testLogger())

	q.Enqueue("current")
	remote.waitStarted(t)

	q.Enqueue("normal one")
	q.Enqueue("normal two")
	q.Enqueue("high one", High())
	last := q.Enqueue("high two", High())

	for i := 0; i < 5; i++ {
		remote.releaseOne(t)
		if i < 4 {
			remote.waitStarted(t)
		}
	}
	if err := waitFuture(t, last); err != nil {
		t.Fatalf("high two: %v", err)
	}

	// The newest high entry goes to the front.
	want := []string{"current", "high two", "high one", "normal one", "normal two"}
	if got := remote.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestFlushDropsPendingButNotActive(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.block = true
	q := NewQueue(remote, nil, testLogger())

	active := q.Enqueue("active")
	remote.waitStarted(t)
	p1 := q.Enqueue("pending one")
	p2 := q.Enqueue("pending two")

	urgent := q.Enqueue("Stop immediately", High(), FlushExisting())

	for _, f := range []*Future{p1, p2} {
		if err := waitFuture(t, f); err != nil {
			t.Fatalf("dropped future rejected: %v", err)
		}
		if f.Outcome() != domain.OutcomeDropped {
			t.Fatalf("outcome = %s, want dropped", f.Outcome())
		}
	}

	remote.releaseOne(t)
	remote.waitStarted(t)
	remote.releaseOne(t)

	if err := waitFuture(t, active); err != nil || active.Outcome() != domain.OutcomeSpoken {
		t.Fatalf("active got (%s, %v), want spoken", active.Outcome(), err)
	}
	if err := waitFuture(t, urgent); err != nil {
		t.Fatalf("urgent: %v", err)
	}
	want := []string{"active", "Stop immediately"}
	if got := remote.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestStopAbortsActiveAndPending(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.block = true
	local := newFakeTransport("local")
	q := NewQueue(remote, local, testLogger())

	active := q.Enqueue("Crossing ahead")
	remote.waitStarted(t)
	pending := q.Enqueue("Turn right")

	q.Stop("user request")

	for name, f := range map[string]*Future{"active": active, "pending": pending} {
		err := waitFuture(t, f)
		if !errors.Is(err, domain.ErrPlaybackAborted) {
			t.Fatalf("%s: err = %v, want ErrPlaybackAborted", name, err)
		}
		if f.Outcome() != domain.OutcomeAborted {
			t.Fatalf("%s: outcome = %s, want aborted", name, f.Outcome())
		}
	}
	if remote.CancelCount() == 0 {
		t.Fatal("expected remote transport to be cancelled")
	}
	if len(local.Calls()) != 0 {
		t.Fatalf("local must not run after a stop, got %v", local.Calls())
	}

	// Stop is idempotent and harmless when idle.
	q.Stop("again")
	q.Stop("")

	// An aborted announcement is not remembered.
	remote.block = false
	again := q.Enqueue("Crossing ahead")
	if err := waitFuture(t, again); err != nil || again.Outcome() != domain.OutcomeSpoken {
		t.Fatalf("re-enqueue got (%s, %v), want spoken", again.Outcome(), err)
	}
}

func TestStopClearsDedupeMemory(t *testing.T) {
	remote := newFakeTransport("remote")
	q := NewQueue(remote, nil, testLogger(), WithDefaultDedupeWindow(time.Hour))

	if err := waitFuture(t, q.Enqueue("Exit on the left")); err != nil {
		t.Fatalf("first: %v", err)
	}
	q.Stop("reset")
	f := q.Enqueue("Exit on the left")
	if err := waitFuture(t, f); err != nil || f.Outcome() != domain.OutcomeSpoken {
		t.Fatalf("after stop got (%s, %v), want spoken", f.Outcome(), err)
	}
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.err = fmt.Errorf("%w: synthesis error 500: boom", domain.ErrTransportFailed)
	local := newFakeTransport("local")
	journal := &fakeJournal{}
	q := NewQueue(remote, local, testLogger(), WithJournal(journal))

	f := q.Enqueue("Elevator on your right")
	if err := waitFuture(t, f); err != nil {
		t.Fatalf("expected fallback to succeed: %v", err)
	}
	if got := local.Calls(); !reflect.DeepEqual(got, []string{"Elevator on your right"}) {
		t.Fatalf("local calls = %v", got)
	}
	if got := len(remote.Calls()); got != 1 {
		t.Fatalf("remote calls = %d, want 1 (no retry)", got)
	}

	entries := journal.all()
	if len(entries) != 1 || entries[0].Transport != "local" || entries[0].Outcome != domain.OutcomeSpoken {
		t.Fatalf("journal = %+v", entries)
	}
}

func TestBothTransportsFailing(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.err = fmt.Errorf("%w: unreachable", domain.ErrTransportFailed)
	local := newFakeTransport("local")
	local.err = errors.New("no synthesizer")
	q := NewQueue(remote, local, testLogger())

	f := q.Enqueue("Curb ahead")
	err := waitFuture(t, f)
	if !errors.Is(err, domain.ErrSynthesisUnavailable) {
		t.Fatalf("err = %v, want ErrSynthesisUnavailable", err)
	}
	if f.Outcome() != domain.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", f.Outcome())
	}
	if q.LastSpoken() != "" {
		t.Fatal("a failure must not update lastSpoken")
	}

	// The queue keeps going after a double failure.
	remote.err = nil
	if err := waitFuture(t, q.Enqueue("Curb ahead")); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestNilRemoteUsesLocalOnly(t *testing.T) {
	local := newFakeTransport("local")
	q := NewQueue(nil, local, testLogger())

	if err := waitFuture(t, q.Enqueue("Hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := local.Calls(); !reflect.DeepEqual(got, []string{"Hello"}) {
		t.Fatalf("local calls = %v", got)
	}
}

func TestSingleActiveAcrossTransports(t *testing.T) {
	gauge := &activeGauge{}
	remote := newFakeTransport("remote")
	remote.gauge = gauge
	remote.delay = 2 * time.Millisecond
	// Every third announcement goes through the local fallback.
	remote.failOn = func(text string) bool {
		var n int
		fmt.Sscanf(text, "announcement %d", &n)
		return n%3 == 0
	}
	local := newFakeTransport("local")
	local.gauge = gauge
	local.delay = 2 * time.Millisecond

	q := NewQueue(remote, local, testLogger())
	var last *Future
	for i := 0; i < 20; i++ {
		last = q.Enqueue(fmt.Sprintf("announcement %d", i))
		if i%5 == 0 {
			last = q.Enqueue(fmt.Sprintf("urgent %d", i), High())
		}
	}
	if err := waitFuture(t, last); err != nil {
		t.Fatalf("last: %v", err)
	}
	if gauge.peak() != 1 {
		t.Fatalf("peak concurrent renders = %d, want 1", gauge.peak())
	}
	if len(local.Calls()) == 0 {
		t.Fatal("local fallback never rendered")
	}
}

func TestStopAllowsImmediateReannouncement(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.block = true
	remote.unwind = 150 * time.Millisecond
	q := NewQueue(remote, nil, testLogger())

	first := q.Enqueue("Obstacle ahead")
	remote.waitStarted(t)
	q.Stop("preempt")

	// The first render is still unwinding; the same text must be admitted.
	again := q.Enqueue("Obstacle ahead")
	if got := again.Outcome(); got != domain.OutcomePending {
		t.Fatalf("re-announcement outcome = %s, want pending", got)
	}
	if q.QueueLen() != 1 {
		t.Fatalf("QueueLen = %d, want 1", q.QueueLen())
	}

	if err := waitFuture(t, first); !errors.Is(err, domain.ErrPlaybackAborted) {
		t.Fatalf("first: err = %v, want ErrPlaybackAborted", err)
	}
	remote.waitStarted(t)
	remote.releaseOne(t)
	if err := waitFuture(t, again); err != nil {
		t.Fatalf("again: %v", err)
	}
	if again.Outcome() != domain.OutcomeSpoken {
		t.Fatalf("again outcome = %s, want spoken", again.Outcome())
	}
}

func TestCloseRejectsLaterAnnouncements(t *testing.T) {
	remote := newFakeTransport("remote")
	remote.block = true
	q := NewQueue(remote, nil, testLogger())

	active := q.Enqueue("Going")
	remote.waitStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !errors.Is(active.Err(), domain.ErrPlaybackAborted) {
		t.Fatalf("active err = %v, want ErrPlaybackAborted", active.Err())
	}

	f := q.Enqueue("too late")
	if !errors.Is(f.Err(), domain.ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", f.Err())
	}
	if q.IsSpeaking() {
		t.Fatal("closed queue still speaking")
	}
}

func TestJournalAndMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	journal := &fakeJournal{}
	remote := newFakeTransport("remote")
	q := NewQueue(remote, nil, testLogger(), WithJournal(journal), WithMetrics(NewMetrics(reg)))

	if err := waitFuture(t, q.Enqueue("Ramp ahead", High())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Enqueue("Ramp ahead")

	entries := journal.all()
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Text != "Ramp ahead" || e.Priority != "high" || e.Transport != "remote" || e.ID == "" {
		t.Fatalf("unexpected entry %+v", e)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "navcompanion_announcements_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" {
					counts[lp.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["spoken"] != 1 || counts["skipped"] != 1 {
		t.Fatalf("outcome counts = %v", counts)
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	got := truncate("Évitez l'escalier à droite", 10)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != "Évitez ..." {
		t.Fatalf("truncate = %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatal("short text must pass through")
	}
}
