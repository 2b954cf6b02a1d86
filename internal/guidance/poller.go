package guidance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/logger"
	"github.com/hammamikhairi/navcompanion/internal/speech"
)

// Option configures a poller.
type Option func(*poller)

// WithInterval sets how often the poller asks the backend.
func WithInterval(d time.Duration) Option {
	return func(p *poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithFailureThreshold sets how many consecutive failed polls trigger a
// single "guidance unavailable" announcement. Zero disables it.
func WithFailureThreshold(n int) Option {
	return func(p *poller) {
		p.failureThreshold = n
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *poller) {
		p.now = now
	}
}

// poller is the shared ticker loop behind DecisionPoller and RoutePoller.
type poller struct {
	name             string
	notifier         domain.Notifier
	log              *logger.Logger
	interval         time.Duration
	failureThreshold int
	now              func() time.Time
	pollFn           func(ctx context.Context) error

	failures int
	lostSaid bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newPoller(name string, interval time.Duration, notifier domain.Notifier, log *logger.Logger, opts []Option) *poller {
	p := &poller{
		name:             name,
		notifier:         notifier,
		log:              log,
		interval:         interval,
		failureThreshold: 3,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins the background loop. Non-blocking.
func (p *poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.log.Warn("%s poller already running", p.name)
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.done = make(chan struct{})

	go p.loop(childCtx, p.done)
	p.log.Info("%s poller started (interval=%s)", p.name, p.interval)
}

// Stop shuts the loop down and waits for the current poll to finish.
func (p *poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.running = false
	done := p.done
	p.mu.Unlock()

	<-done
	p.log.Info("%s poller stopped", p.name)
}

func (p *poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one tick and tracks consecutive failures.
func (p *poller) poll(ctx context.Context) {
	err := p.pollFn(ctx)
	if err == nil {
		if p.lostSaid {
			p.log.Info("%s poller: guidance restored", p.name)
		}
		p.failures = 0
		p.lostSaid = false
		return
	}
	if ctx.Err() != nil {
		return
	}

	p.failures++
	p.log.Warn("%s poller: %v", p.name, err)
	if p.failureThreshold > 0 && p.failures >= p.failureThreshold && !p.lostSaid {
		p.lostSaid = true
		if nerr := p.notifier.Notify(ctx, speech.LineGuidanceLost()); nerr != nil {
			p.log.Error("%s poller: notifying: %v", p.name, nerr)
		}
	}
}

// DecisionPoller announces each new obstacle-avoidance decision once.
// STOP goes out urgently, interrupting queued guidance.
type DecisionPoller struct {
	*poller
	source domain.GuidanceSource
	room   string

	seen    bool
	lastSeq int64
}

// NewDecisionPoller creates a poller for room's latest decision.
func NewDecisionPoller(source domain.GuidanceSource, room string, notifier domain.Notifier, log *logger.Logger, opts ...Option) *DecisionPoller {
	d := &DecisionPoller{source: source, room: room}
	d.poller = newPoller("decision", time.Second, notifier, log, opts)
	d.poller.pollFn = d.tick
	return d
}

func (d *DecisionPoller) tick(ctx context.Context) error {
	dec, err := d.source.LatestDecision(ctx, d.room)
	if err != nil {
		return err
	}
	if dec == nil {
		return nil
	}
	// A lower sequence means the backend restarted.
	if d.seen && dec.Sequence == d.lastSeq {
		return nil
	}
	d.seen = true
	d.lastSeq = dec.Sequence

	if !dec.ExpiresAt.IsZero() && d.now().After(dec.ExpiresAt) {
		d.log.Debug("decision poller: sequence %d already expired", dec.Sequence)
		return nil
	}

	line := speech.LineForDecision(*dec)
	d.log.Debug("decision poller: sequence %d %s", dec.Sequence, dec.Command)
	if dec.Command == domain.CommandStop {
		return d.notifier.NotifyUrgent(ctx, line)
	}
	return d.notifier.Notify(ctx, line)
}

// RoutePoller speaks the next route step whenever it changes.
type RoutePoller struct {
	*poller
	source    domain.GuidanceSource
	locations domain.LocationSource
	room      string
	mode      string

	lastPhrase string
}

// NewRoutePoller creates a poller for turn-by-turn guidance. mode is the
// travel mode passed to the directions service.
func NewRoutePoller(source domain.GuidanceSource, locations domain.LocationSource, room, mode string, notifier domain.Notifier, log *logger.Logger, opts ...Option) *RoutePoller {
	if mode == "" {
		mode = "walking"
	}
	r := &RoutePoller{source: source, locations: locations, room: room, mode: mode}
	r.poller = newPoller("route", 15*time.Second, notifier, log, opts)
	r.poller.pollFn = r.tick
	return r
}

func (r *RoutePoller) tick(ctx context.Context) error {
	at, err := r.locations.Current(ctx)
	if err != nil {
		return err
	}
	g, err := r.source.NextDirection(ctx, r.room, at, r.mode)
	if errors.Is(err, domain.ErrNotFound) {
		r.log.Debug("route poller: no destination set for %s", r.room)
		r.lastPhrase = ""
		return nil
	}
	if err != nil {
		return err
	}
	if g.Instruction == "" {
		return nil
	}

	phrase := speech.LineRoute(g.Instruction, g.DistanceText)
	if phrase == r.lastPhrase {
		return nil
	}
	r.lastPhrase = phrase
	return r.notifier.Notify(ctx, phrase)
}

// StaticLocation is a LocationSource that always reports the same point.
type StaticLocation domain.Location

// Current implements domain.LocationSource.
func (s StaticLocation) Current(ctx context.Context) (domain.Location, error) {
	return domain.Location(s), nil
}
