package chaser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/CloudNativeWorks/license-chaser/chaser/registry"
)

// registryTimeout bounds every registry call.
const registryTimeout = 5 * time.Second

// Lister fetches the license listing of a server. *Client implements it.
type Lister interface {
	ListLicenses(ctx context.Context) (*ResponseEnvelope, error)
}

// Event is one lifecycle notification of a subscription.
type Event struct {
	Kind           EventKind
	SubscriptionID string
	Cycle          uint64 // 0 for EventStarted
	At             time.Time

	// EventResponded
	Count    int
	Envelope *ResponseEnvelope

	// EventErrored
	Err error

	// EventLaunchRequested
	Product ProductKind
}

// Chaser polls a license server until seats for the selected product are
// available. A Chaser runs at most one subscription at a time; a stopped or
// launched subscription can be restarted with Start.
type Chaser struct {
	serverURL   string
	interval    time.Duration
	logger      *zap.Logger
	lister      Lister
	clientOpts  []ClientOption
	registry    registry.Registry
	fingerprint string

	mu         sync.Mutex
	state      State
	criterion  Criterion
	autoLaunch bool
	sub        *subscription
}

type subscription struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Chaser for the license server at serverURL. The URL is
// validated by Start, not here.
func New(serverURL string, opts ...Option) *Chaser {
	c := &Chaser{
		serverURL: strings.TrimSpace(serverURL),
		interval:  DefaultInterval,
		logger:    zap.NewNop(),
		criterion: Criterion{Product: ProductCore},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lister == nil {
		c.lister = NewClient(c.serverURL, c.clientOpts...)
	}
	return c
}

// Start begins a new subscription and returns its event channel. The
// channel is closed when the subscription is suspended, either by Stop,
// by cancellation of ctx, or after a launch was requested.
//
// The receiver must drain the channel; the engine does not buffer events.
func (c *Chaser) Start(ctx context.Context) (<-chan Event, error) {
	if err := validateServerURL(c.serverURL); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:     ulid.Make().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.sub = sub
	c.state = StateStarting

	events := make(chan Event)
	go c.run(ctx, sub, events)
	return events, nil
}

// Stop suspends the active subscription and waits for the engine to exit.
// No event is delivered after Stop returns. A request in flight is
// abandoned and its result discarded.
func (c *Chaser) Stop() {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil {
		return
	}
	sub.cancel()
	<-sub.done
}

// State returns the current lifecycle state.
func (c *Chaser) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetCriterion changes the selection used from the next cycle on.
func (c *Chaser) SetCriterion(cr Criterion) {
	c.mu.Lock()
	c.criterion = cr
	c.mu.Unlock()
}

// Criterion returns the current selection.
func (c *Chaser) Criterion() Criterion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criterion
}

// SetAutoLaunch enables or disables launch requests from the next cycle on.
func (c *Chaser) SetAutoLaunch(enabled bool) {
	c.mu.Lock()
	c.autoLaunch = enabled
	c.mu.Unlock()
}

// AutoLaunch reports whether launch requests are enabled.
func (c *Chaser) AutoLaunch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoLaunch
}

func (c *Chaser) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Chaser) snapshot() (Criterion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criterion, c.autoLaunch
}

func (c *Chaser) run(ctx context.Context, sub *subscription, events chan<- Event) {
	log := c.logger.With(zap.String("subscription", sub.id))
	log.Info("chaser started", zap.String("server", c.serverURL), zap.Duration("interval", c.interval))

	criterion, _ := c.snapshot()
	pres := c.startPresence(ctx, sub, criterion, log)
	defer func() {
		sub.cancel()
		pres.wait()
		c.mu.Lock()
		c.state = StateSuspended
		if c.sub == sub {
			c.sub = nil
		}
		c.mu.Unlock()
		log.Info("chaser suspended")
		close(events)
		close(sub.done)
	}()

	emit := func(ev Event) bool {
		ev.SubscriptionID = sub.id
		ev.At = time.Now()
		if ctx.Err() != nil {
			return false
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Kind: EventStarted}) {
		return
	}
	c.setState(StatePolling)

	launched := false
	for cycle := uint64(1); ; cycle++ {
		criterion, autoLaunch := c.snapshot()

		env, err := c.fetch(ctx)
		if ctx.Err() != nil {
			log.Debug("discarding in-flight request", zap.Uint64("cycle", cycle))
			return
		}

		if err != nil {
			log.Warn("license request failed", zap.Uint64("cycle", cycle), zap.Error(err))
			if !emit(Event{Kind: EventErrored, Cycle: cycle, Err: err}) {
				return
			}
		} else {
			count := Aggregate(env, criterion)
			log.Debug("license server responded",
				zap.Uint64("cycle", cycle),
				zap.Stringer("criterion", criterion),
				zap.Int("available", count),
				zap.Int("records", len(env.Licenses)),
			)
			if !emit(Event{Kind: EventResponded, Cycle: cycle, Count: count, Envelope: env}) {
				return
			}
			pres.update(criterion)

			if ShouldLaunch(launched, autoLaunch, count) {
				launched = true
				log.Info("seats available, requesting launch",
					zap.Stringer("product", criterion.Product),
					zap.Int("available", count),
				)
				emit(Event{Kind: EventLaunchRequested, Cycle: cycle, Product: criterion.Product})
				return
			}
		}

		c.setState(StateSleeping)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.setState(StatePolling)
	}
}

// fetch runs one request without tying the engine to it: when ctx is
// cancelled the engine returns at once and the result is dropped.
func (c *Chaser) fetch(ctx context.Context) (*ResponseEnvelope, error) {
	type result struct {
		env *ResponseEnvelope
		err error
	}
	ch := make(chan result, 1)
	go func() {
		env, err := c.lister.ListLicenses(ctx)
		ch <- result{env: env, err: err}
	}()
	select {
	case r := <-ch:
		if r.err == nil && r.env == nil {
			r.env = &ResponseEnvelope{}
		}
		return r.env, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// presence keeps this machine registered while a subscription runs. It
// works on its own goroutine so a slow or unreachable registry never delays
// a cycle. A nil *presence (no registry configured) ignores every call.
type presence struct {
	reg     registry.Registry
	log     *zap.Logger
	node    registry.Node
	updates chan Criterion
	done    chan struct{}
}

func (c *Chaser) startPresence(ctx context.Context, sub *subscription, cr Criterion, log *zap.Logger) *presence {
	if c.registry == nil {
		return nil
	}
	hostname, _ := os.Hostname()
	p := &presence{
		reg: c.registry,
		log: log,
		node: registry.Node{
			Fingerprint:    c.fingerprint,
			Hostname:       hostname,
			OS:             runtime.GOOS,
			SubscriptionID: sub.id,
		},
		updates: make(chan Criterion, 1),
		done:    make(chan struct{}),
	}
	go p.run(ctx, cr)
	return p
}

// update hands the criterion of the latest response to the worker. Only the
// newest value is kept; the cycle never blocks here.
func (p *presence) update(cr Criterion) {
	if p == nil {
		return
	}
	select {
	case <-p.updates:
	default:
	}
	p.updates <- cr
}

// wait blocks until the node has been withdrawn.
func (p *presence) wait() {
	if p == nil {
		return
	}
	<-p.done
}

func (p *presence) run(ctx context.Context, cr Criterion) {
	defer close(p.done)

	if p.node.Fingerprint == "" {
		fp, err := GenerateFingerprint()
		if err != nil {
			p.log.Warn("registry disabled: fingerprint unavailable", zap.Error(err))
			return
		}
		p.node.Fingerprint = fp
	}

	registered := p.register(ctx, cr)
	for {
		select {
		case <-ctx.Done():
			// a registration cut short by cancellation may still have landed
			p.withdraw(ctx)
			return
		case next := <-p.updates:
			// re-register after a failure or a selection change, ping otherwise
			if !registered || next != cr {
				cr = next
				registered = p.register(ctx, cr)
				continue
			}
			if err := p.ping(ctx); err != nil {
				p.log.Warn("registry ping failed", zap.Error(err))
				registered = false
			}
		}
	}
}

func (p *presence) register(ctx context.Context, cr Criterion) bool {
	ctx, cancel := context.WithTimeout(ctx, registryTimeout)
	defer cancel()
	p.node.Product = cr.Product.String()
	p.node.MajorVersion = int(cr.MajorVersion)
	if _, err := p.reg.Register(ctx, p.node); err != nil {
		p.log.Warn("registry register failed", zap.Error(err))
		return false
	}
	return true
}

func (p *presence) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, registryTimeout)
	defer cancel()
	return p.reg.Ping(ctx, p.node.Fingerprint)
}

func (p *presence) withdraw(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), registryTimeout)
	defer cancel()
	if err := p.reg.Deregister(ctx, p.node.Fingerprint); err != nil {
		p.log.Warn("registry deregister failed", zap.Error(err))
	}
}

func validateServerURL(raw string) error {
	if raw == "" {
		return ErrMissingServerURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidServerURL, raw)
	}
	return nil
}
