package query

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/store"
)

const (
	// DefaultDebounce is the quiet period a search text must hold before it
	// triggers a lookup.
	DefaultDebounce = 250 * time.Millisecond

	// DefaultGracePeriod is how long the pipeline keeps computing after its
	// last subscriber leaves.
	DefaultGracePeriod = 5 * time.Second
)

// Result is one emission of the pipeline.
type Result struct {
	// Query is the settled search text the entries were looked up with.
	Query string
	Sort  SortMode

	// Entries is sorted by Sort. Nil when Err is set.
	Entries []species.Entry

	// Err is a lookup failure. It is delivered to the subscribers attached
	// when it happened and never replayed.
	Err error
}

// Recorder receives pipeline counts. Implemented by metrics.Metrics.
type Recorder interface {
	LookupStarted(search bool)
	LookupAbandoned()
	StaleResultDropped()
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDebounce sets the quiet window for search text.
func WithDebounce(d time.Duration) Option {
	return func(p *Pipeline) {
		p.debounce.window = d
	}
}

// WithGracePeriod sets how long computation continues with no subscribers.
// Zero idles immediately when the last subscriber leaves.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pipeline) {
		p.grace = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithInitialSort sets the sort mode before any SetSort call.
func WithInitialSort(m SortMode) Option {
	return func(p *Pipeline) {
		p.sort = m
	}
}

// Pipeline composes search text and sort mode into a live sorted list.
//
// Thread-safety model:
//   - SetQuery, SetSort, Subscribe, Snapshot: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// Inputs sent before Run starts are queued and applied once it does.
type Pipeline struct {
	queue    *eventQueue
	debounce debouncer
	lookup   switcher
	grace    time.Duration
	logger   *slog.Logger
	recorder Recorder

	// Loop-owned state. Only touched by the Run goroutine.
	runCtx     context.Context
	text       string // latest raw text
	settled    string // text after the quiet window
	sort       SortMode
	lookupText string          // text of the lookup in flight
	raw        []species.Entry // last unsorted lookup result
	rawQuery   string          // text raw was looked up with
	haveRaw    bool
	observers  map[*observer]struct{}
	graceTimer *time.Timer
	graceGen   uint64

	latest  atomic.Pointer[Result]
	running atomic.Bool
	done    chan struct{}
}

// observer is one subscriber. ch holds at most the newest undelivered
// result.
type observer struct {
	ch chan Result
}

// New creates a pipeline reading from src. Call Run to start it.
func New(src Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		queue:     newEventQueue(),
		grace:     DefaultGracePeriod,
		logger:    slog.Default(),
		observers: make(map[*observer]struct{}),
		done:      make(chan struct{}),
	}
	p.debounce = debouncer{
		window: DefaultDebounce,
		fire: func(gen uint64, text string) {
			p.queue.Enqueue(event{typ: eventDebounced, gen: gen, text: text})
		},
	}
	p.lookup = switcher{
		src: src,
		emit: func(gen uint64, snap store.ListSnapshot) {
			p.queue.Enqueue(event{typ: eventLookup, gen: gen, snap: snap})
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetQuery updates the search text. The lookup runs once the text has been
// left alone for the debounce window.
func (p *Pipeline) SetQuery(text string) {
	p.queue.Enqueue(event{typ: eventSetQuery, text: text})
}

// SetSort updates the sort mode. The current result is re-sorted without
// querying the store again.
func (p *Pipeline) SetSort(mode SortMode) {
	p.queue.Enqueue(event{typ: eventSetSort, sort: mode})
}

// Subscribe attaches a subscriber until ctx is done. The latest result, if
// any, is replayed immediately. A slow subscriber only ever sees the newest
// undelivered result.
//
// The channel is closed when ctx is done or the pipeline stops.
func (p *Pipeline) Subscribe(ctx context.Context) <-chan Result {
	obs := &observer{ch: make(chan Result, 1)}
	if !p.queue.Enqueue(event{typ: eventSubscribe, obs: obs}) {
		close(obs.ch)
		return obs.ch
	}

	go func() {
		select {
		case <-ctx.Done():
			p.queue.Enqueue(event{typ: eventUnsubscribe, obs: obs})
		case <-p.done:
		}
	}()

	return obs.ch
}

// Snapshot returns the latest successful result, or false when nothing has
// been computed since the pipeline last went idle.
func (p *Pipeline) Snapshot() (Result, bool) {
	r := p.latest.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Done is closed once Run has returned.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("query: pipeline already running")

// Run processes events until ctx is cancelled. It returns ctx.Err().
// A pipeline runs once; after Run returns, Subscribe yields closed channels.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	p.runCtx = ctx
	defer p.shutdown()

	for {
		for {
			e, ok := p.queue.TryDequeue()
			if !ok {
				break
			}
			p.handle(e)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.queue.Wait():
		}
	}
}

func (p *Pipeline) handle(e event) {
	switch e.typ {
	case eventSetQuery:
		p.text = e.text
		p.debounce.Push(e.text)

	case eventDebounced:
		if !p.debounce.Current(e.gen) {
			return
		}
		changed := e.text != p.settled
		p.settled = e.text
		if p.lookup.Active() && changed {
			p.startLookup()
		}

	case eventSetSort:
		p.sort = e.sort
		if p.haveRaw {
			p.publish()
		}

	case eventLookup:
		if !p.lookup.Current(e.gen) {
			p.logger.Debug("dropping result of superseded lookup", "generation", e.gen)
			if p.recorder != nil {
				p.recorder.StaleResultDropped()
			}
			return
		}
		if e.snap.Err != nil {
			p.logger.Warn("lookup failed", "query", p.lookupText, "error", e.snap.Err)
			p.broadcast(Result{Query: p.lookupText, Sort: p.sort, Err: e.snap.Err})
			return
		}
		p.raw, p.rawQuery, p.haveRaw = e.snap.Value, p.lookupText, true
		p.publish()

	case eventSubscribe:
		p.observers[e.obs] = struct{}{}
		p.cancelGrace()
		if r := p.latest.Load(); r != nil {
			offer(e.obs.ch, *r)
		}
		if !p.lookup.Active() {
			p.startLookup()
		}

	case eventUnsubscribe:
		if _, ok := p.observers[e.obs]; !ok {
			return
		}
		delete(p.observers, e.obs)
		close(e.obs.ch)
		if len(p.observers) == 0 {
			p.startGrace()
		}

	case eventGraceExpired:
		if e.gen != p.graceGen || len(p.observers) > 0 {
			return
		}
		p.idle()
	}
}

func (p *Pipeline) startLookup() {
	if p.lookup.Active() && p.recorder != nil {
		p.recorder.LookupAbandoned()
	}
	p.lookupText = p.settled
	gen, search := p.lookup.Switch(p.runCtx, p.settled)
	p.logger.Debug("lookup started", "query", p.settled, "search", search, "generation", gen)
	if p.recorder != nil {
		p.recorder.LookupStarted(search)
	}
}

// publish sorts the current lookup result and sends it to every subscriber.
// The result carries the text it was looked up with, which lags p.settled
// while a newer lookup is in flight.
func (p *Pipeline) publish() {
	r := Result{
		Query:   p.rawQuery,
		Sort:    p.sort,
		Entries: Sort(p.raw, p.sort),
	}
	p.latest.Store(&r)
	p.broadcast(r)
}

func (p *Pipeline) broadcast(r Result) {
	for obs := range p.observers {
		offer(obs.ch, r)
	}
}

func (p *Pipeline) startGrace() {
	p.graceGen++
	if p.grace <= 0 {
		p.idle()
		return
	}
	gen := p.graceGen
	p.graceTimer = time.AfterFunc(p.grace, func() {
		p.queue.Enqueue(event{typ: eventGraceExpired, gen: gen})
	})
}

func (p *Pipeline) cancelGrace() {
	p.graceGen++
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
}

// idle stops the lookup and forgets its result. Text and sort are kept.
func (p *Pipeline) idle() {
	p.logger.Debug("no subscribers, pipeline idle", "query", p.settled)
	p.lookup.Abandon()
	p.raw, p.rawQuery, p.haveRaw = nil, "", false
	p.latest.Store(nil)
}

func (p *Pipeline) shutdown() {
	p.debounce.Stop()
	p.cancelGrace()
	p.lookup.Abandon()
	p.lookup.Wait()

	for obs := range p.observers {
		delete(p.observers, obs)
		close(obs.ch)
	}
	// Subscribers that raced shutdown never made it into the map.
	for _, e := range p.queue.Close() {
		if e.typ == eventSubscribe {
			close(e.obs.ch)
		}
	}
	close(p.done)
}

// offer delivers r, replacing an undelivered older result. Only the loop
// goroutine sends, so the retry terminates.
func offer(ch chan Result, r Result) {
	for {
		select {
		case ch <- r:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
