package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/roach88/ecowatch/internal/store"
)

// Source is the store surface the pipeline reads from. *store.Store
// implements it.
type Source interface {
	ObserveAll(ctx context.Context) <-chan store.ListSnapshot
	ObserveSearch(ctx context.Context, text string) <-chan store.ListSnapshot
}

// debouncer is the cancellable delay stage. Push restarts the window; only
// the firing whose token is still current counts.
//
// Not safe for concurrent use: only the loop goroutine calls it. The timer
// callback only enqueues.
type debouncer struct {
	window time.Duration
	timer  *time.Timer
	gen    uint64
	fire   func(gen uint64, text string)
}

func (d *debouncer) Push(text string) {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen, text) })
}

// Current reports whether gen is the latest pushed token.
func (d *debouncer) Current(gen uint64) bool {
	return gen == d.gen
}

func (d *debouncer) Stop() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// switcher is the start-new, abandon-previous stage. Each Switch cancels the
// previous lookup's context and tags forwarded snapshots with a new
// generation.
//
// Not safe for concurrent use: only the loop goroutine calls it.
type switcher struct {
	src    Source
	gen    uint64
	cancel context.CancelFunc
	emit   func(gen uint64, snap store.ListSnapshot)
	wg     sync.WaitGroup
}

// Switch abandons the in-flight lookup and starts one for text. Blank text
// observes everything; anything else searches by name.
func (s *switcher) Switch(ctx context.Context, text string) (gen uint64, search bool) {
	s.Abandon()
	s.gen++
	gen = s.gen

	lookupCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	var ch <-chan store.ListSnapshot
	search = strings.TrimSpace(text) != ""
	if search {
		ch = s.src.ObserveSearch(lookupCtx, text)
	} else {
		ch = s.src.ObserveAll(lookupCtx)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-lookupCtx.Done():
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				s.emit(gen, snap)
			}
		}
	}()

	return gen, search
}

// Current reports whether gen belongs to the lookup in flight.
func (s *switcher) Current(gen uint64) bool {
	return s.cancel != nil && gen == s.gen
}

// Active reports whether a lookup is in flight.
func (s *switcher) Active() bool {
	return s.cancel != nil
}

// Abandon cancels the in-flight lookup, if any. Returns true if one was
// running.
func (s *switcher) Abandon() bool {
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// Wait blocks until every forwarding goroutine has exited.
func (s *switcher) Wait() {
	s.wg.Wait()
}
