package query

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/store"
)

// lookupCall records one ObserveAll/ObserveSearch call. Tests feed results
// through ch, in any order they like.
type lookupCall struct {
	text   string
	search bool
	ctx    context.Context
	ch     chan store.ListSnapshot
}

func (c *lookupCall) push(entries ...species.Entry) {
	c.ch <- store.ListSnapshot{Value: entries}
}

// fakeSource hands out controllable lookups. It never closes their
// channels, so tests also cover forwarders exiting on cancellation.
type fakeSource struct {
	mu      sync.Mutex
	calls   []*lookupCall
	started chan *lookupCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{started: make(chan *lookupCall, 64)}
}

func (f *fakeSource) ObserveAll(ctx context.Context) <-chan store.ListSnapshot {
	return f.observe(ctx, "", false)
}

func (f *fakeSource) ObserveSearch(ctx context.Context, text string) <-chan store.ListSnapshot {
	return f.observe(ctx, text, true)
}

func (f *fakeSource) observe(ctx context.Context, text string, search bool) <-chan store.ListSnapshot {
	c := &lookupCall{text: text, search: search, ctx: ctx, ch: make(chan store.ListSnapshot, 8)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	f.started <- c
	return c.ch
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.search {
			out = append(out, c.text)
		}
	}
	return out
}

// waitCall returns the next lookup started by the pipeline.
func waitCall(t *testing.T, f *fakeSource) *lookupCall {
	t.Helper()
	select {
	case c := <-f.started:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lookup")
	}
	return nil
}

// startPipeline runs p until the test ends.
func startPipeline(t *testing.T, src Source, opts ...Option) *Pipeline {
	t.Helper()
	p := New(src, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-p.Done()
	})
	return p
}

func recv(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func assertNoResult(t *testing.T, ch <-chan Result, wait time.Duration) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("unexpected result: query=%q entries=%v err=%v", r.Query, ids(r.Entries), r.Err)
	case <-time.After(wait):
	}
}

type countingRecorder struct {
	started   atomic.Int64
	searches  atomic.Int64
	abandoned atomic.Int64
	dropped   atomic.Int64
}

func (r *countingRecorder) LookupStarted(search bool) {
	r.started.Add(1)
	if search {
		r.searches.Add(1)
	}
}

func (r *countingRecorder) LookupAbandoned()    { r.abandoned.Add(1) }
func (r *countingRecorder) StaleResultDropped() { r.dropped.Add(1) }
