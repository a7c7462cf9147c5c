package store

import (
	"context"

	"github.com/roach88/ecowatch/internal/species"
)

// Snapshot is one emission of a live observation: either the query result
// or the error that prevented it. A failed query does not end the
// observation; the next change triggers a retry.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// ListSnapshot carries an ordered entry list.
type ListSnapshot = Snapshot[[]species.Entry]

// EntrySnapshot carries an optional entry; Value is nil when absent.
type EntrySnapshot = Snapshot[*species.Entry]

// ObserveAll streams every entry, newest id first.
func (s *Store) ObserveAll(ctx context.Context) <-chan ListSnapshot {
	return observe(ctx, s, s.All, species.EqualLists)
}

// ObserveByID streams the entry with the given id.
func (s *Store) ObserveByID(ctx context.Context, id int64) <-chan EntrySnapshot {
	query := func(ctx context.Context) (*species.Entry, error) {
		return s.ByID(ctx, id)
	}
	equal := func(a, b *species.Entry) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Equal(*b)
	}
	return observe(ctx, s, query, equal)
}

// ObserveSearch streams entries whose name contains text, ordered by name.
func (s *Store) ObserveSearch(ctx context.Context, text string) <-chan ListSnapshot {
	query := func(ctx context.Context) ([]species.Entry, error) {
		return s.Search(ctx, text)
	}
	return observe(ctx, s, query, species.EqualLists)
}

// observe runs query once for the initial replay and again after every
// change signal, emitting only when the result differs from the last
// successful emission. Errors are always emitted.
//
// The returned channel is closed when ctx is done or the store is closed.
func observe[T any](ctx context.Context, s *Store, query func(context.Context) (T, error), equal func(a, b T) bool) <-chan Snapshot[T] {
	out := make(chan Snapshot[T])

	// Register before the first query so a write racing the initial read
	// still produces a follow-up emission.
	w, ok := s.watch()
	if !ok {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer s.unwatch(w)

		var (
			last T
			have bool
		)
		for {
			value, err := query(ctx)
			if ctx.Err() != nil {
				return
			}

			switch {
			case err != nil:
				have = false
				if !send(ctx, s.done, out, Snapshot[T]{Err: err}) {
					return
				}
			case !have || !equal(last, value):
				last, have = value, true
				if !send(ctx, s.done, out, Snapshot[T]{Value: value}) {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-w.signal:
			}
		}
	}()

	return out
}

func send[T any](ctx context.Context, done <-chan struct{}, out chan<- Snapshot[T], snap Snapshot[T]) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	case <-done:
		return false
	}
}

// watcher is a coalescing change signal (buffered, size 1).
type watcher struct {
	signal chan struct{}
}

func (s *Store) watch() (*watcher, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	w := &watcher{signal: make(chan struct{}, 1)}
	s.watchers[w] = struct{}{}
	return w, true
}

func (s *Store) unwatch(w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, w)
}

// notify wakes every watcher. Non-blocking: a pending signal already
// covers this change.
func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		select {
		case w.signal <- struct{}{}:
		default:
		}
	}
}

// Observers returns the number of live observations.
func (s *Store) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}
