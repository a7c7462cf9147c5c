package replication

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/ecowatch/internal/species"
)

// Replica is the remote side: one document per entry.
type Replica interface {
	// MergeSet writes fields into the document at key, creating it if
	// needed. Fields not named are left untouched.
	MergeSet(ctx context.Context, key string, fields map[string]any) error

	// GetAll returns every document.
	GetAll(ctx context.Context) ([]Document, error)
}

// LocalStore is the store surface pull writes to. *store.Store implements
// it.
type LocalStore interface {
	DeleteAll(ctx context.Context) error
	Upsert(ctx context.Context, e species.Entry) (species.Entry, error)
}

// Clock supplies the createdAt fallback in epoch milliseconds.
type Clock interface {
	NowMillis() int64
}

type systemClock struct{}

func (systemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// Recorder receives sync outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	SyncPush(err error)
	SyncPull(applied, skipped int, err error)
}

// PullResult summarises a successful pull.
type PullResult struct {
	Applied int
	Skipped []*DecodeError
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyGenerator sets the key source for entries without an id.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(e *Engine) {
		e.keys = g
	}
}

// WithClock sets the clock. Defaults to wall time.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine pushes entries to a replica and restores the local store from it.
//
// Engine has no state of its own beyond its collaborators; concurrent calls
// are allowed but not coordinated, and concurrent pushes of the same entry
// resolve as last writer wins on the replica.
type Engine struct {
	local    LocalStore
	remote   Replica
	keys     KeyGenerator
	clock    Clock
	logger   *slog.Logger
	recorder Recorder
}

// New creates an Engine.
func New(local LocalStore, remote Replica, opts ...Option) *Engine {
	e := &Engine{
		local:  local,
		remote: remote,
		keys:   UUIDv7Generator{},
		clock:  systemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PushOne merge-writes the full field set of entry. The key is the decimal
// id, or a generated key when the entry has never been stored locally.
// It returns the key written.
func (e *Engine) PushOne(ctx context.Context, entry species.Entry) (string, error) {
	key := Key(entry.ID)
	if entry.ID == 0 {
		key = e.keys.NewKey()
		e.logger.Warn("pushing entry without local id under generated key", "name", entry.Name, "key", key)
	}

	err := e.remote.MergeSet(ctx, key, Encode(entry, e.clock.NowMillis()))
	if e.recorder != nil {
		e.recorder.SyncPush(err)
	}
	if err != nil {
		return "", &SyncError{Op: "push", Phase: PhaseWrite, Key: key, Err: err}
	}
	e.logger.Debug("pushed entry", "id", entry.ID, "key", key)
	return key, nil
}

// PushAll pushes entries one at a time, in order, and stops at the first
// failure. It returns how many were pushed.
func (e *Engine) PushAll(ctx context.Context, entries []species.Entry) (int, error) {
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return i, &SyncError{Op: "push", Phase: PhaseWrite, Key: Key(entry.ID), Err: err}
		}
		if _, err := e.PushOne(ctx, entry); err != nil {
			return i, err
		}
	}
	e.logger.Info("backup complete", "pushed", len(entries))
	return len(entries), nil
}

// PullReplace replaces every local entry with the decodable remote
// documents. Undecodable documents are skipped and reported in the result.
//
// The local delete and the inserts are separate store calls. If an insert
// fails the store is left with the entries inserted so far and the error
// is a SyncError in PhaseReplace.
func (e *Engine) PullReplace(ctx context.Context) (PullResult, error) {
	var res PullResult
	err := e.pullReplace(ctx, &res)
	if e.recorder != nil {
		e.recorder.SyncPull(res.Applied, len(res.Skipped), err)
	}
	return res, err
}

func (e *Engine) pullReplace(ctx context.Context, res *PullResult) error {
	docs, err := e.remote.GetAll(ctx)
	if err != nil {
		return &SyncError{Op: "pull", Phase: PhaseFetch, Err: err}
	}

	now := e.clock.NowMillis()
	entries := make([]species.Entry, 0, len(docs))
	for _, doc := range docs {
		entry, err := Decode(doc, now)
		if err != nil {
			var de *DecodeError
			if !errors.As(err, &de) {
				return &SyncError{Op: "pull", Phase: PhaseFetch, Key: doc.Key, Err: err}
			}
			e.logger.Warn("skipping remote document", "key", doc.Key, "error", de)
			res.Skipped = append(res.Skipped, de)
			continue
		}
		entries = append(entries, entry)
	}

	if err := e.local.DeleteAll(ctx); err != nil {
		return &SyncError{Op: "pull", Phase: PhaseClear, Err: err}
	}

	for _, entry := range entries {
		if _, err := e.local.Upsert(ctx, entry); err != nil {
			e.logger.Error("restore left local store incomplete",
				"applied", res.Applied, "total", len(entries), "error", err)
			return &SyncError{Op: "pull", Phase: PhaseReplace, Key: Key(entry.ID), Err: err}
		}
		res.Applied++
	}

	e.logger.Info("restore complete", "applied", res.Applied, "skipped", len(res.Skipped))
	return nil
}
