// Package memory is an in-process replica. It backs tests and the "memory"
// remote driver.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/ecowatch/internal/replication"
)

// Replica keeps documents in a map guarded by a mutex.
type Replica struct {
	mu   sync.Mutex
	docs map[string]map[string]any

	// FailMerge and FailGetAll, when set, are returned by the next calls.
	FailMerge  error
	FailGetAll error
}

// New returns an empty replica.
func New() *Replica {
	return &Replica{docs: make(map[string]map[string]any)}
}

// MergeSet overwrites the named fields and keeps the rest.
func (r *Replica) MergeSet(ctx context.Context, key string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailMerge != nil {
		return r.FailMerge
	}
	doc, ok := r.docs[key]
	if !ok {
		doc = make(map[string]any, len(fields))
		r.docs[key] = doc
	}
	maps.Copy(doc, fields)
	return nil
}

// GetAll returns copies of every document ordered by key.
func (r *Replica) GetAll(ctx context.Context) ([]replication.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailGetAll != nil {
		return nil, r.FailGetAll
	}
	out := make([]replication.Document, 0, len(r.docs))
	for _, key := range slices.Sorted(maps.Keys(r.docs)) {
		out = append(out, replication.Document{Key: key, Fields: maps.Clone(r.docs[key])})
	}
	return out, nil
}

// Put replaces a document wholesale.
func (r *Replica) Put(key string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[key] = maps.Clone(fields)
}

// Get returns a copy of one document.
func (r *Replica) Get(key string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[key]
	return maps.Clone(doc), ok
}

// Len returns the number of documents.
func (r *Replica) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}
