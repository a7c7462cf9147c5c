// Package notify delivers threshold alerts.
//
// Notifications are keyed by entry id. A newer notification for an entry
// replaces one that has not gone out yet instead of queueing behind it.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Sink accepts notifications. Notify never blocks on delivery and never
// reports delivery errors to the caller.
type Sink interface {
	Notify(ctx context.Context, entryID int64, title, body string)
}

// Notification is one alert.
type Notification struct {
	EntryID int64
	Title   string
	Body    string
}

// Log writes notifications to a logger. It is the sink used when no
// delivery service is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, entryID int64, title, body string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, title, "entry_id", entryID, "body", body)
}

// Memory keeps the latest notification per entry.
type Memory struct {
	mu     sync.Mutex
	latest map[int64]Notification
	count  int
}

// NewMemory returns an empty sink.
func NewMemory() *Memory {
	return &Memory{latest: make(map[int64]Notification)}
}

func (m *Memory) Notify(_ context.Context, entryID int64, title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest[entryID] = Notification{EntryID: entryID, Title: title, Body: body}
	m.count++
}

// Latest returns the current notification for an entry.
func (m *Memory) Latest(entryID int64) (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.latest[entryID]
	return n, ok
}

// Active returns how many entries have a notification showing.
func (m *Memory) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.latest)
}

// Count returns how many Notify calls were made.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
