package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// Sender is the delivery surface of a shoutrrr router.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Dispatcher sends notifications in the background through a Sender.
// Pending notifications are coalesced per entry.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger

	mu      sync.Mutex
	pending map[int64]Notification
	order   []int64
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewShoutrrr builds a Dispatcher for one or more shoutrrr service URLs,
// e.g. "ntfy://ntfy.sh/greenhouse" or "telegram://token@telegram?chats=1".
func NewShoutrrr(urls []string, timeout time.Duration, logger *slog.Logger) (*Dispatcher, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("notification urls: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return NewDispatcher(sender, logger), nil
}

// NewDispatcher starts a dispatcher. Call Close to flush and stop it.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		pending: make(map[int64]Notification),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify queues n, replacing any unsent notification for the same entry.
func (d *Dispatcher) Notify(_ context.Context, entryID int64, title, body string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("notification dropped after close", "entry_id", entryID)
		return
	}
	if _, queued := d.pending[entryID]; !queued {
		d.order = append(d.order, entryID)
	}
	d.pending[entryID] = Notification{EntryID: entryID, Title: title, Body: body}
	// Close closes wake only after it has seen closed under mu, so the send
	// must happen before the lock is released.
	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.mu.Unlock()
}

// Close delivers what is still pending and stops the dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.wake)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for range d.wake {
		d.drain()
	}
	d.drain()
}

func (d *Dispatcher) drain() {
	for {
		n, ok := d.next()
		if !ok {
			return
		}
		p := stypes.Params{}
		p.SetTitle(n.Title)
		for _, err := range d.sender.Send(n.Body, &p) {
			if err != nil {
				d.logger.Warn("notification delivery failed", "entry_id", n.EntryID, "error", err)
			}
		}
	}
}

func (d *Dispatcher) next() (Notification, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.order) == 0 {
		return Notification{}, false
	}
	id := d.order[0]
	d.order = d.order[1:]
	n := d.pending[id]
	delete(d.pending, id)
	return n, true
}

var _ Sink = (*Dispatcher)(nil)
