package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	title, body string
}

// blockingSender holds the first delivery until release is closed.
type blockingSender struct {
	mu      sync.Mutex
	sent    []sent
	started chan struct{}
	release chan struct{}
	once    sync.Once
	err     error
}

func newBlockingSender() *blockingSender {
	return &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSender) Send(message string, params *stypes.Params) []error {
	s.once.Do(func() {
		close(s.started)
		<-s.release
	})
	title, _ := params.Title()
	s.mu.Lock()
	s.sent = append(s.sent, sent{title: title, body: message})
	s.mu.Unlock()
	return []error{s.err}
}

func TestDispatcher_ReplacesPendingPerEntry(t *testing.T) {
	s := newBlockingSender()
	d := NewDispatcher(s, nil)
	ctx := context.Background()

	d.Notify(ctx, 1, "Threshold alert", "first")
	<-s.started // entry 1 is in flight

	d.Notify(ctx, 2, "Threshold alert", "two-a")
	d.Notify(ctx, 3, "Threshold alert", "three")
	d.Notify(ctx, 2, "Threshold alert", "two-b")
	close(s.release)
	d.Close()

	assert.Equal(t, []sent{
		{"Threshold alert", "first"},
		{"Threshold alert", "two-b"},
		{"Threshold alert", "three"},
	}, s.sent)
}

func TestDispatcher_DeliveryErrorsAreSwallowed(t *testing.T) {
	s := newBlockingSender()
	s.err = errors.New("ntfy unreachable")
	close(s.release)
	d := NewDispatcher(s, nil)

	d.Notify(context.Background(), 1, "t", "b")
	d.Close()
	assert.Len(t, s.sent, 1)
}

func TestDispatcher_NotifyAfterCloseIsDropped(t *testing.T) {
	s := newBlockingSender()
	close(s.release)
	d := NewDispatcher(s, nil)
	d.Close()
	d.Close()

	d.Notify(context.Background(), 1, "t", "b")
	assert.Empty(t, s.sent)
}

func TestDispatcher_NotifyRacingClose(t *testing.T) {
	s := newBlockingSender()
	close(s.release)
	d := NewDispatcher(s, nil)

	const senders = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range senders {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			for range 50 {
				d.Notify(context.Background(), id, "t", "b")
			}
		}(int64(i))
	}
	close(start)
	d.Close()
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.LessOrEqual(t, len(s.sent), senders*50)
}

func TestNewShoutrrr_RejectsBadURLs(t *testing.T) {
	_, err := NewShoutrrr(nil, 0, nil)
	assert.Error(t, err)

	_, err = NewShoutrrr([]string{"not-a-service://x"}, 0, nil)
	assert.Error(t, err)
}

func TestMemory_ReplacesPerEntry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Notify(ctx, 1, "Threshold alert", "old")
	m.Notify(ctx, 1, "Threshold alert", "new")
	m.Notify(ctx, 2, "Threshold alert", "other")

	n, ok := m.Latest(1)
	require.True(t, ok)
	assert.Equal(t, "new", n.Body)
	assert.Equal(t, 2, m.Active())
	assert.Equal(t, 3, m.Count())
}
