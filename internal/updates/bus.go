// Package updates carries poller-discovered updates to the forum-post
// updater. Multiple producers publish; subscribers each get their own
// channel.
package updates

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

// Update is a single piece of news destined for a forum post.
type Update struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	ForumPostID string    `json:"forum_post_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this loses updates rather than stalling the
// pollers.
const subscriberBuffer = 64

// Bus fans published updates out to all subscribers.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]chan Update
	closed      bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]chan Update)}
}

// Subscribe creates a new channel receiving every published update. The
// returned ID identifies the subscription for Unsubscribe.
func (b *Bus) Subscribe() (string, <-chan Update) {
	id := uuid.NewString()
	ch := make(chan Update, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers an update to every subscriber. Subscribers with full
// buffers are skipped.
func (b *Bus) Publish(u Update) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- u:
		default:
			monitoring.Errorf("update bus: subscriber %s is behind, dropping update %s", id, u.ID)
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
