package updates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offbyone-dev/offbyone/internal/monitoring"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	id1, ch1 := bus.Subscribe()
	id2, ch2 := bus.Subscribe()
	require.NotEqual(t, id1, id2, "subscriber IDs must be unique")

	bus.Publish(Update{Source: "repo:example", Title: "new commit", ForumPostID: "post-1"})

	for _, ch := range []<-chan Update{ch1, ch2} {
		select {
		case u := <-ch:
			assert.Equal(t, "repo:example", u.Source)
			assert.NotEmpty(t, u.ID, "expected ID to be filled in")
			assert.False(t, u.Timestamp.IsZero(), "expected Timestamp to be filled in")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive update")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	id, ch := bus.Subscribe()
	bus.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok, "expected channel to be closed after unsubscribe")

	// Publishing after unsubscribe must not panic.
	bus.Publish(Update{Source: "x"})
}

func TestPublishSkipsFullSubscriber(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.ResetLogger)

	bus := NewBus()
	defer bus.Close()

	_, slow := bus.Subscribe()
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Update{Source: "flood"})
	}

	// The slow subscriber kept the first subscriberBuffer updates and the
	// rest were dropped without blocking Publish.
	assert.Len(t, slow, subscriberBuffer)
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := NewBus()
	_, ch := bus.Subscribe()

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok, "expected channel closed after bus close")

	bus.Publish(Update{Source: "late"})

	// Subscribing after close yields a closed channel.
	_, late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "expected closed channel for post-close subscribe")
}
