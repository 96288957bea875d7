package mailbox

import (
	"fmt"
	"testing"
)

func TestNotifyMailboxRead(t *testing.T) {
	t.Run("repeat pokes for one owner queue once", func(t *testing.T) {
		refresher := NewRefresher(nil, nil, nil, nil)

		refresher.NotifyMailboxRead("a@x.com")
		refresher.NotifyMailboxRead("a@x.com")
		refresher.NotifyMailboxRead("a@x.com")

		if got := len(refresher.queue); got != 1 {
			t.Errorf("queue length = %d, want 1", got)
		}
	})

	t.Run("distinct owners queue independently", func(t *testing.T) {
		refresher := NewRefresher(nil, nil, nil, nil)

		refresher.NotifyMailboxRead("a@x.com")
		refresher.NotifyMailboxRead("b@y.com")

		if got := len(refresher.queue); got != 2 {
			t.Errorf("queue length = %d, want 2", got)
		}
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		refresher := NewRefresher(nil, nil, nil, nil)

		for i := 0; i < refreshQueueSize+10; i++ {
			refresher.NotifyMailboxRead(fmt.Sprintf("user%d@x.com", i))
		}

		if got := len(refresher.queue); got != refreshQueueSize {
			t.Errorf("queue length = %d, want %d", got, refreshQueueSize)
		}

		// Dropped owners must not be marked inflight, or they could never
		// be queued again.
		refresher.mu.Lock()
		inflight := len(refresher.inflight)
		refresher.mu.Unlock()
		if inflight != refreshQueueSize {
			t.Errorf("inflight = %d, want %d", inflight, refreshQueueSize)
		}
	})

	t.Run("owner can be queued again after processing", func(t *testing.T) {
		refresher := NewRefresher(nil, nil, nil, nil)

		refresher.NotifyMailboxRead("a@x.com")
		<-refresher.queue
		refresher.mu.Lock()
		delete(refresher.inflight, "a@x.com")
		refresher.mu.Unlock()

		refresher.NotifyMailboxRead("a@x.com")
		if got := len(refresher.queue); got != 1 {
			t.Errorf("queue length = %d, want 1", got)
		}
	})
}
