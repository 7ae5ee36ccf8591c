package monitor

import "testing"

func TestHubBroadcastDropsOnFullQueue(t *testing.T) {
	h := NewHub()
	h.Policy = PolicyDrop
	c := &Client{Out: make(chan Event, 1), Closed: make(chan struct{})}
	h.Add(c)

	h.Broadcast(Event{Kind: "file_announced"})
	h.Broadcast(Event{Kind: "file_completed"}) // queue full, should drop silently

	select {
	case <-c.Closed:
		t.Fatal("drop policy should not close the client")
	default:
	}
	if len(c.Out) != 1 {
		t.Fatalf("queue len = %d, want 1", len(c.Out))
	}
}

func TestHubBroadcastKicksOnFullQueue(t *testing.T) {
	h := NewHub()
	h.Policy = PolicyKick
	c := &Client{Out: make(chan Event, 1), Closed: make(chan struct{})}
	h.Add(c)

	h.Broadcast(Event{Kind: "file_announced"})
	h.Broadcast(Event{Kind: "file_completed"})

	select {
	case <-c.Closed:
	default:
		t.Fatal("kick policy should close the client on overflow")
	}
}

func TestHubRemoveIsIdempotent(t *testing.T) {
	h := NewHub()
	c := &Client{Out: make(chan Event, 1), Closed: make(chan struct{})}
	h.Add(c)
	h.Remove(c)
	h.Remove(c)
	if h.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", h.Count())
	}
}
