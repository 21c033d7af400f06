package gateway

import "testing"

func TestRemoveDroppedConnection(t *testing.T) {
	h := NewHub()
	c := h.Add("u", nil)
	if !h.Remove(c) {
		t.Fatalf("removing the only connection should unmap the user")
	}
	if h.Remove(c) {
		t.Fatalf("second remove should report false")
	}
}

func TestRemoveDisplacedConnectionKeepsUserMapped(t *testing.T) {
	h := NewHub()
	c1 := h.Add("u", nil)
	c2 := h.Add("u", nil)

	// the old read loop exits after displacement; its cleanup must not count
	// as a user-level disconnect
	if h.Remove(c1) {
		t.Fatalf("removing a displaced connection must not unmap the user")
	}
	h.mu.RLock()
	cur := h.conns["u"]
	h.mu.RUnlock()
	if cur != c2 {
		t.Fatalf("newer connection lost from the hub")
	}

	if !h.Remove(c2) {
		t.Fatalf("removing the live connection should unmap the user")
	}
}
