package quic

import "testing"

func TestPNAllocatorSequential(t *testing.T) {
	a := newPNAllocator(0)
	for i := PacketNumber(0); i < 5; i++ {
		if got := a.Next(); got != i {
			t.Fatalf("Next() = %d, want %d", got, i)
		}
	}
}

func TestPNAllocatorLegacyStartsAtOne(t *testing.T) {
	a := newPNAllocator(1)
	if got := a.Peek(); got != 1 {
		t.Fatalf("Peek() = %d, want 1", got)
	}
	if got := a.Next(); got != 1 {
		t.Fatalf("Next() = %d, want 1", got)
	}
	if got := a.Peek(); got != 2 {
		t.Fatalf("Peek() after one Next() = %d, want 2", got)
	}
}

func TestPNAllocatorResetEmptyHistory(t *testing.T) {
	a := newPNAllocator(0)
	a.Next()
	a.Next()
	a.Reset(newFakeHistory())
	if got := a.Peek(); got != 0 {
		t.Fatalf("Peek() after Reset with empty history = %d, want 0", got)
	}
}

func TestPNAllocatorResetResumesPastLargest(t *testing.T) {
	a := newPNAllocator(0)
	h := newFakeHistory()
	h.Add(7)
	a.Reset(h)
	if got := a.Peek(); got != 8 {
		t.Fatalf("Peek() after Reset = %d, want 8", got)
	}
}
