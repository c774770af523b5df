package quic

import (
	"testing"
	"time"

	"github.com/go-test/deep"
)

// Acknowledging a non-contiguous middle range leaves exactly the expected
// packet numbers behind in the unacked queue, walked in ascending order.
func TestProcessAckLeavesExpectedGapBehind(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	base := time.Unix(0, 0)
	h.sendN(base, 5) // packets 0..4

	err := h.ctl.ProcessAck(base.Add(50*time.Millisecond), AckFrame{
		Space:  AppData,
		Ranges: []AckRange{{Smallest: 2, Largest: 3}},
	})
	if err != nil {
		t.Fatalf("ProcessAck: %v", err)
	}

	var remaining []PacketNumber
	for _, uh := range h.ctl.space(AppData).unacked {
		if p := h.ctl.arena.get(uh); p != nil {
			remaining = append(remaining, p.number)
		}
	}

	want := []PacketNumber{0, 1, 4}
	if diff := deep.Equal(remaining, want); diff != nil {
		t.Fatalf("unacked packet numbers mismatch: %v", diff)
	}
}

// A packet whose number does not exceed the previous RTT-sample packet
// number must not produce a second sample, even if it is the packet
// an ACK's largest-acked field names (§4.3, sc_max_rtt_packno). This
// can arise when a loss-record entry for an already-sampled packet
// number is still present in the unacked queue when a late duplicate
// ACK for it is processed.
func TestProcessAckDoesNotResampleAtOrBelowMaxRTTPacno(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	sp := h.ctl.space(AppData)
	sp.maxRTTPacno = 4

	h2 := h.ctl.NewOutgoing(AppData, FrameStream, 100, 0)
	p := h.ctl.arena.get(h2)
	p.number = 4
	p.sentAt = time.Unix(0, 0)
	p.flags |= flagUnacked | flagLossRecord
	sp.unacked = append(sp.unacked, h2)
	sp.largestSent = 4

	if err := h.ctl.ProcessAck(time.Unix(0, 0).Add(50*time.Millisecond), AckFrame{
		Space:  AppData,
		Ranges: []AckRange{{Smallest: 4, Largest: 4}},
	}); err != nil {
		t.Fatalf("ProcessAck: %v", err)
	}
	if h.rtt.samples != 0 {
		t.Fatalf("expected no RTT sample for a packet number at maxRTTPacno, got %d", h.rtt.samples)
	}
}

func TestProcessAckEmptyRangesIsNoOp(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	base := time.Unix(0, 0)
	h.sendN(base, 2)

	before := len(h.ctl.space(AppData).unacked)
	if err := h.ctl.ProcessAck(base, AckFrame{Space: AppData}); err != nil {
		t.Fatalf("ProcessAck: %v", err)
	}
	after := len(h.ctl.space(AppData).unacked)
	if diff := deep.Equal(before, after); diff != nil {
		t.Fatalf("expected no change from an empty-ranges ACK: %v", diff)
	}
}
