package quic

import (
	"testing"
	"time"
)

// A client Initial packet chosen into a datagram too small to ever reach
// the minimum Initial size is a fatal misconfigured-MTU condition (§7):
// NextToSend must destroy the packet and surface *PacketTooSmallError
// rather than silently padding or sending it undersized.
func TestNextToSendRejectsUndersizedInitialDatagram(t *testing.T) {
	h := newTestHarness(true, ClientSide)

	hello := h.ctl.NewOutgoing(Initial, FrameCrypto, 100, noStreamID)
	if p := h.ctl.arena.get(hello); p != nil {
		p.flags |= flagHello
	}
	h.ctl.ScheduleDirect(hello)

	res, err := h.ctl.NextToSend(time.Unix(0, 0), Initial, 1000, true, false)
	if err == nil {
		t.Fatalf("expected a PacketTooSmallError, got nil")
	}
	tse, ok := err.(*PacketTooSmallError)
	if !ok {
		t.Fatalf("expected *PacketTooSmallError, got %T", err)
	}
	if tse.Need != 1200 || tse.Have != 1000 {
		t.Fatalf("unexpected error fields: %+v", tse)
	}
	if res.OK {
		t.Fatalf("expected no usable ChooseResult alongside the error")
	}
	if h.ctl.arena.get(hello) != nil {
		t.Fatalf("expected the undersized packet destroyed")
	}
}

// A sizeHint that already meets the minimum Initial datagram size pads
// the packet up to it rather than erroring.
func TestNextToSendPadsInitialToMinimum(t *testing.T) {
	h := newTestHarness(true, ClientSide)

	hello := h.ctl.NewOutgoing(Initial, FrameCrypto, 100, noStreamID)
	if p := h.ctl.arena.get(hello); p != nil {
		p.flags |= flagHello
	}
	h.ctl.ScheduleDirect(hello)

	res, err := h.ctl.NextToSend(time.Unix(0, 0), Initial, 1200, true, false)
	if err != nil {
		t.Fatalf("NextToSend: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected the packet chosen")
	}
	if p := h.ctl.arena.get(res.Handle); p == nil || p.totalSize != 1200 {
		t.Fatalf("expected the packet padded to 1200 bytes")
	}
}

// Retry installs the new token on the controller and an over-length
// token is rejected with *TokenTooLongError (§4.10, §7).
func TestSetTokenRejectsOverLengthToken(t *testing.T) {
	h := newTestHarness(true, ClientSide)

	err := h.ctl.SetToken(make([]byte, maxTokenLen+1))
	if err == nil {
		t.Fatalf("expected a TokenTooLongError")
	}
	if _, ok := err.(*TokenTooLongError); !ok {
		t.Fatalf("expected *TokenTooLongError, got %T", err)
	}
	if h.ctl.token != nil {
		t.Fatalf("expected no token installed after a rejected SetToken")
	}
}

func TestRetryInstallsToken(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	token := []byte("retry-token-bytes")

	if err := h.ctl.Retry(token); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if string(h.ctl.token) != string(token) {
		t.Fatalf("expected the controller's token updated, got %q", h.ctl.token)
	}
}

func TestRetryRejectsOverLengthToken(t *testing.T) {
	h := newTestHarness(true, ClientSide)

	err := h.ctl.Retry(make([]byte, maxTokenLen+1))
	if err == nil {
		t.Fatalf("expected a TokenTooLongError")
	}
	if _, ok := err.(*TokenTooLongError); !ok {
		t.Fatalf("expected *TokenTooLongError, got %T", err)
	}
}
