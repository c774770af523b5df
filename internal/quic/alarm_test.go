package quic

import (
	"testing"
	"time"
)

func TestAlarmDelayClampsToMinRTO(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	h.rtt.srtt = 0
	h.rtt.rttvar = 0
	h.ctl.nConsecRTOs = 0

	got := h.ctl.alarmDelay(AppData, alarmTLP)
	if got < minRTO {
		t.Fatalf("expected TLP delay clamped to >= minRTO, got %v", got)
	}
}

func TestAlarmDelayClampsToMaxRTO(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	h.rtt.srtt = time.Second
	h.rtt.rttvar = time.Second
	h.ctl.nConsecRTOs = 1000 // far beyond maxBackoffs

	got := h.ctl.alarmDelay(AppData, alarmRTO)
	if got != maxRTO {
		t.Fatalf("expected RTO delay saturated at maxRTO, got %v", got)
	}
}

func TestAlarmDelayBackoffSaturatesAtMaxBackoffs(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	h.rtt.srtt = 100 * time.Millisecond
	h.rtt.rttvar = 10 * time.Millisecond

	h.ctl.nConsecRTOs = maxBackoffs
	atCap := h.ctl.alarmDelay(AppData, alarmRTO)

	h.ctl.nConsecRTOs = maxBackoffs + 5
	beyondCap := h.ctl.alarmDelay(AppData, alarmRTO)

	if atCap != beyondCap {
		t.Fatalf("expected backoff shift to saturate at maxBackoffs: at-cap=%v beyond-cap=%v", atCap, beyondCap)
	}
}

func TestSelectAlarmModeHandshakePriority(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	hello := h.ctl.NewOutgoing(Initial, FrameCrypto, 1200, noStreamID)
	if p := h.ctl.arena.get(hello); p != nil {
		p.flags |= flagHello
	}
	h.ctl.ScheduleDirect(hello)
	res, err := h.ctl.NextToSend(time.Unix(0, 0), Initial, 0, true, false)
	if err != nil || !res.OK {
		t.Fatalf("expected the HELLO packet to be chosen")
	}
	h.ctl.RecordSent(time.Unix(0, 0), Initial, res.Handle)

	if got := h.ctl.selectAlarmMode(Initial); got != alarmHandshake {
		t.Fatalf("expected HANDSHAKE mode while a HELLO is unacked, got %v", got)
	}
}

func TestSelectAlarmModeLossBeforeTLP(t *testing.T) {
	h := newTestHarness(true, ClientSide)
	h.ctl.handshakeDone = true
	sp := h.ctl.space(AppData)
	sp.lossTo = 10 * time.Millisecond

	if got := h.ctl.selectAlarmMode(AppData); got != alarmLoss {
		t.Fatalf("expected LOSS mode when lossTo is set, got %v", got)
	}
}
