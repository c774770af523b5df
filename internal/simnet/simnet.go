// Package simnet provides bare-bones collaborator implementations for
// driving an internal/quic.Controller outside of a real connection: an
// EWMA RTT estimator, a fixed-window congestion controller that halves on
// loss, a never-delaying pacer, and a minimal send history, connection and
// stream table. It exists for cmd/sendctlsim and
// for tests that want a full Controller without wiring a real transport.
package simnet

import (
	"time"

	"github.com/quicctl/sendctl/internal/quic"
)

// Net bundles one instance of every collaborator a Controller needs,
// wired together so a caller only has to hand the fields to quic.Config.
type Net struct {
	Alarms  *Alarms
	RTT     *RTT
	CC      *CC
	Pacer   *Pacer
	History *History
	Conn    *Conn
	Streams *Streams
	ATTQ    *ATTQ
}

// New builds a fresh Net with conservative defaults: no pacing delay, a
// 12-packet (12×1200-byte) congestion window, and no RTT estimate until
// the first sample arrives.
func New() *Net {
	return &Net{
		Alarms:  newAlarms(),
		RTT:     newRTT(),
		CC:      newCC(),
		Pacer:   newPacer(),
		History: newHistory(),
		Conn:    newConn(),
		Streams: newStreams(),
		ATTQ:    newATTQ(),
	}
}

// Event is one step of a scripted trace (see DemoTrace).
type Event struct {
	// At is the offset from the simulation's start time this event fires.
	At time.Duration

	// Kind is one of "send", "ack", "lose".
	Kind string

	Space    quic.Space
	StreamID uint64
	Size     int

	// AckRanges, for Kind == "ack": packet numbers acknowledged, descending.
	AckRanges []quic.AckRange
	AckDelay  time.Duration
}

// Result summarizes what happened over a Run.
type Result struct {
	Sent, Acked, Lost int
}

// Run drives ctl through script in order, using each event's At offset from
// start as its simulated wall-clock time. "send" events allocate a handle,
// hand it to the controller's NextToSend/RecordSent path directly (bypassing
// real scheduling, since this is a bookkeeping exercise, not a wire
// simulation); "ack" events call ProcessAck.
func (n *Net) Run(ctl *quic.Controller, script []Event, start time.Time) Result {
	var res Result

	for _, ev := range script {
		now := start.Add(ev.At)
		switch ev.Kind {
		case "send":
			n.simulateSend(ctl, now, ev)
			res.Sent++
		case "ack":
			ack := quic.AckFrame{
				Space:  ev.Space,
				Ranges: ev.AckRanges,
				Delay:  ev.AckDelay,
			}
			if err := ctl.ProcessAck(now, ack); err == nil {
				res.Acked++
			}
		case "lose":
			ctl.DetectLosses(now, ev.Space, highestOf(ev.AckRanges))
			res.Lost++
		}
	}
	return res
}

// simulateSend constructs a minimal retransmittable packet and runs it
// through the controller's real send bookkeeping (NewOutgoing,
// ScheduleDirect, NextToSend, RecordSent), exercising the same path a real
// connection's write loop would for immediate (non-buffered) scheduling.
func (n *Net) simulateSend(ctl *quic.Controller, now time.Time, ev Event) {
	ctl.Reschedule(now)
	if !ctl.CanSend(now) {
		return
	}
	h := ctl.NewOutgoing(ev.Space, quic.FrameStream, ev.Size, ev.StreamID)
	ctl.ScheduleDirect(h)

	res, err := ctl.NextToSend(now, ev.Space, 0, false, false)
	if err != nil || !res.OK {
		return
	}
	ctl.RecordSent(now, ev.Space, res.Handle)
}

func highestOf(ranges []quic.AckRange) quic.PacketNumber {
	best := quic.InvalidPacketNumber
	for _, r := range ranges {
		if r.Largest > best {
			best = r.Largest
		}
	}
	return best
}

// DemoTrace is a short built-in trace: three packets sent, the first two
// acked together, and the third declared lost. No send follows the loss,
// so the lost packet is not retransmitted within the trace.
var DemoTrace = []Event{
	{At: 0, Kind: "send", Space: quic.AppData, StreamID: 4, Size: 100},
	{At: 10 * time.Millisecond, Kind: "send", Space: quic.AppData, StreamID: 4, Size: 100},
	{At: 20 * time.Millisecond, Kind: "send", Space: quic.AppData, StreamID: 4, Size: 100},
	{At: 60 * time.Millisecond, Kind: "ack", Space: quic.AppData,
		AckRanges: []quic.AckRange{{Smallest: 0, Largest: 1}}, AckDelay: 2 * time.Millisecond},
	{At: 90 * time.Millisecond, Kind: "lose", Space: quic.AppData,
		AckRanges: []quic.AckRange{{Smallest: 2, Largest: 2}}},
}

// LoadTrace is a seam for a future file-based trace format; no format is
// defined yet, so it always reports the demo trace is unavailable from a
// file.
func LoadTrace(path string) ([]Event, error) {
	return nil, &unsupportedTraceError{path}
}

type unsupportedTraceError struct{ path string }

func (e *unsupportedTraceError) Error() string {
	return "simnet: no trace file format defined yet; pass -t - to use the built-in demo trace (" + e.path + ")"
}
