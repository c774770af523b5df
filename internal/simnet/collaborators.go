package simnet

import (
	"time"

	"github.com/quicctl/sendctl/internal/quic"
)

// Alarms is a minimal quic.AlarmSet: it remembers the per-space callback
// and expiry but never fires on its own. A caller drives alarm fires
// explicitly with FireDue.
type Alarms struct {
	cbs     [3]func(time.Time, quic.Space)
	expiry  [3]time.Time
	armed   [3]bool
}

func newAlarms() *Alarms { return &Alarms{} }

func (a *Alarms) InitAlarm(space quic.Space, cb func(time.Time, quic.Space)) {
	a.cbs[space] = cb
}
func (a *Alarms) Set(space quic.Space, expiry time.Time) {
	a.expiry[space] = expiry
	a.armed[space] = true
}
func (a *Alarms) Unset(space quic.Space) { a.armed[space] = false }
func (a *Alarms) IsSet(space quic.Space) bool { return a.armed[space] }

// FireDue invokes the callback for every armed alarm whose expiry is at or
// before now, the way a real event loop's timer wheel would.
func (a *Alarms) FireDue(now time.Time) {
	for i := range a.armed {
		if a.armed[i] && !a.expiry[i].After(now) {
			a.armed[i] = false
			if cb := a.cbs[i]; cb != nil {
				cb(now, quic.Space(i))
			}
		}
	}
}

// RTT is a fixed-then-measured RTT estimator: SRTT/RTTVar start at zero
// (signaling "no sample yet" to the alarm delay table) and update with a
// simple exponentially-weighted moving average once a real sample arrives,
// the textbook RFC 6298 shape.
type RTT struct {
	srtt, rttvar time.Duration
}

func newRTT() *RTT { return &RTT{} }

func (r *RTT) SRTT() time.Duration   { return r.srtt }
func (r *RTT) RTTVar() time.Duration { return r.rttvar }
func (r *RTT) Update(measured, ackDelay time.Duration, now time.Time) {
	adjusted := measured
	if ackDelay > 0 && ackDelay < measured {
		adjusted = measured - ackDelay
	}
	if r.srtt == 0 {
		r.srtt = adjusted
		r.rttvar = adjusted / 2
		return
	}
	diff := adjusted - r.srtt
	if diff < 0 {
		diff = -diff
	}
	r.rttvar = (3*r.rttvar + diff) / 4
	r.srtt = (7*r.srtt + adjusted) / 8
}

// CC is a fixed-window congestion controller: constant CWND, no real
// slow-start or recovery, just enough behavior (shrinking the window by
// half on a cutback) to make the admission gate and alarm selection
// observable in a demo trace.
type CC struct {
	cwnd        int
	minCwnd     int
	inRecovery  bool
}

func newCC() *CC { return &CC{cwnd: 12 * 1200, minCwnd: 2 * 1200} }

func (c *CC) Init()                                                   {}
func (c *CC) Sent(pkt *quic.SentPacketInfo, inFlight int, appLimited bool)  {}
func (c *CC) Ack(pkt *quic.SentPacketInfo, sentSize int, now time.Time, appLimited bool) {}
func (c *CC) Lost(pkt *quic.SentPacketInfo, sentSize int) {}
func (c *CC) Loss() {
	c.inRecovery = true
	c.cwnd /= 2
	if c.cwnd < c.minCwnd {
		c.cwnd = c.minCwnd
	}
}
func (c *CC) Timeout() {
	c.cwnd = c.minCwnd
}
func (c *CC) BeginAck(now time.Time, bytesUnacked int) {}
func (c *CC) EndAck(bytesUnacked int)                  {}
func (c *CC) WasQuiet(now time.Time, bytesUnacked int) {}
func (c *CC) CWND() int                                { return c.cwnd }
func (c *CC) PacingRate(inRecovery bool) int           { return c.cwnd }
func (c *CC) Cleanup()                                 {}

// Pacer never delays a send; it exists only so the Controller's pacing
// branch has a real (if permissive) collaborator to call.
type Pacer struct{}

func newPacer() *Pacer { return &Pacer{} }

func (p *Pacer) Init()                                                    {}
func (p *Pacer) CanSchedule(nOut int) bool                                 { return true }
func (p *Pacer) PacketScheduled(nOut int, inRecovery bool, txTime func() time.Time) {}
func (p *Pacer) Delayed() bool                                            { return false }
func (p *Pacer) NextSend() time.Time                                      { return time.Time{} }
func (p *Pacer) LossEvent()                                                {}
func (p *Pacer) Cleanup()                                                  {}

// History is an in-memory send-history set.
type History struct {
	largest quic.PacketNumber
	gapOK   bool
}

func newHistory() *History { return &History{largest: quic.InvalidPacketNumber} }

func (h *History) Add(pn quic.PacketNumber) {
	if pn > h.largest || h.largest == quic.InvalidPacketNumber {
		h.largest = pn
	}
}
func (h *History) Largest() quic.PacketNumber { return h.largest }
func (h *History) SetGapOK()                  { h.gapOK = true }
func (h *History) Cleanup()                   {}

// Conn is a bare Connection collaborator: it never synthesizes an ACK
// proactively and reports a fixed packet-number-length budget.
type Conn struct {
	version uint32
}

func newConn() *Conn { return &Conn{version: 1} }

func (c *Conn) Flags() quic.ConnFlags              { return quic.ConnFlags{} }
func (c *Conn) CanWriteAck() bool                  { return false }
func (c *Conn) WriteAck(into *quic.PacketStub) bool { return false }
func (c *Conn) PacknoBitsToLen(bits int) int       { return bits }
func (c *Conn) CalcPacknoBits(cur, smallestUnacked quic.PacketNumber) int { return 2 }
func (c *Conn) PackoutSize(bits int) int           { return 1200 }
func (c *Conn) Version() uint32                    { return c.version }

// Streams is an empty stream table; the demo trace never needs to look a
// stream up by id.
type Streams struct{}

func newStreams() *Streams { return &Streams{} }

func (s *Streams) ForEach(fn func(quic.StreamInfo) bool)        {}
func (s *Streams) Lookup(id uint64) (quic.StreamInfo, bool)     { return quic.StreamInfo{}, false }

// ATTQ records the last wake-up time the pacer requested, for a caller that
// wants to inspect it; it never actually wakes anything on its own.
type ATTQ struct {
	lastWake time.Time
}

func newATTQ() *ATTQ { return &ATTQ{} }

func (a *ATTQ) WakeAt(t time.Time) { a.lastWake = t }
