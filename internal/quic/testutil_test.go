package quic

import "time"

// The fakes below mirror conn_test.go's testConn pattern from the original
// fragment: one small stand-in per collaborator, driven explicitly by the
// test rather than by a real clock or socket.

type fakeAlarms struct {
	cbs    [numSpaces]func(time.Time, Space)
	expiry [numSpaces]time.Time
	armed  [numSpaces]bool
}

func newFakeAlarms() *fakeAlarms { return &fakeAlarms{} }

func (a *fakeAlarms) InitAlarm(space Space, cb func(time.Time, Space)) { a.cbs[space] = cb }
func (a *fakeAlarms) Set(space Space, expiry time.Time) {
	a.expiry[space] = expiry
	a.armed[space] = true
}
func (a *fakeAlarms) Unset(space Space)       { a.armed[space] = false }
func (a *fakeAlarms) IsSet(space Space) bool  { return a.armed[space] }
func (a *fakeAlarms) fire(now time.Time, space Space) {
	a.armed[space] = false
	if cb := a.cbs[space]; cb != nil {
		cb(now, space)
	}
}

type fakeRTT struct {
	srtt, rttvar time.Duration
	samples      int
}

func newFakeRTT() *fakeRTT { return &fakeRTT{} }

func (r *fakeRTT) SRTT() time.Duration   { return r.srtt }
func (r *fakeRTT) RTTVar() time.Duration { return r.rttvar }
func (r *fakeRTT) Update(measured, ackDelay time.Duration, now time.Time) {
	r.samples++
	if ackDelay < measured {
		measured -= ackDelay
	}
	r.srtt = measured
	if r.rttvar == 0 {
		r.rttvar = measured / 2
	}
}

type fakeCC struct {
	cwnd       int
	nAcks      int
	nLost      int
	nLossEvent int
	nTimeout   int
}

func newFakeCC() *fakeCC { return &fakeCC{cwnd: 100 * 1200} }

func (c *fakeCC) Init()                                                         {}
func (c *fakeCC) Sent(pkt *SentPacketInfo, inFlight int, appLimited bool)        {}
func (c *fakeCC) Ack(pkt *SentPacketInfo, sentSize int, now time.Time, appLimited bool) {
	c.nAcks++
}
func (c *fakeCC) Lost(pkt *SentPacketInfo, sentSize int) { c.nLost++ }
func (c *fakeCC) Loss()                                  { c.nLossEvent++ }
func (c *fakeCC) Timeout()                               { c.nTimeout++ }
func (c *fakeCC) BeginAck(now time.Time, bytesUnacked int)      {}
func (c *fakeCC) EndAck(bytesUnacked int)                       {}
func (c *fakeCC) WasQuiet(now time.Time, bytesUnacked int)      {}
func (c *fakeCC) CWND() int                                     { return c.cwnd }
func (c *fakeCC) PacingRate(inRecovery bool) int                { return c.cwnd }
func (c *fakeCC) Cleanup()                                      {}

type fakePacer struct {
	nLossEvent int
}

func newFakePacer() *fakePacer { return &fakePacer{} }

func (p *fakePacer) Init()                                                     {}
func (p *fakePacer) CanSchedule(nOut int) bool                                  { return true }
func (p *fakePacer) PacketScheduled(nOut int, inRecovery bool, txTime func() time.Time) {}
func (p *fakePacer) Delayed() bool                                             { return false }
func (p *fakePacer) NextSend() time.Time                                       { return time.Time{} }
func (p *fakePacer) LossEvent()                                                { p.nLossEvent++ }
func (p *fakePacer) Cleanup()                                                  {}

type fakeHistory struct {
	largest PacketNumber
	gapOK   bool
}

func newFakeHistory() *fakeHistory { return &fakeHistory{largest: InvalidPacketNumber} }

func (h *fakeHistory) Add(pn PacketNumber) {
	if h.largest == InvalidPacketNumber || pn > h.largest {
		h.largest = pn
	}
}
func (h *fakeHistory) Largest() PacketNumber { return h.largest }
func (h *fakeHistory) SetGapOK()             { h.gapOK = true }
func (h *fakeHistory) Cleanup()              {}

type fakeConn struct{}

func newFakeConn() *fakeConn { return &fakeConn{} }

func (c *fakeConn) Flags() ConnFlags                         { return ConnFlags{} }
func (c *fakeConn) CanWriteAck() bool                        { return false }
func (c *fakeConn) WriteAck(into *PacketStub) bool           { return false }
func (c *fakeConn) PacknoBitsToLen(bits int) int              { return bits }
func (c *fakeConn) CalcPacknoBits(cur, smallest PacketNumber) int { return 2 }
func (c *fakeConn) PackoutSize(bits int) int                  { return 1200 }
func (c *fakeConn) Version() uint32                           { return 1 }

type fakeStreams struct {
	reset map[uint64]bool
}

func newFakeStreams() *fakeStreams { return &fakeStreams{reset: make(map[uint64]bool)} }

func (s *fakeStreams) ForEach(fn func(StreamInfo) bool) {}
func (s *fakeStreams) Lookup(id uint64) (StreamInfo, bool) {
	if s.reset[id] {
		return StreamInfo{ID: id, Reset: true}, true
	}
	return StreamInfo{}, false
}

type fakeATTQ struct {
	lastWake time.Time
}

func newFakeATTQ() *fakeATTQ { return &fakeATTQ{} }

func (a *fakeATTQ) WakeAt(t time.Time) { a.lastWake = t }

type testHarness struct {
	ctl     *Controller
	alarms  *fakeAlarms
	rtt     *fakeRTT
	cc      *fakeCC
	pacer   *fakePacer
	history *fakeHistory
	conn    *fakeConn
	streams *fakeStreams
	attq    *fakeATTQ
}

func newTestHarness(ietf bool, side Side) *testHarness {
	h := &testHarness{
		alarms:  newFakeAlarms(),
		rtt:     newFakeRTT(),
		cc:      newFakeCC(),
		pacer:   newFakePacer(),
		history: newFakeHistory(),
		conn:    newFakeConn(),
		streams: newFakeStreams(),
		attq:    newFakeATTQ(),
	}
	h.ctl = NewController(Config{
		Side:          side,
		IETF:          ietf,
		PacingEnabled: false,
		ECNEnabled:    true,
		Alarms:        h.alarms,
		RTT:           h.rtt,
		CC:            h.cc,
		Pacer:         h.pacer,
		History:       h.history,
		Conn:          h.conn,
		Streams:       h.streams,
		ATTQ:          h.attq,
	})
	return h
}

// defaultTestStreamID is the stream id sendN attributes its packets to.
const defaultTestStreamID = 1

// sendN sends n retransmittable packets on AppData, one every 5ms starting
// at base, and returns the wall-clock time each was sent at, keyed by
// packet number (IETF spaces start numbering at 0, legacy at 1).
func (h *testHarness) sendN(base time.Time, n int) map[PacketNumber]time.Time {
	times := make(map[PacketNumber]time.Time, n)
	for i := 0; i < n; i++ {
		now := base.Add(time.Duration(i) * 5 * time.Millisecond)
		pk := h.ctl.NewOutgoing(AppData, FrameStream, 100, defaultTestStreamID)
		h.ctl.ScheduleDirect(pk)
		res, err := h.ctl.NextToSend(now, AppData, 0, false, false)
		if err != nil || !res.OK {
			panic("expected a packet to send")
		}
		h.ctl.RecordSent(now, AppData, res.Handle)
		if p := h.ctl.arena.get(res.Handle); p != nil {
			times[p.number] = now
		}
	}
	return times
}
