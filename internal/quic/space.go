package quic

import "time"

// Space identifies a packet number space. Every outgoing packet belongs to
// exactly one space for its lifetime, and each space carries its own
// unacked queue, largest-acked bookkeeping, and retransmission alarm (§3).
type Space int

const (
	Initial Space = iota
	Handshake
	AppData

	numSpaces = int(AppData) + 1
)

func (s Space) String() string {
	switch s {
	case Initial:
		return "initial"
	case Handshake:
		return "handshake"
	case AppData:
		return "app_data"
	default:
		return "unknown_space"
	}
}

// alarmMode is the retransmission alarm's four-mode state (§4.5).
type alarmMode int

const (
	alarmNone alarmMode = iota
	alarmHandshake
	alarmLoss
	alarmTLP
	alarmRTO
)

func (m alarmMode) String() string {
	switch m {
	case alarmHandshake:
		return "handshake"
	case alarmLoss:
		return "loss"
	case alarmTLP:
		return "tlp"
	case alarmRTO:
		return "rto"
	default:
		return "none"
	}
}

// spaceState is the per-PNS state described throughout §4: the unacked
// queue (by packet number ascending, invariant 2 of §3), the largest-acked
// bookkeeping, the loss timer, and ECN accounting local to this space.
type spaceState struct {
	space Space

	// unacked holds handles to every packet (and loss record) currently
	// in flight for this space, kept sorted by packet number ascending.
	unacked []packetHandle

	largestAcked     PacketNumber
	largestAckedSent time.Time
	largestSent      PacketNumber

	// maxRTTPacno is the largest-acked packet number that has already
	// produced an RTT sample (§4.3: "only when largest-acked exceeds the
	// previous RTT-sample packet number"), mirroring the grounding
	// source's sc_max_rtt_packno.
	maxRTTPacno PacketNumber

	// lossTo is set by early retransmit (§4.4) and consumed by the next
	// LOSS-mode alarm computation (§4.5). Cleared unconditionally at the
	// top of every DetectLosses call — see SPEC_FULL.md §E.2 for why this
	// apparent state loss across repeated calls is intentional.
	lossTo time.Duration

	// nHsk and nTLP count consecutive Handshake and TLP alarm fires in
	// this space, used by the delay computation table in §4.5.
	nHsk  int
	nTLP  int

	alarmArmed bool
	alarmAt    time.Time

	// stop-waiting bookkeeping (legacy-only, §4.3 last paragraph).
	stopWaitingFrameNum    PacketNumber
	stopWaitingConsecAcked int
	sendStopWaiting        bool

	// ECN accounting local to this space.
	ecnObservedECT0 uint64
	ecnObservedECT1 uint64
	ecnObservedCE   uint64
}

func newSpaceState(s Space) *spaceState {
	return &spaceState{
		space:               s,
		largestAcked:        InvalidPacketNumber,
		largestSent:         InvalidPacketNumber,
		stopWaitingFrameNum: InvalidPacketNumber,
		maxRTTPacno:         InvalidPacketNumber,
	}
}

// hasRetransmittableUnacked reports whether any non-loss-record,
// retransmittable packet remains unacked in this space (§4.5 invariant 5:
// "A retransmission alarm is set for PNS p iff there exists a
// retransmittable unacked packet in p").
func (s *spaceState) hasRetransmittableUnacked(a *arena) bool {
	for _, h := range s.unacked {
		p := a.get(h)
		if p == nil {
			continue
		}
		if p.flags&flagLossRecord != 0 {
			continue
		}
		if p.frameBits.Retransmittable() {
			return true
		}
	}
	return false
}

// largestRetransmittablePacno returns the largest unacked retransmittable
// packet number in the space, or InvalidPacketNumber if none exists. The
// C source uses 0 as a "none" sentinel (§9 Design Notes); we use an
// explicit optional value instead.
func (s *spaceState) largestRetransmittablePacno(a *arena) PacketNumber {
	best := InvalidPacketNumber
	for _, h := range s.unacked {
		p := a.get(h)
		if p == nil || p.flags&flagLossRecord != 0 {
			continue
		}
		if p.frameBits.Retransmittable() && p.number > best {
			best = p.number
		}
	}
	return best
}

// insertUnackedSorted inserts h into the unacked queue maintaining
// ascending packet-number order (§3 invariant 2). Packet numbers are
// assigned monotonically by the allocator, so in the common case this is
// an append; reschedule after renumbering can occasionally require an
// insertion, so we search instead of assuming.
func (s *spaceState) insertUnackedSorted(a *arena, h packetHandle) {
	p := a.get(h)
	if p == nil {
		return
	}
	i := len(s.unacked)
	for i > 0 {
		prev := a.get(s.unacked[i-1])
		if prev != nil && prev.number <= p.number {
			break
		}
		i--
	}
	s.unacked = append(s.unacked, 0)
	copy(s.unacked[i+1:], s.unacked[i:])
	s.unacked[i] = h
}

func (s *spaceState) removeUnackedAt(i int) packetHandle {
	h := s.unacked[i]
	s.unacked = append(s.unacked[:i], s.unacked[i+1:]...)
	return h
}
