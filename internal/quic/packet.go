package quic

import "time"

// PacketNumber is a packet's position within its number space. Numbers are
// assigned monotonically by the allocator (pnalloc.go) and are globally
// unique within a single controller, not merely within a PNS (§3).
type PacketNumber int64

// InvalidPacketNumber is the explicit "none" value for optional packet
// numbers. The lsquic source overloads 0 for this purpose since legacy
// packet numbers start at 1; we use an explicit sentinel instead, as
// recommended by spec.md §9's "Sentinel packet numbers" design note.
const InvalidPacketNumber PacketNumber = -1

// noStreamID marks a packet that carries no single stream's content (ACK-only,
// CRYPTO/HELLO, or any other connection-level packet), so per-stream
// mutators (ElideStreamFrames, TurnOnFIN) never mistake it for a match.
const noStreamID = ^uint64(0)

// Flags holds the per-packet flag bitset described in §3.
type Flags uint16

const (
	flagScheduled Flags = 1 << iota
	flagUnacked
	flagLost
	flagLossRecord
	flagEncrypted
	flagHello
	flagRepackno
	flagLimited
	flagMini
	flagStreamEnd
	flagSentSize
	flagRetx     // set by the reschedule engine on a packet re-emitted after loss
	flagWasQuiet // first in-flight retransmittable packet after a quiet period (§4.2)
	flagLogQLBits
	flagQLLossBit
	flagQLSquareBit
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// FrameBits records which frame kinds appear in a packet (§3, "Frame-type
// bitmask"). It drives ACK, retransmission, and elision logic without the
// controller needing to inspect serialized frame bytes.
type FrameBits uint32

const (
	FrameACK FrameBits = 1 << iota
	FrameStopWaiting
	FrameWindowUpdate
	FramePing
	FrameCrypto
	FrameStream
	FrameResetStream
	FrameOther
)

// regenerableFrames is the set of frame kinds that are freshly generated on
// every transmission rather than carried over from the original packet
// (ACK, stop-waiting, flow-control window updates — see GLOSSARY).
const regenerableFrames = FrameACK | FrameStopWaiting | FrameWindowUpdate

func (f FrameBits) has(bit FrameBits) bool { return f&bit != 0 }

// Retransmittable reports whether a packet carrying these frames must be
// retransmitted on loss, i.e. it carries at least one non-regenerable
// frame. ACK-only and PADDING-only packets are not retransmittable.
func (f FrameBits) Retransmittable() bool {
	return f&^regenerableFrames != 0
}

// Regenerable reports whether the packet carries content that is
// regenerated fresh on every send rather than retransmitted verbatim.
func (f FrameBits) Regenerable() bool {
	return f&regenerableFrames != 0
}

// OnlyStream reports whether the packet carries STREAM frames and nothing
// else retransmittable — the condition the reschedule engine uses to
// decide whether elide_reset_stream_frames applies (§4.6).
func (f FrameBits) OnlyStream() bool {
	return f&^regenerableFrames == FrameStream
}

// packetHandle is an arena index. The loss chain (§3, "cyclic ring linking
// a packet with every loss-record shadow of its earlier incarnations") is
// represented as a ring of handles rather than pointers, per the reasoning
// in spec.md §9: a reimplementation in a language (or idiom) that avoids
// reference cycles should use an arena with integer handles and a
// "next incarnation" index, following the ring by index until it returns
// to the starting node.
type packetHandle int32

const noHandle packetHandle = -1

// packet is the controller's descriptor for a single outgoing packet or
// loss-record shadow (§3). The controller never owns the wire bytes
// themselves, only this bookkeeping.
type packet struct {
	handle packetHandle

	number    PacketNumber
	space     Space
	frameBits FrameBits
	flags     Flags

	// streamID is the stream this packet's STREAM content belongs to, or
	// noStreamID for packets with no single-stream content (§4.10:
	// elide_stream_frames and turn_on_fin both act "for the given stream
	// id").
	streamID uint64

	sentAt time.Time
	// ack2Ed is the largest packet number the peer acknowledged in the
	// ACK frame this packet carried, used to advance the peer's
	// stop-waiting bound once this packet (or its loss record) is acked.
	ack2Ed PacketNumber

	// nextIncarnation links this descriptor into the ring of loss
	// records for the same logical payload. A lone packet's ring is
	// itself (nextIncarnation == handle).
	nextIncarnation packetHandle

	path *Path

	sentSize  int
	totalSize int

	retries int // reschedule/retry counter (§4.6, §4.10)
}

// isLossRecord reports whether the packet is a loss record and not a live packet.
func (p *packet) isLossRecord() bool { return p.flags.has(flagLossRecord) }

// arena owns every live packet descriptor for a controller, indexed by
// packetHandle. It never shrinks; freed slots are recycled via freeList so
// handles remain stable for the lifetime of the arena (§9 Design Notes).
type arena struct {
	packets  []*packet
	freeList []packetHandle
}

func newArena() *arena {
	return &arena{}
}

func (a *arena) alloc() (packetHandle, *packet) {
	if n := len(a.freeList); n > 0 {
		h := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		p := &packet{handle: h, nextIncarnation: h}
		a.packets[h] = p
		return h, p
	}
	h := packetHandle(len(a.packets))
	p := &packet{handle: h, nextIncarnation: h}
	a.packets = append(a.packets, p)
	return h, p
}

func (a *arena) get(h packetHandle) *packet {
	if h == noHandle || int(h) >= len(a.packets) {
		return nil
	}
	return a.packets[h]
}

// free releases a single descriptor back to the arena. It does not follow
// the loss chain; use destroyChain for that. A freed handle resolves to nil
// through get until alloc hands the slot out again.
func (a *arena) free(h packetHandle) {
	if h == noHandle || int(h) >= len(a.packets) || a.packets[h] == nil {
		return
	}
	a.packets[h] = nil // drop references so GC can collect path/etc
	a.freeList = append(a.freeList, h)
}

// destroyChain walks the loss-record ring starting at start and frees every
// node in it, including start itself (§4.3: "Destroy the loss chain of the
// packet (all earlier incarnations) and destroy the packet descriptor").
func (a *arena) destroyChain(start packetHandle) {
	h := start
	for {
		p := a.get(h)
		if p == nil {
			return
		}
		next := p.nextIncarnation
		a.free(h)
		if next == start || next == noHandle {
			return
		}
		h = next
	}
}

// linkIncarnation inserts newer into the loss-record ring that older
// belongs to, so that acknowledging either one can find and destroy every
// earlier incarnation.
func linkIncarnation(a *arena, older, newer packetHandle) {
	op := a.get(older)
	np := a.get(newer)
	if op == nil || np == nil {
		return
	}
	np.nextIncarnation = op.nextIncarnation
	op.nextIncarnation = newer
}
