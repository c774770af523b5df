package quic

import "time"

// This file implements the buffered-priority scheduler of §4.8, active
// when immediate scheduling is disabled (BUFFER_STREAM mode).

// packnoBitsGuess is the packet-number-length guess (in bytes) used when a
// packet is first buffered, before its destination space's smallest
// unacked number is known (§4.8: "a buffered packet initially guesses a
// 2-byte packet number").
const packnoBitsGuess = 2

// BufferStream enqueues a packet for stream streamID into the bucket
// chosen by highestPrio, handling the ACK-stealing/synthesis rule for a
// newly-started bucket (§4.8).
func (c *Controller) BufferStream(streamID uint64, highestPrio bool, h packetHandle) {
	prio := c.sets.bucketFor(streamID, highestPrio)
	other := OtherPrio
	if prio == OtherPrio {
		other = HighestPrio
	}

	if c.sets.buffered[prio].count >= c.bpqLimit(prio) {
		return
	}

	p := c.arena.get(h)
	if p == nil {
		return
	}

	if c.sets.buffered[prio].count == 0 {
		c.placeBucketHeadACK(prio, other, p)
	}

	c.sets.addBuffered(prio, h)
}

// placeBucketHeadACK implements the ACK-placement rule: when the first
// packet is added to a bucket, steal the other bucket's head ACK if it has
// one, else synthesize an ACK now if possible, else do nothing.
func (c *Controller) placeBucketHeadACK(prio, other BucketPriority, p *packet) {
	if h, ok := c.sets.firstBuffered(other); ok {
		if op := c.arena.get(h); op != nil && op.frameBits.has(FrameACK) {
			op.frameBits &^= FrameACK
			p.frameBits |= FrameACK
			return
		}
	}
	if c.conn != nil && c.conn.CanWriteAck() {
		added := 0
		stub := &PacketStub{FrameBits: &p.frameBits, AddedSize: &added}
		if c.conn.WriteAck(stub) {
			p.frameBits |= FrameACK
			p.totalSize += added
		}
	}
}

// bpqLimit implements the per-bucket limit of §4.8: OTHER_PRIO is capped
// at MAX_BPQ_COUNT; HIGHEST_PRIO at max(MAX_BPQ_COUNT, cwnd/mtu - inflight
// - scheduled).
func (c *Controller) bpqLimit(prio BucketPriority) int {
	if prio == OtherPrio {
		return c.maxBPQCount
	}
	const mtu = 1200
	room := c.cc.CWND()/mtu - c.sets.nInFlightAll - len(c.sets.scheduled)
	if room > c.maxBPQCount {
		return room
	}
	return c.maxBPQCount
}

// ScheduleBuffered implements promotion (§4.8 "schedule_buffered"): while
// admission permits, pop buckets head-first in enumeration order
// (HIGHEST_PRIO then OTHER_PRIO), chopping stale ACKs and recomputing
// packet-number-bits, splitting oversized guesses.
func (c *Controller) ScheduleBuffered(now time.Time) {
	for c.CanSend(now) {
		h, ok := c.popAnyBuffered()
		if !ok {
			return
		}
		p := c.arena.get(h)
		if p == nil {
			continue
		}

		if p.frameBits.has(FrameACK) && p.ack2Ed != InvalidPacketNumber {
			sp := c.space(p.space)
			if p.ack2Ed < sp.largestAcked {
				p.frameBits &^= FrameACK
				if p.frameBits == 0 {
					c.arena.free(h)
					continue
				}
			}
		}

		c.promoteBuffered(h, p)
	}
}

// popAnyBuffered pops from HIGHEST_PRIO first, falling back to
// OTHER_PRIO, matching the enumeration order named in §4.8.
func (c *Controller) popAnyBuffered() (packetHandle, bool) {
	if h, ok := c.sets.popBuffered(HighestPrio); ok {
		return h, true
	}
	return c.sets.popBuffered(OtherPrio)
}

// promoteBuffered recomputes the packet-number-bits field for a promoted
// packet, splitting it if the earlier 2-byte guess no longer fits, and
// moves it into the scheduled queue with a freshly assigned number.
func (c *Controller) promoteBuffered(h packetHandle, p *packet) {
	wantBits := c.conn.CalcPacknoBits(c.pn.Peek(), c.lowestUnackedAcrossSpaces())
	if wantBits > packnoBitsGuess && p.totalSize+(wantBits-packnoBitsGuess) > c.conn.PackoutSize(wantBits) {
		c.splitBuffered(h, p, wantBits)
		return
	}
	p.number = c.pn.Next()
	c.sets.addScheduled(h)
}

// splitBuffered splits an over-budget promoted packet in two: the first
// half keeps the original's frame content that fits, the second half is a
// fresh allocation carrying the remainder.
func (c *Controller) splitBuffered(h packetHandle, p *packet, wantBits int) {
	fits := c.conn.PackoutSize(wantBits) - (wantBits - packnoBitsGuess)
	remainder := p.totalSize - fits
	p.totalSize = fits
	p.number = c.pn.Next()
	c.sets.addScheduled(h)

	h2, p2 := c.arena.alloc()
	p2.space = p.space
	p2.path = p.path
	p2.frameBits = p.frameBits
	p2.streamID = p.streamID
	p2.totalSize = remainder
	p2.number = c.pn.Next()
	c.sets.addScheduled(h2)
}

func (c *Controller) lowestUnackedAcrossSpaces() PacketNumber {
	lowest := InvalidPacketNumber
	for i := range c.spaces {
		for _, h := range c.spaces[i].unacked {
			p := c.arena.get(h)
			if p == nil {
				continue
			}
			if lowest == InvalidPacketNumber || p.number < lowest {
				lowest = p.number
			}
		}
	}
	return lowest
}
