package quic

import "time"

// Reschedule implements the reschedule engine (§4.6): drains the lost
// queue head-to-tail, producing fresh scheduled packets.
func (c *Controller) Reschedule(now time.Time) {
	for {
		h, ok := c.sets.popLost()
		if !ok {
			return
		}
		p := c.arena.get(h)
		if p == nil {
			continue
		}

		if p.frameBits.OnlyStream() {
			p.frameBits = c.elideResetStreamFrames(p.streamID, p.frameBits)
			if !p.frameBits.Retransmittable() {
				// Only regenerable content remains; its delivery is
				// conveyed by other signals, so we drop it.
				c.arena.free(h)
				continue
			}
		}

		if !c.CanSend(now) {
			// Stop; put it back at the head of the lost queue so the
			// next Reschedule call picks up where this one left off.
			c.sets.lost = append([]packetHandle{h}, c.sets.lost...)
			return
		}

		newPN := c.pn.Next()
		p.number = newPN
		p.flags &^= flagLost
		p.flags |= flagRetx
		p.flags &^= flagSentSize
		p.frameBits &^= regenerableFrames
		p.retries++

		c.sets.addScheduled(h)
	}
}

// elideResetStreamFrames removes the STREAM bit from bits if streamID names
// a stream that has since been reset (§4.6: "elide any stream frames that
// have been subsequently reset"). The send controller doesn't own stream
// state; it consults the connection's stream table for the single id this
// packet belongs to. A packet with no single-stream content (streamID ==
// noStreamID) is never subject to this elision.
func (c *Controller) elideResetStreamFrames(streamID uint64, bits FrameBits) FrameBits {
	if streamID == noStreamID || !bits.has(FrameStream) {
		return bits
	}
	if info, ok := c.streams.Lookup(streamID); ok && info.Reset {
		return bits &^ FrameStream
	}
	return bits
}
