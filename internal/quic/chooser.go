package quic

import "time"

// ChooseResult is the outcome of NextToSend: either a packet handle ready
// to serialize, or a reason the scheduled queue is not yielding one.
type ChooseResult struct {
	Handle packetHandle
	OK     bool
}

// NextToSend implements the next-packet-to-send chooser of §4.9.
// sizeHint, when non-zero, is the remaining budget in a UDP datagram
// being coalesced; isInitialClient marks a client Initial packet eligible
// for minimum-size padding. It returns a *PacketTooSmallError (§7) if a
// client Initial packet is being chosen into a datagram too small to ever
// hold the minimum Initial size — a misconfigured-MTU condition the
// caller cannot retry past.
func (c *Controller) NextToSend(now time.Time, space Space, sizeHint int, isInitialClient, isAckOnly bool) (ChooseResult, error) {
	h, ok := c.sets.popScheduled()
	if !ok {
		return ChooseResult{OK: false}, nil
	}
	p := c.arena.get(h)
	if p == nil {
		return ChooseResult{OK: false}, nil
	}

	if c.inRTOBlockade(now, space) && !isAckOnly {
		if c.nextLimit <= 0 {
			c.sets.pushScheduledFront(h)
			return ChooseResult{OK: false}, nil
		}
		c.nextLimit--
		p.flags |= flagLimited
	}

	if p.flags.has(flagRepackno) {
		p = c.renumberForResend(p)
		if p == nil {
			return c.NextToSend(now, space, sizeHint, isInitialClient, isAckOnly)
		}
	}

	if sizeHint != 0 && p.totalSize > sizeHint {
		c.sets.pushScheduledFront(h)
		return ChooseResult{OK: false}, nil
	}

	if isInitialClient && sizeHint != 0 {
		const minInitialDatagram = 1200
		if sizeHint < minInitialDatagram {
			c.arena.destroyChain(h)
			return ChooseResult{}, &PacketTooSmallError{Need: minInitialDatagram, Have: sizeHint}
		}
		if p.totalSize < minInitialDatagram {
			p.totalSize = minInitialDatagram
		}
	}

	if c.qlBitsEnabled {
		p.flags |= flagLogQLBits
		if c.lossBitToken {
			c.lossBitToken = false
			p.flags |= flagQLLossBit
		}
		c.squareBitCount++
		if c.squareBitCount >= 128 {
			c.squareBitCount = 0
			c.squareBit = !c.squareBit
		}
		if c.squareBit {
			p.flags |= flagQLSquareBit
		}
	}

	return ChooseResult{Handle: h, OK: true}, nil
}

// DelayedOne re-inserts a packet that could not be written after all at
// the head of the scheduled queue, restoring its RTO-verification token
// if it had spent one (§4.9, "Delayed one").
func (c *Controller) DelayedOne(h packetHandle) {
	p := c.arena.get(h)
	if p != nil && p.flags.has(flagLimited) {
		p.flags &^= flagLimited
		c.nextLimit++
	}
	c.sets.pushScheduledFront(h)
}

// renumberForResend implements the REPACKNO branch of §4.9: "update for
// resending" — drop SENT_SZ, drop regenerable-frame bits, assign a fresh
// number. If the payload was entirely regenerable, the packet is dropped
// and nil returned. ECN and version tags are not refreshed (the descriptor
// carries neither), and totalSize is not reduced by the bytes of the
// dropped regenerable frames.
func (c *Controller) renumberForResend(p *packet) *packet {
	p.flags &^= flagSentSize
	p.frameBits &^= regenerableFrames
	if p.frameBits == 0 {
		c.arena.destroyChain(p.handle)
		return nil
	}
	p.number = c.pn.Next()
	p.flags &^= flagRepackno
	return p
}
