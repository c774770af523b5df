package quic

// This file implements the mutators of §4.10.

// ElideStreamFrames walks the scheduled and buffered queues, removing any
// STREAM-only content belonging to streamID. Packets that become empty are
// dropped; if any scheduled packet was dropped, remaining scheduled packets
// are renumbered (the renumber invariant, §3 invariant 6). Packets
// carrying other streams' content, or no single stream's content at all
// (streamID == noStreamID), are left untouched.
func (c *Controller) ElideStreamFrames(streamID uint64) {
	dropped := false

	kept := c.sets.scheduled[:0:0]
	for _, h := range c.sets.scheduled {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.frameBits.OnlyStream() && p.streamID == streamID {
			c.sets.bytesScheduled -= p.totalSize
			c.arena.free(h)
			dropped = true
			continue
		}
		kept = append(kept, h)
	}
	c.sets.scheduled = kept

	for prio := 0; prio < numBuckets; prio++ {
		b := &c.sets.buffered[prio]
		keptB := b.packets[:0:0]
		for _, h := range b.packets {
			p := c.arena.get(h)
			if p == nil {
				continue
			}
			if p.frameBits.OnlyStream() && p.streamID == streamID {
				c.arena.free(h)
				b.count--
				continue
			}
			keptB = append(keptB, h)
		}
		b.packets = keptB
	}

	c.sets.invalidateStreamBucketCache()

	if dropped {
		c.markScheduledForRepackno()
	}
}

// SqueezeSched removes scheduled packets whose only remaining content is
// regenerable, returning whether any non-regen-only packets remain. If
// drops happened, remaining scheduled packets are marked for renumbering.
func (c *Controller) SqueezeSched() bool {
	dropped := false
	anyRemain := false

	kept := c.sets.scheduled[:0:0]
	for _, h := range c.sets.scheduled {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if !p.frameBits.Retransmittable() {
			c.sets.bytesScheduled -= p.totalSize
			c.arena.free(h)
			dropped = true
			continue
		}
		anyRemain = true
		kept = append(kept, h)
	}
	c.sets.scheduled = kept

	if dropped {
		c.markScheduledForRepackno()
	}
	return anyRemain
}

// markScheduledForRepackno tags every remaining scheduled packet
// REPACKNO, so the next trip through the chooser (§4.9) renumbers them in
// scheduled-queue order, satisfying §3 invariant 6.
func (c *Controller) markScheduledForRepackno() {
	for _, h := range c.sets.scheduled {
		if p := c.arena.get(h); p != nil {
			p.flags |= flagRepackno
		}
	}
	c.pn.Reset(c.history)
}

// DropScheduled destroys every non-HELLO scheduled packet, and marks the
// send-history as "gap is OK" so the resulting gap in the packet-number
// sequence doesn't raise an invariant alarm.
func (c *Controller) DropScheduled() {
	kept := c.sets.scheduled[:0:0]
	for _, h := range c.sets.scheduled {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.flags.has(flagHello) {
			kept = append(kept, h)
			continue
		}
		c.sets.bytesScheduled -= p.totalSize
		c.arena.free(h)
	}
	c.sets.scheduled = kept
	c.history.SetGapOK()
}

// EmptyPNS destroys every packet belonging to space across scheduled,
// unacked, lost, and both buffered buckets, and clears the space's
// retransmission alarm (§4.10).
func (c *Controller) EmptyPNS(space Space) {
	kept := c.sets.scheduled[:0:0]
	for _, h := range c.sets.scheduled {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.space == space {
			c.sets.bytesScheduled -= p.totalSize
			c.arena.free(h)
			continue
		}
		kept = append(kept, h)
	}
	c.sets.scheduled = kept

	sp := c.space(space)
	for _, h := range sp.unacked {
		if p := c.arena.get(h); p != nil {
			c.sets.removeUnackedAccounting(p)
			c.arena.free(h)
		}
	}
	sp.unacked = nil

	keptLost := c.sets.lost[:0:0]
	for _, h := range c.sets.lost {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.space == space {
			c.arena.free(h)
			continue
		}
		keptLost = append(keptLost, h)
	}
	c.sets.lost = keptLost

	for prio := 0; prio < numBuckets; prio++ {
		b := &c.sets.buffered[prio]
		keptB := b.packets[:0:0]
		for _, h := range b.packets {
			p := c.arena.get(h)
			if p == nil {
				continue
			}
			if p.space == space {
				c.arena.free(h)
				b.count--
				continue
			}
			keptB = append(keptB, h)
		}
		b.packets = keptB
	}

	c.unsetAlarm(space)
}

// Repath repoints every packet in every queue whose path pointer equals
// oldPath to newPath. Encrypted packets have their encrypted bytes
// returned to the allocator, since encryption must be redone on the new
// path; here that is modeled by clearing the ENCRYPTED flag, signaling to
// the caller (who owns the encrypted-buffer pool) that re-encryption is
// needed.
func (c *Controller) Repath(oldPath, newPath *Path) {
	repoint := func(h packetHandle) {
		p := c.arena.get(h)
		if p == nil || p.path != oldPath {
			return
		}
		p.path = newPath
		if p.flags.has(flagEncrypted) {
			p.flags &^= flagEncrypted
		}
	}
	for _, h := range c.sets.scheduled {
		repoint(h)
	}
	for _, h := range c.sets.lost {
		repoint(h)
	}
	for i := range c.spaces {
		for _, h := range c.spaces[i].unacked {
			repoint(h)
		}
	}
	for prio := 0; prio < numBuckets; prio++ {
		for _, h := range c.sets.buffered[prio].packets {
			repoint(h)
		}
	}
}

// Retry implements the post-Retry mutator (§4.10): install the new token on
// the controller, expire all unacked Initial packets onto the lost queue
// with the token's length added to their size, split any that then exceeds
// 1200 bytes, and fail after retriesAllowed retries. Initial packets that
// were already on the lost queue before the call are not resized.
func (c *Controller) Retry(token []byte) error {
	c.retryCount++
	if c.retryCount > retriesAllowed {
		return &RetryLimitExceededError{Limit: retriesAllowed}
	}
	if err := c.SetToken(token); err != nil {
		return err
	}
	tokenLen := len(token)

	sp := c.space(Initial)
	all := sp.unacked
	sp.unacked = nil
	for _, h := range all {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		c.sets.removeUnackedAccounting(p)
		if p.frameBits.Retransmittable() {
			rec, recH := c.newLossRecordFrom(p)
			linkIncarnation(c.arena, h, recH)
			rec.flags |= flagUnacked | flagLossRecord
			sp.unacked = append(sp.unacked, recH)
			p.flags |= flagLost
			p.totalSize += tokenLen
			c.sets.addLost(p, h)
			if p.totalSize > 1200 {
				c.splitRetryPacket(h, p)
			}
		} else {
			c.arena.destroyChain(h)
		}
	}
	return nil
}

// splitRetryPacket splits a post-Retry Initial packet whose token growth
// pushed it over the 1200-byte minimum-size budget: the first half keeps
// its number, the second half is a fresh allocation appended to the lost
// queue.
func (c *Controller) splitRetryPacket(h packetHandle, p *packet) {
	overflow := p.totalSize - 1200
	p.totalSize = 1200

	h2, p2 := c.arena.alloc()
	p2.space = Initial
	p2.path = p.path
	p2.frameBits = p.frameBits
	p2.streamID = p.streamID
	p2.totalSize = overflow
	p2.flags |= flagLost
	c.sets.addLost(p2, h2)
}

// TurnOnFIN tries to mark a stream's FIN on a buffered-then-scheduled,
// already-written but unsent packet for streamID, returning whether any
// packet accepted the edit.
func (c *Controller) TurnOnFIN(streamID uint64) bool {
	for prio := 0; prio < numBuckets; prio++ {
		for _, h := range c.sets.buffered[prio].packets {
			if p := c.arena.get(h); p != nil && p.frameBits.has(FrameStream) && p.streamID == streamID {
				p.flags |= flagStreamEnd
				return true
			}
		}
	}
	for _, h := range c.sets.scheduled {
		if p := c.arena.get(h); p != nil && p.frameBits.has(FrameStream) && p.streamID == streamID {
			p.flags |= flagStreamEnd
			return true
		}
	}
	return false
}
