//go:build quicsanity

package quic

import "fmt"

// SanityCheck reconciles the byte/count accumulators against actual queue
// membership (§5: "sanity_check (compiled in under a debug flag)
// reconciles them"). It is built only under the quicsanity tag, the way
// the C source compiles this class of check out of release builds and
// the teacher's own //go:build go1.21 tags gate code by build
// configuration.
func (c *Controller) SanityCheck() error {
	var bytesAll, nAll, bytesRetx, nRetx int
	for i := range c.spaces {
		for _, h := range c.spaces[i].unacked {
			p := c.arena.get(h)
			if p == nil || p.flags.has(flagLossRecord) {
				continue
			}
			bytesAll += p.sentSize
			nAll++
			if p.frameBits.Retransmittable() {
				bytesRetx += p.sentSize
				nRetx++
			}
			if p.number >= 0 {
				// Invariant 2: numbers within a space are strictly
				// increasing; checked separately in checkUnackedOrder.
			}
		}
		if err := c.checkUnackedOrder(Space(i)); err != nil {
			return err
		}
		if err := c.checkAlarmInvariant(Space(i)); err != nil {
			return err
		}
	}
	if bytesAll != c.sets.bytesUnackedAll {
		return fmt.Errorf("sanity: bytesUnackedAll mismatch: tracked=%d actual=%d", c.sets.bytesUnackedAll, bytesAll)
	}
	if nAll != c.sets.nInFlightAll {
		return fmt.Errorf("sanity: nInFlightAll mismatch: tracked=%d actual=%d", c.sets.nInFlightAll, nAll)
	}
	if bytesRetx != c.sets.bytesUnackedRetx {
		return fmt.Errorf("sanity: bytesUnackedRetx mismatch: tracked=%d actual=%d", c.sets.bytesUnackedRetx, bytesRetx)
	}
	if nRetx != c.sets.nInFlightRetx {
		return fmt.Errorf("sanity: nInFlightRetx mismatch: tracked=%d actual=%d", c.sets.nInFlightRetx, nRetx)
	}

	var bytesSched int
	for _, h := range c.sets.scheduled {
		if p := c.arena.get(h); p != nil {
			bytesSched += p.totalSize
		}
	}
	if bytesSched != c.sets.bytesScheduled {
		return fmt.Errorf("sanity: bytesScheduled mismatch: tracked=%d actual=%d", c.sets.bytesScheduled, bytesSched)
	}

	return nil
}

func (c *Controller) checkUnackedOrder(space Space) error {
	sp := c.space(space)
	var prev PacketNumber = -1
	first := true
	for _, h := range sp.unacked {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if !first && p.number <= prev {
			return fmt.Errorf("sanity: unacked queue for %v not strictly increasing: %d after %d", space, p.number, prev)
		}
		prev = p.number
		first = false
	}
	return nil
}

func (c *Controller) checkAlarmInvariant(space Space) error {
	sp := c.space(space)
	has := sp.hasRetransmittableUnacked(c.arena)
	if has != sp.alarmArmed {
		return fmt.Errorf("sanity: alarm invariant violated for %v: hasRetransmittable=%v armed=%v", space, has, sp.alarmArmed)
	}
	return nil
}
