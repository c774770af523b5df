package quic

import "time"

// armAlarm arms the retransmission alarm for space from now, using the
// current mode's delay computation (§4.5). It is idempotent: re-arming an
// already-armed alarm simply recomputes the expiry.
func (c *Controller) armAlarm(now time.Time, space Space) {
	sp := c.space(space)
	mode := c.selectAlarmMode(space)
	if mode == alarmNone {
		c.unsetAlarm(space)
		return
	}
	delay := c.alarmDelay(space, mode)
	sp.alarmArmed = true
	sp.alarmAt = now.Add(delay)
	c.alarms.Set(space, sp.alarmAt)
}

// unsetAlarm clears the alarm for space, matching §3 invariant 5.
func (c *Controller) unsetAlarm(space Space) {
	sp := c.space(space)
	if !sp.alarmArmed {
		return
	}
	sp.alarmArmed = false
	c.alarms.Unset(space)
}

// rearmOrClear re-arms the alarm for space if a retransmittable unacked
// packet remains, else clears it (§4.3, §4.5: "if any retransmittable
// unacked packet remains in the PNS, re-arm the alarm from now; otherwise
// leave it un-set").
func (c *Controller) rearmOrClear(now time.Time, space Space) {
	if c.space(space).hasRetransmittableUnacked(c.arena) {
		c.armAlarm(now, space)
	} else {
		c.unsetAlarm(space)
	}
}

// selectAlarmMode implements the priority-ordered mode selection of §4.5.
func (c *Controller) selectAlarmMode(space Space) alarmMode {
	sp := c.space(space)

	if !c.handshakeDone && c.hasHelloUnacked(space) {
		return alarmHandshake
	}
	if sp.lossTo != 0 {
		return alarmLoss
	}
	if sp.nTLP < 2 {
		return alarmTLP
	}
	return alarmRTO
}

func (c *Controller) hasHelloUnacked(space Space) bool {
	for _, h := range c.space(space).unacked {
		p := c.arena.get(h)
		if p != nil && p.flags.has(flagHello) && !p.flags.has(flagLossRecord) {
			return true
		}
	}
	return false
}

// alarmDelay implements the per-mode delay table in §4.5, clamped to
// [MIN_RTO, MAX_RTO].
func (c *Controller) alarmDelay(space Space, mode alarmMode) time.Duration {
	sp := c.space(space)
	srtt := c.rtt.SRTT()
	rttvar := c.rtt.RTTVar()

	var delay time.Duration
	switch mode {
	case alarmHandshake:
		if srtt == 0 {
			delay = 150 * time.Millisecond
		} else {
			base := srtt + srtt/2
			if base < 10*time.Millisecond {
				base = 10 * time.Millisecond
			}
			delay = base << uint(sp.nHsk)
		}
	case alarmLoss:
		delay = sp.lossTo
	case alarmTLP:
		if c.sets.nInFlightAll > 1 {
			d := 2 * srtt
			if d < 10*time.Millisecond {
				d = 10 * time.Millisecond
			}
			delay = d
		} else {
			d := srtt + srtt/2 + minRTO
			alt := 2 * srtt
			if alt > d {
				d = alt
			}
			delay = d
		}
	case alarmRTO:
		base := srtt + 4*rttvar
		if base < minRTO {
			base = minRTO
		}
		if srtt == 0 {
			base = 500 * time.Millisecond
		}
		shift := c.nConsecRTOs
		if shift > maxBackoffs {
			shift = maxBackoffs
		}
		delay = base << uint(shift)
	}

	if delay < minRTO {
		delay = minRTO
	}
	if delay > maxRTO {
		delay = maxRTO
	}
	return delay
}

// onAlarmFire is the AlarmSet callback (§4.5). The alarm is already
// un-set by the dispatcher before this runs.
func (c *Controller) onAlarmFire(now time.Time, space Space) {
	sp := c.space(space)
	sp.alarmArmed = false

	if !sp.hasRetransmittableUnacked(c.arena) && !c.hasHelloUnacked(space) {
		// Idempotent no-op (§7): alarm fired with nothing to act on.
		return
	}

	mode := c.selectAlarmMode(space)
	switch mode {
	case alarmHandshake:
		c.expireHello(now, space)
		sp.nHsk++
	case alarmLoss:
		c.DetectLosses(now, space, sp.largestAcked)
	case alarmTLP:
		c.expireLastRetransmittable(now, space)
		sp.nTLP++
	case alarmRTO:
		c.lastRTOTime = now
		c.nConsecRTOs++
		c.nextLimit = 2
		c.expireAllUnacked(now, space)
		c.cc.Timeout()
		sp.nTLP = 0
	}

	c.rearmOrClear(now, space)
}

// expireHello implements the HANDSHAKE mode effect: expire all packets in
// this space that carry HELLO, without invoking congestion-control loss
// (§4.5).
func (c *Controller) expireHello(now time.Time, space Space) {
	sp := c.space(space)
	kept := sp.unacked[:0:0]
	for _, h := range sp.unacked {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.flags.has(flagHello) && !p.flags.has(flagLossRecord) {
			c.expirePacket(now, space, h, p, false)
			continue
		}
		kept = append(kept, h)
	}
	sp.unacked = kept
}

// expireLastRetransmittable implements the TLP mode effect: expire only
// the last (largest packet number) retransmittable unacked packet.
func (c *Controller) expireLastRetransmittable(now time.Time, space Space) {
	sp := c.space(space)
	idx := -1
	for i, h := range sp.unacked {
		p := c.arena.get(h)
		if p == nil || p.flags.has(flagLossRecord) || !p.frameBits.Retransmittable() {
			continue
		}
		idx = i
	}
	if idx < 0 {
		return
	}
	h := sp.removeUnackedAt(idx)
	p := c.arena.get(h)
	c.expirePacket(now, space, h, p, false)
}

// expireAllUnacked implements the RTO mode effect: expire all unacked
// packets in the space. Existing loss records are already-lost
// bookkeeping entries awaiting a late ACK; they are left in place rather
// than expired a second time.
func (c *Controller) expireAllUnacked(now time.Time, space Space) {
	sp := c.space(space)
	all := sp.unacked
	sp.unacked = all[:0:0]
	for _, h := range all {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.flags.has(flagLossRecord) {
			sp.unacked = append(sp.unacked, h)
			continue
		}
		c.expirePacket(now, space, h, p, true)
	}
}

// expirePacket moves a packet declared lost by the alarm (rather than by
// DetectLosses's heuristics) onto the lost queue, notifying congestion
// control unless notifyCC is false (HANDSHAKE mode never invokes
// congestion-control loss).
func (c *Controller) expirePacket(now time.Time, space Space, h packetHandle, p *packet, notifyCC bool) {
	if p == nil {
		return
	}
	c.sets.removeUnackedAccounting(p)
	if notifyCC && p.frameBits.Retransmittable() {
		c.cc.Lost(&SentPacketInfo{
			Number:          p.number,
			Space:           space,
			SentAt:          p.sentAt,
			Size:            p.sentSize,
			Retransmittable: true,
		}, p.sentSize)
		c.maybeCutback(p.number)
	}
	if !p.frameBits.Retransmittable() {
		c.arena.destroyChain(h)
		return
	}
	rec, recH := c.newLossRecordFrom(p)
	linkIncarnation(c.arena, h, recH)
	rec.flags |= flagUnacked | flagLossRecord
	c.space(space).insertUnackedSorted(c.arena, recH)
	p.flags |= flagLost
	c.sets.addLost(p, h)
	c.metrics.packetsLost.WithLabelValues(space.String(), "alarm").Inc()
}

// maybeCutback implements the cutback tripwire shared by the alarm path
// and DetectLosses (§4.4): "if any lost packet number exceeds
// largest_sent_at_cutback, fire a congestion event ... and update
// largest_sent_at_cutback to the current largest-ever-sent number."
func (c *Controller) maybeCutback(lostPN PacketNumber) {
	if c.largestSentAtCutback != InvalidPacketNumber && lostPN <= c.largestSentAtCutback {
		return
	}
	c.cc.Loss()
	c.pacer.LossEvent()
	c.largestSentAtCutback = c.largestEverSent
}

// newLossRecordFrom creates the shadow descriptor for a just-expired
// packet (§3 "Loss record").
func (c *Controller) newLossRecordFrom(p *packet) (*packet, packetHandle) {
	h, rec := c.arena.alloc()
	rec.number = p.number
	rec.space = p.space
	rec.frameBits = p.frameBits
	rec.sentAt = p.sentAt
	rec.sentSize = p.sentSize
	rec.ack2Ed = p.ack2Ed
	rec.path = p.path
	rec.streamID = p.streamID
	return rec, h
}
