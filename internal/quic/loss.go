package quic

import "time"

// DetectLosses implements the loss detector of §4.4 for a single space.
// It scans the unacked queue and applies, in order, the FACK/reordering
// heuristic, early retransmit, and the sent-time heuristic.
//
// lossTo is cleared unconditionally at the top of every call and
// recomputed if early retransmit fires again during this pass — see
// SPEC_FULL.md §E.2 for why this matches the grounding source's
// (apparently lossy) behavior intentionally.
func (c *Controller) DetectLosses(now time.Time, space Space, largestAckedPacno PacketNumber) {
	sp := c.space(space)
	sp.lossTo = 0

	if largestAckedPacno == InvalidPacketNumber {
		return
	}

	srtt := c.rtt.SRTT()
	largestRetx := sp.largestRetransmittablePacno(c.arena)
	earlyRetransmitCandidate := largestRetx != InvalidPacketNumber && largestRetx <= largestAckedPacno

	kept := sp.unacked[:0:0]
	var lostAny PacketNumber = InvalidPacketNumber

	for _, h := range sp.unacked {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		if p.flags.has(flagLossRecord) {
			kept = append(kept, h)
			continue
		}

		lost := false
		switch {
		case p.number+nNacksBeforeRetx < largestAckedPacno:
			lost = true
		case earlyRetransmitCandidate && p.frameBits.Retransmittable():
			lost = true
			sp.lossTo = srtt / 4
		case !sp.largestAckedSent.IsZero() && sp.largestAckedSent.After(p.sentAt.Add(srtt)):
			lost = true
		}

		if !lost {
			kept = append(kept, h)
			continue
		}

		c.cc.Lost(&SentPacketInfo{
			Number:          p.number,
			Space:           space,
			SentAt:          p.sentAt,
			Size:            p.sentSize,
			Retransmittable: p.frameBits.Retransmittable(),
		}, p.sentSize)

		if p.number > lostAny || lostAny == InvalidPacketNumber {
			lostAny = p.number
		}

		// Client-only ECN black-hole tripwire: a one-shot check on this one
		// lost packet, not an accumulating count (lsquic_send_ctl.c:778-786,
		// send_ctl_handle_lost_packet: "0 == sc_ecn_total_acked[PNS_INIT] &&
		// HETY_INITIAL == po_header_type && 3 == po_packno"). It is keyed on
		// the Initial space specifically (the source's comment notes the
		// server-side equivalent happens in the mini-conn, not here) and on
		// this packet's own number being exactly 3, independent of whether
		// the other early losses were detected in this call or an earlier
		// one.
		if c.side == ClientSide && space == Initial && c.ecnEnabled && p.number == 3 &&
			sp.ecnObservedECT0+sp.ecnObservedECT1+sp.ecnObservedCE == 0 {
			c.disableECN()
		}

		c.sets.removeUnackedAccounting(p)
		if p.frameBits.Retransmittable() {
			rec, recH := c.newLossRecordFrom(p)
			linkIncarnation(c.arena, h, recH)
			rec.flags |= flagUnacked | flagLossRecord
			kept = append(kept, recH)
			p.flags |= flagLost
			c.sets.addLost(p, h)
		} else {
			c.arena.destroyChain(h)
		}

		c.metrics.packetsLost.WithLabelValues(space.String(), lossReason(p)).Inc()
	}
	sp.unacked = kept

	if lostAny != InvalidPacketNumber {
		c.maybeCutback(lostAny)
	}
}

func lossReason(p *packet) string {
	// The heuristic that fired isn't retained on the descriptor (the
	// controller only needs to act on loss, not remember why), so every
	// loss found by DetectLosses is reported as "detected"; expirePacket
	// reports alarm-driven losses as "alarm".
	_ = p
	return "detected"
}

func (c *Controller) disableECN() {
	c.ecnEnabled = false
	if debugEnabled(c.log) {
		c.log.Debug("disabling ECN: black-hole tripwire or counter inconsistency")
	}
}
