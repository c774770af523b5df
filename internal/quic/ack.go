package quic

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AckRange is one contiguous run of acknowledged packet numbers.
type AckRange struct {
	Smallest, Largest PacketNumber
}

// AckFrame is the parsed input to the ACK processor (§4.3). Ranges is
// given descending (Ranges[0] is the highest range, matching wire order);
// the walk below exploits that ordering against the ascending unacked
// queue rather than doing a per-packet search (§9 Design Notes,
// "ACK-range walk direction").
type AckFrame struct {
	Space   Space
	Ranges  []AckRange
	Delay   time.Duration
	HasECN  bool
	ECT0, ECT1, CE uint64
}

// ProcessAck implements §4.3 in full: validation, the linear range/queue
// walk, RTT sampling, loss-detection re-run, ECN accounting, and the
// legacy stop-waiting trigger.
func (c *Controller) ProcessAck(now time.Time, ack AckFrame) error {
	sp := c.space(ack.Space)
	if len(ack.Ranges) == 0 {
		return nil
	}
	largestAcked := ack.Ranges[0].Largest
	if largestAcked > sp.largestSent {
		return &ProtocolViolationError{Reason: "ACK for a packet number never sent"}
	}

	c.cc.BeginAck(now, c.sets.bytesUnackedAll)
	defer c.cc.EndAck(c.sets.bytesUnackedAll)

	var (
		doRTT             bool
		largestAckedTime  time.Time
		appLimited        bool
		appLimitedComputed bool
		kept              = sp.unacked[:0:0]
		idx               = len(ack.Ranges) - 1
		stopWaitingHit    bool
		priorInFlight     = c.sets.bytesUnackedAll
		ackedAny          bool
		ackedCount        uint64
	)

	for _, h := range sp.unacked {
		p := c.arena.get(h)
		if p == nil {
			continue
		}
		cur := ack.Ranges[idx]
		for p.number > cur.Largest && idx > 0 {
			idx--
			cur = ack.Ranges[idx]
		}
		if p.number < cur.Smallest || p.number > cur.Largest {
			kept = append(kept, h)
			continue
		}

		// Acknowledged.
		if p.number > sp.largestAcked {
			sp.largestAcked = p.number
			sp.largestAckedSent = p.sentAt
		}
		if !appLimitedComputed {
			appLimited = c.isAppLimited()
			appLimitedComputed = true
		}

		// Only take a sample when this ACK's largest-acked advances past
		// the packet number the previous sample was taken against
		// (lsquic_send_ctl.c:603-614's "packno > ctl->sc_max_rtt_packno"
		// guard) — otherwise a stale or re-ordered ACK would re-sample
		// against a packet we've already measured from.
		if p.number == largestAcked && largestAcked > sp.maxRTTPacno {
			largestAckedTime = p.sentAt
			doRTT = true
		}

		if !p.flags.has(flagLossRecord) {
			c.sets.removeUnackedAccounting(p)
			ackedAny = true
		}
		ackedCount++

		c.cc.Ack(&SentPacketInfo{
			Number:          p.number,
			Space:           ack.Space,
			SentAt:          p.sentAt,
			Size:            p.sentSize,
			Retransmittable: p.frameBits.Retransmittable(),
		}, p.sentSize, now, appLimited)

		if p.ack2Ed != InvalidPacketNumber && sp.stopWaitingFrameNum != InvalidPacketNumber && p.ack2Ed >= sp.stopWaitingFrameNum {
			stopWaitingHit = true
		}

		c.metrics.packetsAcked.WithLabelValues(ack.Space.String()).Inc()
		c.arena.destroyChain(h)
	}
	sp.unacked = kept

	if ackedAny {
		c.metrics.bytesInFlight.Set(float64(c.sets.bytesUnackedAll))
	}
	if c.ecnEnabled && ackedCount > 0 {
		// We don't track which individual packets were sent with an ECT
		// mark, so we attribute our observation count to ECT0 — the
		// common-case marking — and let processECN's consistency check
		// catch real peer undercounting regardless of which bucket it
		// lands in.
		sp.ecnObservedECT0 += ackedCount
	}

	if doRTT {
		measured := now.Sub(largestAckedTime)
		ackDelay := ack.Delay
		if ackDelay >= measured {
			ackDelay = 0
		}
		c.rtt.Update(measured, ackDelay, now)
		sp.maxRTTPacno = largestAcked
		c.metrics.rttSample.Observe(measured.Seconds())
		c.nConsecRTOs = 0
		for i := range c.spaces {
			c.spaces[i].nHsk = 0
			c.spaces[i].nTLP = 0
		}
	}

	c.DetectLosses(now, ack.Space, sp.largestAcked)

	c.rearmOrClear(now, ack.Space)

	if ack.HasECN {
		c.processECN(ack)
	}

	if !c.isIETF && stopWaitingHit {
		sp.stopWaitingConsecAcked++
		if sp.stopWaitingConsecAcked >= 2 {
			sp.sendStopWaiting = true
			sp.stopWaitingConsecAcked = 0
		}
	}

	if debugEnabled(c.log) {
		c.log.WithFields(logrus.Fields{
			"space":        ack.Space.String(),
			"largestAcked": int64(largestAcked),
			"priorInFlight": priorInFlight,
		}).Debug("ack processed")
	}

	return nil
}

// processECN implements the ECN accounting paragraph of §4.3: the
// peer-reported total must never shrink and must never undercount our
// observations; if it does, disable ECN. If the reported CE count
// advances, notify the congestion controller (SPEC_FULL.md §E.1: this,
// and nothing more, is the action taken on a CE advance).
func (c *Controller) processECN(ack AckFrame) {
	if !c.ecnEnabled {
		return
	}
	sp := c.space(ack.Space)

	reportedTotal := ack.ECT0 + ack.ECT1 + ack.CE
	observedTotal := sp.ecnObservedECT0 + sp.ecnObservedECT1 + sp.ecnObservedCE
	if reportedTotal < observedTotal {
		c.disableECN()
		return
	}

	if ack.CE > sp.ecnObservedCE {
		sp.ecnObservedCE = ack.CE
		c.cc.Loss()
	}
	sp.ecnObservedECT0 = ack.ECT0
	sp.ecnObservedECT1 = ack.ECT1
}
