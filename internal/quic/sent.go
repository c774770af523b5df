package quic

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RecordSent implements §4.2, "Send path — record a sent packet": the
// contract run once a packet's encrypted form has been handed to the
// socket.
func (c *Controller) RecordSent(now time.Time, space Space, h packetHandle) {
	p := c.arena.get(h)
	if p == nil {
		return
	}
	sp := c.space(space)

	if !p.flags.has(flagSentSize) {
		p.sentSize = p.totalSize
		p.flags |= flagSentSize
	}

	wasQuiet := !sp.hasRetransmittableUnacked(c.arena) && c.sets.nInFlightRetx == 0

	c.sets.addUnacked(&c.spaces, h)
	if p.number > sp.largestSent {
		sp.largestSent = p.number
	}
	if p.number > c.largestEverSent {
		c.largestEverSent = p.number
	}
	c.history.Add(p.number)

	if p.frameBits.Retransmittable() && wasQuiet {
		p.flags |= flagWasQuiet
		c.cc.WasQuiet(now, c.sets.bytesUnackedAll)
	}

	if !sp.alarmArmed && p.frameBits.Retransmittable() {
		c.armAlarm(now, space)
	}

	appLimited := c.isAppLimited()
	c.cc.Sent(&SentPacketInfo{
		Number:          p.number,
		Space:           space,
		SentAt:          now,
		Size:            p.sentSize,
		Retransmittable: p.frameBits.Retransmittable(),
	}, c.sets.nInFlightAll, appLimited)

	c.metrics.packetsSent.WithLabelValues(space.String()).Inc()
	c.metrics.bytesInFlight.Set(float64(c.sets.bytesUnackedAll))

	if debugEnabled(c.log) {
		c.log.WithFields(logrus.Fields{
			"space": space.String(),
			"pn":    int64(p.number),
			"size":  p.sentSize,
			"retx":  p.frameBits.Retransmittable(),
		}).Debug("packet sent")
	}
}

// isAppLimited implements the lazy app-limited predicate used by both the
// ACK processor (§4.3) and RecordSent's congestion-control Sent hook:
// true iff current in-flight-retx plus three packet sizes is less than the
// congestion window.
func (c *Controller) isAppLimited() bool {
	const threePackets = 3 * 1200 // conservative MTU estimate; real size comes from conn.PackoutSize
	return c.sets.bytesUnackedRetx+threePackets < c.cc.CWND()
}
