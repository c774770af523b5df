package quic

import "time"

// CanSend implements the admission gate of §4.7. With pacing disabled it
// is pure congestion window; with pacing enabled it additionally consults
// the pacer, registering a future wake on the attention queue if the pacer
// refuses.
func (c *Controller) CanSend(now time.Time) bool {
	if c.sets.bytesScheduled+c.sets.bytesUnackedAll >= c.cc.CWND() {
		c.metrics.admissionRefused.WithLabelValues("cwnd").Inc()
		return false
	}
	if !c.pacingEnabled {
		return true
	}
	nOut := c.sets.nInFlightAll + len(c.sets.scheduled)
	if !c.pacer.CanSchedule(nOut) {
		if c.attq != nil {
			c.attq.WakeAt(c.pacer.NextSend())
		}
		c.metrics.admissionRefused.WithLabelValues("pacing").Inc()
		return false
	}
	return true
}

// CouldSend is the side-effect-free variant of CanSend used for
// app-limited flagging (§4.7: "same test but without side effects").
func (c *Controller) CouldSend() bool {
	if c.sets.bytesScheduled+c.sets.bytesUnackedAll >= c.cc.CWND() {
		return false
	}
	if !c.pacingEnabled {
		return true
	}
	nOut := c.sets.nInFlightAll + len(c.sets.scheduled)
	return c.pacer.CanSchedule(nOut)
}

// inRTOBlockade reports whether the controller is still inside the
// post-RTO verification window: n_consec_rtos > 0 and the last RTO stamp
// is within one computed RTO interval of now (§4.9).
func (c *Controller) inRTOBlockade(now time.Time, space Space) bool {
	if c.nConsecRTOs == 0 {
		return false
	}
	interval := c.alarmDelay(space, alarmRTO)
	return now.Sub(c.lastRTOTime) < interval
}
