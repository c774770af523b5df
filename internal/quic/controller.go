// Package quic implements the send controller of a QUIC endpoint: the
// subsystem that governs when packets are transmitted, deemed lost,
// retransmitted, and how they interact with congestion control and
// pacing. See SPEC_FULL.md for the full design.
package quic

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	// N_NACKS_BEFORE_RETX (§4.4): FACK/reordering threshold.
	nNacksBeforeRetx = 3

	// MAX_BPQ_COUNT default (§4.8). Kept as a Controller field rather
	// than a package var so test harnesses can override it without
	// global mutable state (§9 Design Notes, SPEC_FULL.md §D).
	defaultMaxBPQCount = 10

	minRTO = time.Second
	maxRTO = 60 * time.Second

	maxBackoffs = 10

	// retriesAllowed bounds the number of Retry packets a client will
	// accept before failing the connection (§4.10).
	retriesAllowed = 3

	// maxTokenLen bounds the address-validation token to what a
	// single-byte length field can encode, the overflow the grounding
	// source guards po_token_len (a single byte) against before ever
	// touching the allocator (lsquic_send_ctl.c's
	// lsquic_send_ctl_set_token). That source's check, "token_sz > 1 <<
	// (sizeof(po_token_len) * 8)", admits up to 256 bytes; this bound
	// admits up to 255.
	maxTokenLen = 255
)

// SendMode is the Controller's admission-gate instruction to the caller
// for what kind of packet (if any) may be sent right now.
type SendMode int

const (
	SendNone SendMode = iota
	SendAckOnly
	SendLimited // RTO-verification token spent; tag packet LIMITED
	SendAny
)

// Controller is the send controller described in spec.md §2. One
// Controller belongs to exactly one connection and is driven exclusively
// by that connection's single event-loop task (§5): there is no internal
// locking.
type Controller struct {
	arena *arena
	sets  *packetSets
	pn    *pnAllocator

	spaces [numSpaces]*spaceState

	side     Side
	isIETF   bool
	handshakeDone bool

	path *Path

	// Collaborators (§6). All are required; callers wanting a no-op
	// behaviour (e.g. a disabled pacer) supply a no-op implementation
	// rather than leaving the field nil, so the hot path never needs a
	// nil check.
	alarms  AlarmSet
	rtt     RTTStats
	cc      CongestionController
	pacer   Pacer
	history SendHistory
	conn    Connection
	streams StreamTable
	attq    AttentionQueue

	pacingEnabled bool
	ecnEnabled    bool

	maxBPQCount int

	// Controller-global admission/backoff state (lsquic sc_* fields:
	// these are deliberately controller-wide, not per-space, matching
	// the grounding source).
	nConsecRTOs          int
	lastRTOTime          time.Time
	nextLimit            int // sc_next_limit: RTO-verification token count
	largestSentAtCutback PacketNumber

	// largestEverSent is the largest packet number RecordSent has seen;
	// maybeCutback copies it into largestSentAtCutback.
	largestEverSent PacketNumber

	// retryCount counts Retry packets received, enforcing retriesAllowed
	// (§4.10).
	retryCount int

	// token is the address-validation token installed by the most recent
	// Retry or explicit SetToken call (§4.10: "install the new token on
	// the controller").
	token []byte

	// qlBitsEnabled toggles QL-bit tagging in the chooser (§4.9).
	qlBitsEnabled bool
	lossBitToken  bool
	squareBitCount int
	squareBit      bool

	log     *logrus.Entry
	metrics *Metrics
}

// Side is which endpoint role the controller is serving; the loss
// detector's ECN black-hole tripwire applies to the client side only. The
// initial packet number depends on Config.IETF, not on Side (§4.1).
type Side int

const (
	ClientSide Side = iota
	ServerSide
)

// Config bundles the collaborators and options a Controller is built
// from.
type Config struct {
	Side          Side
	IETF          bool
	PacingEnabled bool
	ECNEnabled    bool
	MaxBPQCount   int // 0 uses defaultMaxBPQCount

	Alarms  AlarmSet
	RTT     RTTStats
	CC      CongestionController
	Pacer   Pacer
	History SendHistory
	Conn    Connection
	Streams StreamTable
	ATTQ    AttentionQueue

	Logger  *logrus.Entry
	Metrics prometheus.Registerer
}

// NewController builds a Controller wired to the given collaborators.
func NewController(cfg Config) *Controller {
	a := newArena()
	c := &Controller{
		arena:         a,
		sets:          newPacketSets(a),
		side:          cfg.Side,
		isIETF:        cfg.IETF,
		path:          NewPath(),
		alarms:        cfg.Alarms,
		rtt:           cfg.RTT,
		cc:            cfg.CC,
		pacer:         cfg.Pacer,
		history:       cfg.History,
		conn:          cfg.Conn,
		streams:       cfg.Streams,
		attq:          cfg.ATTQ,
		pacingEnabled: cfg.PacingEnabled,
		ecnEnabled:    cfg.ECNEnabled,
		maxBPQCount:   cfg.MaxBPQCount,
		largestSentAtCutback: InvalidPacketNumber,
		largestEverSent:      InvalidPacketNumber,
	}
	if c.maxBPQCount <= 0 {
		c.maxBPQCount = defaultMaxBPQCount
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger
	} else {
		c.log = newNopLogger()
	}
	c.metrics = NewMetrics(cfg.Metrics)

	start := PacketNumber(0)
	if !cfg.IETF {
		start = 1
	}
	c.pn = newPNAllocator(start)

	for i := range c.spaces {
		c.spaces[i] = newSpaceState(Space(i))
	}
	for i := range c.spaces {
		space := Space(i)
		c.alarms.InitAlarm(space, c.onAlarmFire)
	}
	c.cc.Init()
	c.pacer.Init()

	return c
}

// Cleanup releases collaborator-owned resources (§5: connection close
// triggers cleanup, which drains every queue and releases every
// descriptor in deterministic order).
func (c *Controller) Cleanup() {
	for i := range c.spaces {
		c.EmptyPNS(Space(i))
	}
	c.cc.Cleanup()
	c.pacer.Cleanup()
	c.history.Cleanup()
}

func (c *Controller) space(s Space) *spaceState { return c.spaces[s] }

// SetToken installs an address-validation token on the controller (§4.10),
// copying it so the caller's buffer can be reused. Retry calls this itself
// before expiring Initial packets; callers that learn a token outside of a
// Retry (e.g. a NEW_TOKEN frame) use this directly.
func (c *Controller) SetToken(token []byte) error {
	if len(token) > maxTokenLen {
		return &TokenTooLongError{Len: len(token), Max: maxTokenLen}
	}
	c.token = append([]byte(nil), token...)
	return nil
}

// BytesScheduled returns sc_bytes_scheduled (§3 invariant 4).
func (c *Controller) BytesScheduled() int { return c.sets.bytesScheduled }

// BytesInFlight returns sc_bytes_unacked_all (§3 invariant 3).
func (c *Controller) BytesInFlight() int { return c.sets.bytesUnackedAll }

// BytesInFlightRetx returns sc_bytes_unacked_retx.
func (c *Controller) BytesInFlightRetx() int { return c.sets.bytesUnackedRetx }

// PacketsInFlight returns sc_n_in_flight_all.
func (c *Controller) PacketsInFlight() int { return c.sets.nInFlightAll }

// NewOutgoing allocates a fresh packet descriptor for content the framer
// has just composed (§2: "the framer composes packets"; the controller
// owns the descriptor and flags but never the wire bytes). The returned
// handle is opaque outside this package: callers pass it straight into
// BufferStream or ScheduleDirect without inspecting it. streamID names the
// stream this packet's content belongs to, or noStreamID for packets with
// no single-stream content.
func (c *Controller) NewOutgoing(space Space, frameBits FrameBits, totalSize int, streamID uint64) packetHandle {
	h, p := c.arena.alloc()
	p.space = space
	p.frameBits = frameBits
	p.totalSize = totalSize
	p.path = c.path
	p.ack2Ed = InvalidPacketNumber
	p.number = c.pn.Next()
	p.streamID = streamID
	return h
}

// ScheduleDirect places a freshly allocated packet straight onto the
// scheduled queue, bypassing the buffered-priority scheduler (§2: the
// immediate-scheduling path used whenever BUFFER_STREAM mode is off).
func (c *Controller) ScheduleDirect(h packetHandle) {
	c.sets.addScheduled(h)
}
