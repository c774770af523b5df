package quic

// BucketPriority selects which buffered-priority bucket a packet belongs
// to (§3, §4.8).
type BucketPriority int

const (
	HighestPrio BucketPriority = iota
	OtherPrio

	numBuckets = int(OtherPrio) + 1
)

// bucket is one of the two buffered-priority queues (§3 "Buffered-priority
// queue"): a packet list plus a count, capped per §4.8.
type bucket struct {
	prio    BucketPriority
	packets []packetHandle
	count   int
}

// packetSets is the Packet-Set store (§2, component "Packet-Set store";
// §4 throughout): the four packet collections owned by a controller, plus
// the byte and count accumulators that invariant 3/4 of §3 require stay in
// sync with queue membership.
type packetSets struct {
	arena *arena

	scheduled []packetHandle
	lost      []packetHandle
	buffered  [numBuckets]bucket

	// streamBucketCache memoizes which bucket a stream id maps to
	// (§3: "A per-stream cache memoizes which bucket a stream maps to").
	// It holds exactly one entry, invalidated by an explicit reset.
	streamBucketCacheValid bool
	streamBucketCacheID    uint64
	streamBucketCacheProp  BucketPriority

	bytesScheduled int
	bytesUnackedAll  int
	nInFlightAll     int
	bytesUnackedRetx int
	nInFlightRetx    int
}

func newPacketSets(a *arena) *packetSets {
	ps := &packetSets{arena: a}
	ps.buffered[HighestPrio].prio = HighestPrio
	ps.buffered[OtherPrio].prio = OtherPrio
	return ps
}

// addScheduled appends h to the scheduled queue and updates
// sc_bytes_scheduled (§3 invariant 4).
func (ps *packetSets) addScheduled(h packetHandle) {
	p := ps.arena.get(h)
	if p == nil {
		return
	}
	p.flags |= flagScheduled
	ps.scheduled = append(ps.scheduled, h)
	ps.bytesScheduled += p.totalSize
}

// popScheduled removes and returns the head of the scheduled queue.
func (ps *packetSets) popScheduled() (packetHandle, bool) {
	if len(ps.scheduled) == 0 {
		return noHandle, false
	}
	h := ps.scheduled[0]
	ps.scheduled = ps.scheduled[1:]
	if p := ps.arena.get(h); p != nil {
		p.flags &^= flagScheduled
		ps.bytesScheduled -= p.totalSize
	}
	return h, true
}

// pushScheduledFront re-inserts h at the head of the scheduled queue,
// used by the "delayed one" path (§4.9).
func (ps *packetSets) pushScheduledFront(h packetHandle) {
	p := ps.arena.get(h)
	if p == nil {
		return
	}
	p.flags |= flagScheduled
	ps.scheduled = append([]packetHandle{h}, ps.scheduled...)
	ps.bytesScheduled += p.totalSize
}

// addUnacked inserts h into the unacked queue of its space, in packet
// number order, and updates the byte/count accumulators of §3 invariant 3.
func (ps *packetSets) addUnacked(spaces *[numSpaces]*spaceState, h packetHandle) {
	p := ps.arena.get(h)
	if p == nil {
		return
	}
	p.flags |= flagUnacked
	spaces[p.space].insertUnackedSorted(ps.arena, h)
	if p.flags.has(flagLossRecord) {
		return
	}
	ps.bytesUnackedAll += p.sentSize
	ps.nInFlightAll++
	if p.frameBits.Retransmittable() {
		ps.bytesUnackedRetx += p.sentSize
		ps.nInFlightRetx++
	}
}

// removeUnackedAccounting reverses addUnacked's byte/count bookkeeping for
// a packet leaving the unacked queue (whether acked or declared lost).
// It does not touch the queue slice itself — callers splice the handle out
// directly so they can do so while iterating.
func (ps *packetSets) removeUnackedAccounting(p *packet) {
	if p.flags.has(flagLossRecord) {
		return
	}
	ps.bytesUnackedAll -= p.sentSize
	ps.nInFlightAll--
	if p.frameBits.Retransmittable() {
		ps.bytesUnackedRetx -= p.sentSize
		ps.nInFlightRetx--
	}
}

// addLost moves h onto the lost queue, tagging it LOST (§4.4).
func (ps *packetSets) addLost(p *packet, h packetHandle) {
	p.flags |= flagLost
	ps.lost = append(ps.lost, h)
}

// popLost removes and returns the head of the lost queue (used by the
// reschedule engine, §4.6).
func (ps *packetSets) popLost() (packetHandle, bool) {
	if len(ps.lost) == 0 {
		return noHandle, false
	}
	h := ps.lost[0]
	ps.lost = ps.lost[1:]
	if p := ps.arena.get(h); p != nil {
		p.flags &^= flagLost
	}
	return h, true
}

// bucketFor resolves (and caches) which bucket a stream's packets belong
// in (§4.8): HIGHEST_PRIO when the caller passes highest, else OTHER_PRIO.
// The priority comparison against competing streams is left to the caller;
// this function does not consult the stream table. While a stream's entry
// is cached, a different highest value for that stream is ignored.
func (ps *packetSets) bucketFor(streamID uint64, highest bool) BucketPriority {
	if ps.streamBucketCacheValid && ps.streamBucketCacheID == streamID {
		return ps.streamBucketCacheProp
	}
	prio := OtherPrio
	if highest {
		prio = HighestPrio
	}
	ps.streamBucketCacheValid = true
	ps.streamBucketCacheID = streamID
	ps.streamBucketCacheProp = prio
	return prio
}

// invalidateStreamBucketCache drops the memoized bucket assignment,
// called on explicit stream reset (§3).
func (ps *packetSets) invalidateStreamBucketCache() {
	ps.streamBucketCacheValid = false
}

func (ps *packetSets) addBuffered(prio BucketPriority, h packetHandle) {
	b := &ps.buffered[prio]
	b.packets = append(b.packets, h)
	b.count++
}

func (ps *packetSets) firstBuffered(prio BucketPriority) (packetHandle, bool) {
	b := &ps.buffered[prio]
	if len(b.packets) == 0 {
		return noHandle, false
	}
	return b.packets[0], true
}

func (ps *packetSets) popBuffered(prio BucketPriority) (packetHandle, bool) {
	b := &ps.buffered[prio]
	if len(b.packets) == 0 {
		return noHandle, false
	}
	h := b.packets[0]
	b.packets = b.packets[1:]
	b.count--
	return h, true
}

func (ps *packetSets) removeBufferedAt(prio BucketPriority, idx int) packetHandle {
	b := &ps.buffered[prio]
	h := b.packets[idx]
	b.packets = append(b.packets[:idx], b.packets[idx+1:]...)
	b.count--
	return h
}
