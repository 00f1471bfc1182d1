// Package queue contains a bounded packet queue with keyframe-aware
// eviction ("drop-oldest-non-key" by default). rtmp.PublishSink uses it to
// decouple SourceData from the network write, so a slow connection drops
// packets instead of blocking its upstream; streamer.Base's own fanout is
// synchronous and does not queue. It plays the role the teacher's
// asyncwriter.Writer plays for a single consumer, with keyframe-aware
// eviction instead of plain drop-newest.
package queue

import (
	"sync"

	"github.com/vireostream/corestream/internal/counterdumper"
	"github.com/vireostream/corestream/internal/logger"
)

// OverflowPolicy selects what happens when Push is called on a full queue.
type OverflowPolicy int

// OverflowPolicy values.
const (
	// DropOldestNonKey evicts the oldest non-keyframe entry to make room;
	// if every entry is a keyframe, the incoming packet is dropped instead.
	DropOldestNonKey OverflowPolicy = iota
	// DropIncoming always discards the packet being pushed.
	DropIncoming
)

// Item is anything a Bounded queue can carry; callers supply an IsKeyframe
// accessor since the queue is not specific to *pkt.Packet.
type Item interface {
	IsKey() bool
}

// Bounded is a fixed-capacity FIFO queue of Item with keyframe-aware
// overflow handling, safe for one producer and one consumer.
type Bounded struct {
	Policy OverflowPolicy

	mutex     sync.Mutex
	cond      *sync.Cond
	items     []Item
	capacity  int
	closed    bool
	dropped   uint64
	discarded *counterdumper.CounterDumper
}

// NewBounded allocates a Bounded queue of the given capacity. When
// logWriter is non-nil, drop counts are reported to it once a second via
// a counterdumper.CounterDumper, the same "reader is too slow, discarding
// N frames" idiom the teacher's stream.Reader uses for its own ring
// buffer; pass nil to opt out (e.g. in tests).
func NewBounded(capacity int, policy OverflowPolicy, logWriter logger.Writer) *Bounded {
	q := &Bounded{
		Policy:   policy,
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mutex)

	if logWriter != nil {
		q.discarded = &counterdumper.CounterDumper{
			OnReport: func(v uint64) {
				logWriter.Log(logger.Warn, "sinker queue is too slow, discarding %d packet(s)", v)
			},
		}
		q.discarded.Start()
	}

	return q
}

// Push appends an item, evicting per Policy if the queue is full.
// Returns false if the item was dropped.
func (q *Bounded) Push(it Item) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.closed {
		return false
	}

	if len(q.items) >= q.capacity {
		if !q.evictLocked(it) {
			q.dropped++
			if q.discarded != nil {
				q.discarded.Increase()
			}
			return false
		}
	}

	q.items = append(q.items, it)
	q.cond.Signal()
	return true
}

// evictLocked makes room for one more item, or reports it cannot.
func (q *Bounded) evictLocked(incoming Item) bool {
	switch q.Policy {
	case DropIncoming:
		return false

	default: // DropOldestNonKey
		for i, existing := range q.items {
			if !existing.IsKey() {
				q.items = append(q.items[:i], q.items[i+1:]...)
				return true
			}
		}
		// every queued item is a keyframe: keep them, drop the new one,
		// unless the new one is itself non-key in which case it is the
		// one being dropped anyway.
		_ = incoming
		return false
	}
}

// Pull removes and returns the oldest item, blocking until one is
// available or the queue is closed (in which case ok is false).
func (q *Bounded) Pull() (Item, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return nil, false
	}

	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Dropped returns the number of items dropped since creation.
func (q *Bounded) Dropped() uint64 {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.dropped
}

// Close unblocks any pending Pull and prevents further Push.
func (q *Bounded) Close() {
	q.mutex.Lock()
	q.closed = true
	q.cond.Broadcast()
	discarded := q.discarded
	q.mutex.Unlock()

	if discarded != nil {
		discarded.Stop()
	}
}
