package sequencer

import (
	"sync"
	"sync/atomic"

	"github.com/xieyihong/zeebe/pkg/log"
)

// DefaultQueueCapacity is the fixed queue capacity spec.md mandates for the
// batch queue: 128 buffered batches.
const DefaultQueueCapacity = 128

// Options configures a new Sequencer.
type Options struct {
	// PartitionID tags metrics only; it has no effect on sequencing.
	PartitionID int
	// InitialPosition seeds the position counter.
	InitialPosition int64
	// MaxFragmentSize is the upper bound used by CanWriteEvents.
	MaxFragmentSize int
	// HeaderLength overrides the package-level HeaderLength constant used by
	// CanWriteEvents' framed-size estimate. Zero means the default.
	HeaderLength int
	// FrameAlignment overrides the package-level FrameAlignment constant
	// used by CanWriteEvents' framed-size estimate. Zero means the default.
	FrameAlignment int
	// QueueCapacity overrides DefaultQueueCapacity. Zero means default.
	QueueCapacity int
	// Metrics receives queue-depth and batch-size observations. Defaults
	// to NoopMetrics.
	Metrics Metrics
	// Logger receives a warning-level log the first time the sequencer
	// rejects a write because it is closed; later closed-rejections, from
	// TryWrite or TryWriteBatch alike, are not logged. Defaults to an
	// error-level logger, which drops the sequencer's own debug, info and
	// warning messages.
	Logger log.Logger
}

// batchQueue is a fixed-capacity FIFO ring buffer of *SequencedBatch. It
// exists so Peek can read the head slot without removing it: a bare Go
// channel has no non-destructive receive, and a receive-then-best-effort-
// resend around a channel races every concurrent producer for the slot it
// just freed. Every method here must be called with the owning Sequencer's
// mu held; the type does no locking of its own.
type batchQueue struct {
	buf   []*SequencedBatch
	head  int
	count int
}

func newBatchQueue(capacity int) *batchQueue {
	return &batchQueue{buf: make([]*SequencedBatch, capacity)}
}

func (q *batchQueue) len() int   { return q.count }
func (q *batchQueue) full() bool { return q.count == len(q.buf) }

func (q *batchQueue) push(b *SequencedBatch) {
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = b
	q.count++
}

func (q *batchQueue) pop() *SequencedBatch {
	if q.count == 0 {
		return nil
	}
	b := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return b
}

// peek returns the head slot without removing it.
func (q *batchQueue) peek() *SequencedBatch {
	if q.count == 0 {
		return nil
	}
	return q.buf[q.head]
}

// Sequencer is a multiple-producer, single-consumer queue of AppendEntry.
// It buffers a fixed amount of SequencedBatch and rejects writes when the
// queue is full. See package doc for the full contract.
type Sequencer struct {
	partitionID     int
	maxFragmentSize int
	headerLength    int
	frameAlignment  int
	logger          log.Logger

	position int64 // read/written only under mu, except relaxed diagnostics reads
	closed   atomic.Bool

	mu       sync.Mutex
	queue    *batchQueue
	consumer atomic.Pointer[ConsumerSignal]
	metrics  Metrics

	warnedClosed atomic.Bool
}

// New constructs a Sequencer. partitionId tags metrics only; initialPosition
// seeds the position counter; maxFragmentSize bounds CanWriteEvents.
func New(opts Options) *Sequencer {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	headerLength := opts.HeaderLength
	if headerLength <= 0 {
		headerLength = HeaderLength
	}
	frameAlignment := opts.FrameAlignment
	if frameAlignment <= 0 {
		frameAlignment = FrameAlignment
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.ErrorLevel))
	}
	s := &Sequencer{
		partitionID:     opts.PartitionID,
		maxFragmentSize: opts.MaxFragmentSize,
		headerLength:    headerLength,
		frameAlignment:  frameAlignment,
		logger:          logger.With(log.Component("sequencer")),
		position:        opts.InitialPosition,
		queue:           newBatchQueue(capacity),
		metrics:         metrics,
	}
	s.logger.Debug("starting new sequencer", log.Int64("initial_position", opts.InitialPosition))
	return s
}

// CanWriteEvents reports whether a batch of eventCount entries totaling
// batchSize payload bytes would fit within maxFragmentSize once framed. It
// is a pure predicate: it does not consult queue occupancy and never
// mutates state.
func (s *Sequencer) CanWriteEvents(eventCount, batchSize int) bool {
	framed := batchSize + eventCount*(s.headerLength+s.frameAlignment) + s.frameAlignment
	return framed <= s.maxFragmentSize
}

// TryWrite appends a single entry. Returns the assigned position on
// success, or -1 if the write was rejected (sequencer closed, or queue
// full).
func (s *Sequencer) TryWrite(entry AppendEntry, sourcePosition int64) int64 {
	if s.closed.Load() {
		s.logClosedRejection()
		return -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.full() {
		s.logger.Debug("rejecting write, sequencer queue is full")
		s.metrics.ObserveRejection("queue_full")
		s.metrics.SetQueueSize(s.queue.len())
		return -1
	}

	current := atomic.LoadInt64(&s.position)
	batch := &SequencedBatch{FirstPosition: current, SourcePosition: sourcePosition, Entries: []AppendEntry{entry}}
	s.queue.push(batch)
	s.signalConsumer()
	s.metrics.ObserveBatchSize(1)
	atomic.StoreInt64(&s.position, current+1)
	s.metrics.SetQueueSize(s.queue.len())
	return current
}

// TryWriteBatch appends a batch of entries, assigned a contiguous range of
// positions. Returns -1 if the write was rejected, 0 if entries was empty,
// or the highest assigned position (firstPosition+len(entries)-1) on
// success.
func (s *Sequencer) TryWriteBatch(entries []AppendEntry, sourcePosition int64) int64 {
	if s.closed.Load() {
		s.logClosedRejection()
		return -1
	}

	n := len(entries)
	if n == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.full() {
		s.logger.Debug("rejecting batch write, sequencer queue is full")
		s.metrics.ObserveRejection("queue_full")
		// The reference implementation signals the consumer even on
		// queue-full rejection, as a drain hint; this is not required by
		// the contract but is harmless since the signal only wakes the
		// consumer to try TryRead again.
		s.signalConsumer()
		s.metrics.SetQueueSize(s.queue.len())
		return -1
	}

	first := atomic.LoadInt64(&s.position)
	// Copy into an owned slice: the caller-supplied slice must not be
	// mutated after a successful write, but defend against a caller that
	// reuses its backing array across calls anyway.
	owned := make([]AppendEntry, n)
	copy(owned, entries)
	batch := &SequencedBatch{FirstPosition: first, SourcePosition: sourcePosition, Entries: owned}

	s.queue.push(batch)
	s.signalConsumer()
	s.metrics.ObserveBatchSize(n)
	next := first + int64(n)
	atomic.StoreInt64(&s.position, next)
	s.metrics.SetQueueSize(s.queue.len())
	return next - 1
}

// TryRead returns the oldest buffered batch, or nil if the queue is empty.
// Permitted after Close.
func (s *Sequencer) TryRead() *SequencedBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.queue.pop()
	if b != nil {
		s.metrics.SetQueueSize(s.queue.len())
	}
	return b
}

// Peek returns the oldest buffered batch without removing it, or nil if the
// queue is empty. Permitted after Close.
//
// Peek reads the queue's head slot under the same mutex TryWrite,
// TryWriteBatch, and TryRead hold while mutating it, so it is atomic with
// respect to concurrent producers and the consumer — unlike a channel-based
// queue, which has no non-destructive receive and would otherwise let a
// producer race Peek for the slot it momentarily frees.
func (s *Sequencer) Peek() *SequencedBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queue.peek()
}

// Close disables further writes. Idempotent. Already-enqueued batches
// remain readable until drained. Close is intentionally not atomic with
// in-flight writes: a producer already inside the critical section when
// Close is called may still succeed.
func (s *Sequencer) Close() {
	s.logger.Info("closing sequencer for writing")
	s.closed.Store(true)
}

// IsClosed reports whether Close has been called.
func (s *Sequencer) IsClosed() bool {
	return s.closed.Load()
}

// RegisterConsumer stores signal as the sequencer's single consumer
// notification target and fires it once immediately, covering the case
// where batches are already buffered before registration.
func (s *Sequencer) RegisterConsumer(signal ConsumerSignal) {
	s.consumer.Store(&signal)
	signal.Signal()
}

// Position returns the next position that would be assigned to an accepted
// write, read with relaxed semantics (no lock) for diagnostics. The value
// may be slightly stale relative to a concurrent producer.
func (s *Sequencer) Position() int64 {
	return atomic.LoadInt64(&s.position)
}

func (s *Sequencer) signalConsumer() {
	if c := s.consumer.Load(); c != nil {
		(*c).Signal()
	}
}

func (s *Sequencer) logClosedRejection() {
	if s.warnedClosed.CompareAndSwap(false, true) {
		s.logger.Warn("rejecting write, sequencer is closed")
	}
	s.metrics.ObserveRejection("closed")
}
