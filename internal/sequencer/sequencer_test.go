package sequencer

import (
	"reflect"
	"sync"
	"testing"
)

func newTestSequencer() *Sequencer {
	return New(Options{PartitionID: 1, InitialPosition: 1, MaxFragmentSize: 4096})
}

func TestTryWriteAssignsSequentialPositions(t *testing.T) {
	s := newTestSequencer()
	for i, want := range []int64{1, 2, 3} {
		got := s.TryWrite(Record{Payload: []byte("p")}, int64(i))
		if got != want {
			t.Fatalf("entry %d: got position %d, want %d", i, got, want)
		}
	}
	if got := s.Position(); got != 4 {
		t.Fatalf("Position() = %d, want 4", got)
	}
}

func TestTryWriteBatchAssignsContiguousRange(t *testing.T) {
	s := newTestSequencer()
	entries := []AppendEntry{
		Record{Payload: []byte("a")},
		Record{Payload: []byte("b")},
		Record{Payload: []byte("c")},
	}
	last := s.TryWriteBatch(entries, 0)
	if last != 3 {
		t.Fatalf("TryWriteBatch last = %d, want 3", last)
	}

	batch := s.TryRead()
	if batch == nil {
		t.Fatal("expected a buffered batch")
	}
	if batch.FirstPosition != 1 {
		t.Fatalf("FirstPosition = %d, want 1", batch.FirstPosition)
	}
	for i, e := range batch.Entries {
		want := entries[i]
		if !reflect.DeepEqual(e, want) {
			t.Fatalf("entry %d did not round-trip through the batch", i)
		}
	}
}

func TestTryWriteBatchEmptyIsNoop(t *testing.T) {
	s := newTestSequencer()
	if got := s.TryWriteBatch(nil, 0); got != 0 {
		t.Fatalf("TryWriteBatch(nil) = %d, want 0", got)
	}
	if s.Position() != 1 {
		t.Fatalf("empty batch must not advance the position counter")
	}
	if b := s.TryRead(); b != nil {
		t.Fatal("empty batch must not enqueue anything")
	}
}

func TestTryWriteRejectsWhenQueueFullAndPreservesPosition(t *testing.T) {
	s := New(Options{InitialPosition: 1, MaxFragmentSize: 4096, QueueCapacity: 2})
	s.TryWrite(Record{Payload: []byte("a")}, 0)
	s.TryWrite(Record{Payload: []byte("b")}, 0)

	before := s.Position()
	got := s.TryWrite(Record{Payload: []byte("c")}, 0)
	if got != -1 {
		t.Fatalf("expected rejection, got %d", got)
	}
	if s.Position() != before {
		t.Fatalf("rejected write must not advance the position counter: before=%d after=%d", before, s.Position())
	}

	// draining one slot makes room again, and the next assigned position
	// continues from where it left off.
	s.TryRead()
	got = s.TryWrite(Record{Payload: []byte("d")}, 0)
	if got != before {
		t.Fatalf("next accepted write = %d, want %d", got, before)
	}
}

func TestTryWriteBatchRejectsWhenQueueFullAndPreservesPosition(t *testing.T) {
	s := New(Options{InitialPosition: 1, MaxFragmentSize: 4096, QueueCapacity: 1})
	s.TryWriteBatch([]AppendEntry{Record{Payload: []byte("a")}}, 0)

	before := s.Position()
	got := s.TryWriteBatch([]AppendEntry{Record{Payload: []byte("b")}, Record{Payload: []byte("c")}}, 0)
	if got != -1 {
		t.Fatalf("expected rejection, got %d", got)
	}
	if s.Position() != before {
		t.Fatalf("rejected batch must not advance the position counter")
	}
}

func TestCanWriteEventsUsesConfiguredFrameConstantsNotPackageDefaults(t *testing.T) {
	// With the default frame constants (13/8), eventCount*(13+8)+8 = 92
	// for a 4-entry batch of empty payloads, which exceeds a budget of 90.
	defaultSeq := New(Options{InitialPosition: 1, MaxFragmentSize: 90})
	if defaultSeq.CanWriteEvents(4, 0) {
		t.Fatal("expected the default frame constants to reject this batch")
	}

	// A smaller configured frame overhead (1/1) brings the same batch well
	// under budget: 4*(1+1)+1 = 9.
	tightSeq := New(Options{InitialPosition: 1, MaxFragmentSize: 90, HeaderLength: 1, FrameAlignment: 1})
	if !tightSeq.CanWriteEvents(4, 0) {
		t.Fatal("expected configured HeaderLength/FrameAlignment to change CanWriteEvents' answer")
	}
}

func TestCanWriteEventsIsPureAndDoesNotConsultQueue(t *testing.T) {
	s := New(Options{InitialPosition: 1, MaxFragmentSize: 64, QueueCapacity: 1})
	if !s.CanWriteEvents(1, 10) {
		t.Fatal("expected a small single-entry batch to fit")
	}
	if s.CanWriteEvents(1, 1<<20) {
		t.Fatal("expected an oversize batch to be rejected")
	}

	// Filling the queue must not change CanWriteEvents' answer: it is a
	// pure function of the requested shape, not of current occupancy.
	before := s.CanWriteEvents(1, 10)
	s.TryWrite(Record{Payload: []byte("x")}, 0)
	s.TryWrite(Record{Payload: []byte("y")}, 0) // queue already full at capacity 1, rejected
	if got := s.CanWriteEvents(1, 10); got != before {
		t.Fatalf("CanWriteEvents changed after queue activity: before=%v after=%v", before, got)
	}
	if s.Position() != 2 {
		t.Fatalf("exactly one write should have been accepted, position = %d", s.Position())
	}
}

func TestPeekIsAtomicWithConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 200
	s := New(Options{InitialPosition: 1, MaxFragmentSize: 4096, QueueCapacity: 4})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for s.TryWrite(Record{Payload: []byte("x")}, 0) == -1 {
					// queue momentarily full; retry once the consumer below
					// has drained a slot.
				}
			}
		}()
	}

	producersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(producersDone)
	}()

	var drained int
	for {
		peeked := s.Peek()
		read := s.TryRead()
		// Peek and TryRead are two separate critical sections, so a producer
		// may enqueue between an empty Peek and the TryRead after it. Only a
		// batch that Peek saw and TryRead then could not return is a fault:
		// this goroutine is the only consumer.
		if peeked != nil && read == nil {
			t.Fatalf("Peek and the immediately following TryRead disagreed on emptiness: peek=%v read=%v", peeked, read)
		}
		if peeked != nil {
			if peeked.FirstPosition != read.FirstPosition {
				t.Fatalf("Peek returned position %d but the immediately following TryRead returned %d; a concurrent producer raced the freed slot", peeked.FirstPosition, read.FirstPosition)
			}
		}
		if read != nil {
			drained++
			continue
		}
		select {
		case <-producersDone:
			if s.Peek() == nil {
				goal := producers * perProducer
				if drained != goal {
					t.Fatalf("drained %d batches, want %d — a batch was lost between Peek and TryRead", drained, goal)
				}
				return
			}
		default:
		}
	}
}

func TestCloseRejectsSubsequentWrites(t *testing.T) {
	s := newTestSequencer()
	s.Close()
	if !s.IsClosed() {
		t.Fatal("IsClosed() should report true after Close")
	}
	if got := s.TryWrite(Record{Payload: []byte("x")}, 0); got != -1 {
		t.Fatalf("write after close = %d, want -1", got)
	}
	if got := s.TryWriteBatch([]AppendEntry{Record{Payload: []byte("x")}}, 0); got != -1 {
		t.Fatalf("batch write after close = %d, want -1", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestSequencer()
	s.Close()
	s.Close()
	if !s.IsClosed() {
		t.Fatal("expected closed after repeated Close calls")
	}
}

func TestCloseDoesNotDiscardBufferedBatches(t *testing.T) {
	s := newTestSequencer()
	s.TryWrite(Record{Payload: []byte("x")}, 0)
	s.Close()
	b := s.TryRead()
	if b == nil {
		t.Fatal("expected the already-buffered batch to remain readable after Close")
	}
}

func TestTryReadIsFIFO(t *testing.T) {
	s := newTestSequencer()
	s.TryWrite(Record{Payload: []byte("a")}, 0)
	s.TryWrite(Record{Payload: []byte("b")}, 0)
	s.TryWrite(Record{Payload: []byte("c")}, 0)

	var got []int64
	for {
		b := s.TryRead()
		if b == nil {
			break
		}
		got = append(got, b.FirstPosition)
	}
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTryReadOnEmptyQueueReturnsNil(t *testing.T) {
	s := newTestSequencer()
	if b := s.TryRead(); b != nil {
		t.Fatal("expected nil on an empty queue")
	}
}

func TestPeekDoesNotRemoveTheBatch(t *testing.T) {
	s := newTestSequencer()
	s.TryWrite(Record{Payload: []byte("a")}, 0)

	first := s.Peek()
	second := s.Peek()
	if first == nil || second == nil {
		t.Fatal("expected Peek to return the buffered batch both times")
	}
	if first.FirstPosition != second.FirstPosition {
		t.Fatalf("repeated Peek returned different batches: %d vs %d", first.FirstPosition, second.FirstPosition)
	}

	read := s.TryRead()
	if read == nil || read.FirstPosition != first.FirstPosition {
		t.Fatal("the peeked batch must still be consumable via TryRead")
	}
	if b := s.TryRead(); b != nil {
		t.Fatal("queue should be empty after the single batch was read")
	}
}

func TestPeekOnEmptyQueueReturnsNil(t *testing.T) {
	s := newTestSequencer()
	if b := s.Peek(); b != nil {
		t.Fatal("expected nil Peek on an empty queue")
	}
}

type fakeSignal struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSignal) Signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *fakeSignal) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRegisterConsumerSignalsImmediately(t *testing.T) {
	s := newTestSequencer()
	sig := &fakeSignal{}
	s.RegisterConsumer(sig)
	if sig.count() != 1 {
		t.Fatalf("expected RegisterConsumer to fire the signal once immediately, got %d calls", sig.count())
	}
}

func TestAcceptedWriteSignalsTheRegisteredConsumer(t *testing.T) {
	s := newTestSequencer()
	sig := &fakeSignal{}
	s.RegisterConsumer(sig)

	before := sig.count()
	s.TryWrite(Record{Payload: []byte("x")}, 0)
	if sig.count() <= before {
		t.Fatal("expected an accepted write to signal the consumer")
	}
}

func TestConcurrentProducersAssignUniqueGaplessPositions(t *testing.T) {
	const producers = 16
	const perProducer = 50
	s := New(Options{InitialPosition: 1, MaxFragmentSize: 4096, QueueCapacity: producers * perProducer})

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int64]bool)

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				pos := s.TryWrite(Record{Payload: []byte("x")}, 0)
				if pos == -1 {
					t.Error("unexpected rejection under a queue sized to fit every write")
					return
				}
				mu.Lock()
				if seen[pos] {
					t.Errorf("position %d assigned more than once", pos)
				}
				seen[pos] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total := producers * perProducer
	if len(seen) != total {
		t.Fatalf("got %d distinct positions, want %d", len(seen), total)
	}
	for pos := int64(1); pos <= int64(total); pos++ {
		if !seen[pos] {
			t.Fatalf("gap in assigned positions at %d", pos)
		}
	}
	if s.Position() != int64(total+1) {
		t.Fatalf("final Position() = %d, want %d", s.Position(), total+1)
	}
}
