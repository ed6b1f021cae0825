// Package sequencer implements the append sequencer at the head of a
// partitioned log stream.
//
// # Overview
//
// A Sequencer assigns a monotonically increasing position to every entry a
// producer submits, buffers accepted batches in a bounded FIFO queue, and
// hands them off to a single downstream consumer (see package appender).
// It is a multiple-producer/single-consumer component: many goroutines may
// call TryWrite/TryWriteBatch concurrently; exactly one goroutine is
// expected to call TryRead/Peek and to register a ConsumerSignal.
//
// The sequencer never copies or interprets entry payloads and never blocks a
// producer on queue capacity — a full queue is reported as a rejection
// (-1), not a blocking wait.
//
// Quick start
//
//	seq := sequencer.New(sequencer.Options{
//	    PartitionID:     1,
//	    InitialPosition: 2,
//	    MaxFragmentSize: 4 * 1024 * 1024,
//	})
//	pos := seq.TryWrite(entry, sourcePosition)
//	batch := seq.TryRead()
//	if batch != nil {
//	    // hand batch off to the downstream appender
//	}
//
// # Concurrency
//
// Position assignment and queue access all happen under a single mutex, so
// queue order always matches assigned-position order and Peek can read the
// head slot without racing a concurrent producer for it. The queue itself
// is a fixed-capacity ring buffer (not a channel: a channel has no
// non-destructive receive, which Peek needs).
package sequencer
