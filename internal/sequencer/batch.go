package sequencer

// AppendEntry is a caller-owned payload reference. The sequencer borrows it
// for the duration it sits in the queue and never copies or serializes it;
// Len must be usable by CanWriteEvents without touching the underlying
// payload.
type AppendEntry interface {
	// Len returns the framed length contribution of this entry, in bytes,
	// as recorded by the producer at construction time.
	Len() int
}

// SequencedBatch is an immutable triple binding a contiguous range of
// positions to the entries that occupy it. The i-th entry in Entries has
// position FirstPosition+i; callers must preserve that mapping end-to-end.
type SequencedBatch struct {
	FirstPosition  int64
	SourcePosition int64
	Entries        []AppendEntry
}

// Size returns the number of entries in the batch.
func (b *SequencedBatch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Entries)
}

// Record is the concrete AppendEntry producers construct: a header/payload
// pair destined for durable storage once sequenced. Header carries metadata
// (record type, source event key, etc.) the downstream appender needs to
// frame the entry; Payload is the opaque event body.
type Record struct {
	Header  []byte
	Payload []byte
}

// Len reports the framed length contribution used by CanWriteEvents.
func (r Record) Len() int { return len(r.Header) + len(r.Payload) }
