package eventlog

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	pebblestore "github.com/xieyihong/zeebe/internal/storage/pebble"
)

// AppendRecord represents a single appendable event.
type AppendRecord struct {
	Header  []byte
	Payload []byte
}

// Log provides append-only operations for a namespace/topic/partition.
type Log struct {
	db        *pebblestore.DB
	namespace string
	topic     string
	part      uint32

	mu      sync.Mutex
	lastSeq uint64
	hadMeta bool
}

// OpenLog initializes a Log and loads the last sequence from metadata (if any).
func OpenLog(db *pebblestore.DB, namespace, topic string, partition uint32) (*Log, error) {
	l := &Log{db: db, namespace: namespace, topic: topic, part: partition}
	// Load lastSeq from meta if present
	metaKey := KeyLogMeta(namespace, topic, partition)
	meta, err := db.Get(metaKey)
	if err == nil && len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
		l.hadMeta = true
	}
	return l, nil
}

// LastPosition returns the log's watermark: the highest position written so
// far, or initialPosition-1 after a Bootstrap on a log with no durable
// watermark, or 0 if neither has happened.
func (l *Log) LastPosition() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(l.lastSeq)
}

// Bootstrap seeds the log's watermark so that the next AppendAt call is
// expected at initialPosition. It is a no-op if the log already has a
// durable watermark (i.e. something has been appended before), so it is
// safe to call unconditionally right after OpenLog on every process start.
func (l *Log) Bootstrap(initialPosition int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hadMeta || initialPosition <= 0 {
		return
	}
	l.lastSeq = uint64(initialPosition - 1)
}

// Append appends the provided records as a single atomic batch. Returns assigned seq numbers.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	seqs := make([]uint64, len(recs))
	for i, r := range recs {
		l.lastSeq++
		seq := l.lastSeq
		val := EncodeRecord(r.Header, r.Payload)
		if err := b.Set(KeyLogEntry(l.namespace, l.topic, l.part, seq), val, nil); err != nil {
			return nil, err
		}
		seqs[i] = seq
	}

	// Update metadata with lastSeq
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(KeyLogMeta(l.namespace, l.topic, l.part), meta[:], nil); err != nil {
		return nil, err
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	l.hadMeta = true
	return seqs, nil
}

// AppendAt durably appends recs starting at firstPosition, the position the
// caller (the sequencer's appender) has already assigned to the first
// record. Unlike Append, the caller owns the numbering; AppendAt only
// validates that it is contiguous with what's already durable.
//
// If firstPosition has already been applied (firstPosition+len(recs)-1 <=
// LastPosition()), AppendAt is a no-op and returns nil: this makes retrying
// a batch after a crash between commit and ack safe.
func (l *Log) AppendAt(ctx context.Context, firstPosition int64, recs []AppendRecord) error {
	if len(recs) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lastOfBatch := firstPosition + int64(len(recs)) - 1
	if lastOfBatch <= int64(l.lastSeq) {
		return nil
	}
	if firstPosition != int64(l.lastSeq)+1 {
		return fmt.Errorf("eventlog: position gap: have lastSeq=%d, got firstPosition=%d", l.lastSeq, firstPosition)
	}

	b := l.db.NewBatch()
	defer b.Close()

	seq := uint64(firstPosition)
	for _, r := range recs {
		val := EncodeRecord(r.Header, r.Payload)
		if err := b.Set(KeyLogEntry(l.namespace, l.topic, l.part, seq), val, nil); err != nil {
			return err
		}
		seq++
	}
	l.lastSeq = seq - 1
	l.hadMeta = true

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(KeyLogMeta(l.namespace, l.topic, l.part), meta[:], nil); err != nil {
		return err
	}

	return l.db.CommitBatch(ctx, b)
}
