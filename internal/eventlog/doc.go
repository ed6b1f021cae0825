// Package eventlog implements the durable, append-only partition log that
// backs the sequencer's appender.
//
// # Overview
//
// The log is partitioned by namespace/topic/partition and persisted in Pebble.
// Keys are lexicographically ordered for efficient range scans:
//   - ns/{ns}/log/{topic}/{part_be4}/m           (partition metadata: lastSeq)
//   - ns/{ns}/log/{topic}/{part_be4}/e/{seq_be8} (entries)
//
// Records are stored as: varint headerLen | header | payload | crc32c(header|payload).
//
// API surface (internal)
//
//	l, _ := OpenLog(db, ns, topic, part)
//	// Append a batch atomically; returns assigned seq numbers
//	seqs, _ := l.Append(ctx, []AppendRecord{{Header: h, Payload: p}})
//
//	// Or, when positions are assigned upstream by a sequencer, write at an
//	// externally-owned position instead of self-numbering. Retrying the
//	// same firstPosition is a no-op.
//	l.Bootstrap(initialPosition)
//	_ = l.AppendAt(ctx, firstPosition, []AppendRecord{{Header: h, Payload: p}})
package eventlog
