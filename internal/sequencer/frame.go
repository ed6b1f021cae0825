package sequencer

// HeaderLength and FrameAlignment are the per-entry header size and the
// alignment that CanWriteEvents assumes when estimating a batch's framed
// size. CanWriteEvents is only a size predicate: it does not serialize
// anything. The records package appender persists are encoded by
// eventlog.EncodeRecord (varint header length, header, payload, CRC), which
// uses neither constant.
const (
	// HeaderLength is the fixed byte count prepended to each framed entry.
	HeaderLength = 13
	// FrameAlignment is the byte alignment boundary for each framed entry
	// and for the overall batch.
	FrameAlignment = 8
)
