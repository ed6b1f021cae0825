package sequencer

// ConsumerSignal is a one-shot-coalescing wake-up primitive registered once
// by the single reader. Signal must be safe to call from any goroutine,
// idempotent under coalescing (multiple signals before the consumer wakes
// collapse into one pending wake-up), and non-blocking — it is invoked from
// inside the sequencer's critical section.
type ConsumerSignal interface {
	Signal()
}

// ChannelSignal is a ConsumerSignal backed by a 1-buffered channel. It is
// the idiomatic Go analogue of an actor-scheduler runnable flag: producers
// call Signal() to mark the channel runnable; the consumer selects on C()
// and drains with TryRead until empty before selecting again.
type ChannelSignal struct {
	ch chan struct{}
}

// NewChannelSignal creates a ChannelSignal ready for registration.
func NewChannelSignal() *ChannelSignal {
	return &ChannelSignal{ch: make(chan struct{}, 1)}
}

// Signal marks the channel runnable. Non-blocking and safe to call
// concurrently; a pending unread signal is not duplicated.
func (s *ChannelSignal) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel the consumer selects on.
func (s *ChannelSignal) C() <-chan struct{} {
	return s.ch
}
