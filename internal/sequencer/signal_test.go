package sequencer

import "testing"

func TestChannelSignalCoalescesPendingWakeups(t *testing.T) {
	sig := NewChannelSignal()
	sig.Signal()
	sig.Signal()
	sig.Signal()

	select {
	case <-sig.C():
	default:
		t.Fatal("expected a pending wake-up after Signal")
	}
	select {
	case <-sig.C():
		t.Fatal("expected repeated Signal calls to coalesce into a single pending wake-up")
	default:
	}
}

func TestChannelSignalIsReusableAfterDraining(t *testing.T) {
	sig := NewChannelSignal()
	sig.Signal()
	<-sig.C()

	sig.Signal()
	select {
	case <-sig.C():
	default:
		t.Fatal("expected Signal to be runnable again after the channel was drained")
	}
}

func TestSequencerDrivesAChannelSignalEndToEnd(t *testing.T) {
	s := newTestSequencer()
	sig := NewChannelSignal()
	s.RegisterConsumer(sig)
	<-sig.C() // the immediate registration signal

	s.TryWrite(Record{Payload: []byte("x")}, 0)
	select {
	case <-sig.C():
	default:
		t.Fatal("expected the accepted write to mark the channel runnable")
	}

	b := s.TryRead()
	if b == nil {
		t.Fatal("expected the signalled batch to be readable")
	}
}
