// Package appender implements the single downstream consumer that drains a
// sequencer's queue and persists each batch to durable storage.
package appender

import (
	"context"
	"fmt"

	"github.com/xieyihong/zeebe/internal/eventlog"
	"github.com/xieyihong/zeebe/internal/sequencer"
	"github.com/xieyihong/zeebe/pkg/log"
)

// Appender is the sole consumer of a Sequencer's queue. It registers a
// ChannelSignal with the sequencer, drains batches with TryRead as they
// arrive, and writes them to the partition's eventlog at the positions the
// sequencer already assigned.
type Appender struct {
	seq    *sequencer.Sequencer
	log    *eventlog.Log
	logger log.Logger
	signal *sequencer.ChannelSignal

	closeCh chan struct{}
}

// New constructs an Appender bound to seq and log. It does not start
// running until Run is called.
func New(seq *sequencer.Sequencer, eventLog *eventlog.Log, logger log.Logger) *Appender {
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.ErrorLevel))
	}
	return &Appender{
		seq:     seq,
		log:     eventLog,
		logger:  logger.With(log.Component("appender")),
		signal:  sequencer.NewChannelSignal(),
		closeCh: make(chan struct{}),
	}
}

// Run registers the appender's signal with the sequencer and loops until
// ctx is cancelled or Close is called, draining and persisting every batch
// the sequencer hands it. It returns nil once the final drain after
// cancellation completes with an empty queue.
func (a *Appender) Run(ctx context.Context) error {
	a.seq.RegisterConsumer(a.signal)

	for {
		if err := a.drain(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			// Drain once more in case a batch was enqueued between the
			// last drain and cancellation observation.
			if err := a.drain(ctx); err != nil {
				return err
			}
			return nil
		case <-a.closeCh:
			if err := a.drain(ctx); err != nil {
				return err
			}
			return nil
		case <-a.signal.C():
		}
	}
}

// Close stops Run's loop after its next drain completes.
func (a *Appender) Close() {
	select {
	case <-a.closeCh:
	default:
		close(a.closeCh)
	}
}

func (a *Appender) drain(ctx context.Context) error {
	for {
		batch := a.seq.TryRead()
		if batch == nil {
			return nil
		}
		if err := a.write(ctx, batch); err != nil {
			a.logger.Error("failed to persist sequenced batch", log.Int64("first_position", batch.FirstPosition), log.Err(err))
			return err
		}
	}
}

func (a *Appender) write(ctx context.Context, batch *sequencer.SequencedBatch) error {
	recs := make([]eventlog.AppendRecord, len(batch.Entries))
	for i, e := range batch.Entries {
		rec, ok := e.(sequencer.Record)
		if !ok {
			return fmt.Errorf("appender: entry at position %d is not a sequencer.Record", batch.FirstPosition+int64(i))
		}
		recs[i] = eventlog.AppendRecord{Header: rec.Header, Payload: rec.Payload}
	}
	return a.log.AppendAt(ctx, batch.FirstPosition, recs)
}
