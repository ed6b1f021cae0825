package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xieyihong/zeebe/internal/appender"
	cfgpkg "github.com/xieyihong/zeebe/internal/config"
	"github.com/xieyihong/zeebe/internal/eventlog"
	"github.com/xieyihong/zeebe/internal/partition"
	"github.com/xieyihong/zeebe/internal/sequencer"
	pebblestore "github.com/xieyihong/zeebe/internal/storage/pebble"
	"github.com/xieyihong/zeebe/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
	Logger  log.Logger
}

// PartitionRuntime bundles the three collaborators that make up a single
// partition's write path: the log it's durable in, the sequencer that
// orders writes to it, and the appender draining that sequencer into the
// log.
type PartitionRuntime struct {
	Topic     string
	Partition uint32

	Log       *eventlog.Log
	Sequencer *sequencer.Sequencer
	Appender  *appender.Appender

	cancel context.CancelFunc
	done   chan struct{}
}

// Runtime wires storage, config, and partition runtimes for a single-node
// instance.
type Runtime struct {
	db     *pebblestore.DB
	config cfgpkg.Config
	logger log.Logger

	mu         sync.Mutex
	partitions map[string]*PartitionRuntime
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync})
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	rt := &Runtime{db: db, config: opts.Config, logger: logger.With(log.Component("runtime")), partitions: map[string]*PartitionRuntime{}}
	return rt, nil
}

// Close stops every open partition's appender (draining its sequencer
// first) and then closes the underlying storage.
func (r *Runtime) Close() error {
	r.mu.Lock()
	parts := make([]*PartitionRuntime, 0, len(r.partitions))
	for _, p := range r.partitions {
		parts = append(parts, p)
	}
	r.partitions = map[string]*PartitionRuntime{}
	r.mu.Unlock()

	for _, p := range parts {
		p.Sequencer.Close()
		p.Appender.Close()
		if p.cancel != nil {
			p.cancel()
		}
		<-p.done
	}

	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check against the storage engine.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// OpenPartition opens (or returns the already-open) partition runtime for
// topic/partition, wiring an eventlog.Log, a sequencer.Sequencer, an
// appender.Appender, and the partition registry record together. The
// appender's Run loop is started in a background goroutine.
func (r *Runtime) OpenPartition(topic string, part uint32, cfg cfgpkg.PartitionConfig) (*PartitionRuntime, error) {
	key := partitionKey(topic, part)

	r.mu.Lock()
	if existing, ok := r.partitions[key]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	meta, err := partition.Ensure(r.db, topic, part)
	if err != nil {
		return nil, fmt.Errorf("runtime: ensure partition registry: %w", err)
	}

	l, err := eventlog.OpenLog(r.db, "", topic, part)
	if err != nil {
		return nil, fmt.Errorf("runtime: open log: %w", err)
	}

	initial := meta.InitialPosition
	if cfg.InitialPosition > initial {
		initial = cfg.InitialPosition
	}
	l.Bootstrap(initial)
	if watermark := l.LastPosition(); watermark >= initial {
		initial = watermark + 1
	}

	seqLogger := r.logger.With(log.Str("topic", topic))
	seq := sequencer.New(sequencer.Options{
		PartitionID:     int(part),
		InitialPosition: initial,
		MaxFragmentSize: cfg.MaxFragmentSize,
		HeaderLength:    r.config.Frame.HeaderLength,
		FrameAlignment:  r.config.Frame.FrameAlignment,
		QueueCapacity:   cfg.QueueCapacity,
		Metrics:         sequencer.NewPrometheusMetrics(int(part)),
		Logger:          seqLogger,
	})

	app := appender.New(seq, l, seqLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.Run(ctx); err != nil {
			seqLogger.Error("appender exited with error", log.Err(err))
		}
	}()

	pr := &PartitionRuntime{
		Topic:     topic,
		Partition: part,
		Log:       l,
		Sequencer: seq,
		Appender:  app,
		cancel:    cancel,
		done:      done,
	}

	r.mu.Lock()
	r.partitions[key] = pr
	r.mu.Unlock()

	return pr, nil
}

// Partitions returns every already-open partition runtime.
func (r *Runtime) Partitions() []*PartitionRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PartitionRuntime, 0, len(r.partitions))
	for _, p := range r.partitions {
		out = append(out, p)
	}
	return out
}

// Partition returns the already-open runtime for topic/partition, if any.
func (r *Runtime) Partition(topic string, part uint32) (*PartitionRuntime, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.partitions[partitionKey(topic, part)]
	return p, ok
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

func partitionKey(topic string, part uint32) string {
	return fmt.Sprintf("%s/%d", topic, part)
}
