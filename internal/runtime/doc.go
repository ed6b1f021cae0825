// Package runtime wires storage, config, and per-partition sequencer/
// appender pairs into a single-node instance. It exposes Open/Close, basic
// health checks, and OpenPartition to bring up a partition's write path.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Bring up a partition's sequencer + appender
//	p, _ := rt.OpenPartition("orders", 0, cfg.Partitions[0])
//	pos := p.Sequencer.TryWrite(sequencer.Record{Payload: []byte("hello")}, -1)
package runtime
