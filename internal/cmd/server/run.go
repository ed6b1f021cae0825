package serverrun

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/xieyihong/zeebe/internal/config"
	"github.com/xieyihong/zeebe/internal/runtime"
	grpcserver "github.com/xieyihong/zeebe/internal/server/grpc"
	httpserver "github.com/xieyihong/zeebe/internal/server/http"
	pebblestore "github.com/xieyihong/zeebe/internal/storage/pebble"
	logpkg "github.com/xieyihong/zeebe/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; defaults to os.Getenv
var getenv = func(key string) string { return os.Getenv(key) }

// Options configures Run.
type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run opens the runtime, brings up every partition named in Config, starts
// gRPC health and HTTP admin servers, and blocks until ctx is cancelled. On
// cancellation it closes the servers, then the runtime — which drains every
// partition's appender before closing the database.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  getenvDefault("FLO_LOG_LEVEL", "info"),
		Format: getenvDefault("FLO_LOG_FORMAT", "text"),
	})
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: opts.Fsync, Config: opts.Config, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, p := range opts.Config.Partitions {
		if _, err := rt.OpenPartition(p.Topic, p.Partition, p); err != nil {
			return err
		}
		procLogger.Info("partition opened", logpkg.Str("topic", p.Topic), logpkg.Int("partition", int(p.Partition)))
	}

	procLogger.Info("starting sequencer daemon",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Int("partitions", len(opts.Config.Partitions)),
	)

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, opts.GRPCAddr); err != nil && sctx.Err() == nil {
			log.Printf("grpc error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			log.Printf("http error: %v", err)
		}
	}()

	<-sctx.Done()
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	return nil
}
