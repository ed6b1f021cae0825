package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	cfgpkg "github.com/xieyihong/zeebe/internal/config"
	"github.com/xieyihong/zeebe/internal/runtime"
	"github.com/xieyihong/zeebe/internal/sequencer"
	"github.com/xieyihong/zeebe/pkg/id"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the admin and producer-facing HTTP surface for the sequencer
// daemon: health checks, appends, debug peeks, and Prometheus metrics.
type Server struct {
	rt  *runtime.Runtime
	srv *http.Server
	lis net.Listener
	ids *id.Generator
}

// New builds a Server wired to rt's partitions.
func New(rt *runtime.Runtime) *Server {
	mux := http.NewServeMux()
	s := &Server{rt: rt, srv: &http.Server{Handler: cors(mux)}, ids: id.NewGenerator()}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/partitions/", s.handlePartitions)
	mux.Handle("/metrics", promhttp.Handler())
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close closes the listener without a graceful drain; prefer cancelling
// the context passed to ListenAndServe for a clean shutdown.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handlePartitions dispatches /v1/partitions/{topic}/{partition}/{action}
// requests. net/http's ServeMux in this Go version has no path-parameter
// support, so the remaining segments are parsed by hand.
func (s *Server) handlePartitions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/partitions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "expected /v1/partitions/{topic}/{partition}/{action}", http.StatusNotFound)
		return
	}
	topic := parts[0]
	partitionNum, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		http.Error(w, "invalid partition number", http.StatusBadRequest)
		return
	}
	partition := uint32(partitionNum)
	action := parts[2]

	pr, ok := s.rt.Partition(topic, partition)
	if !ok {
		pcfg, found := s.rt.Config().Find(topic, partition)
		if !found {
			pcfg = cfgpkg.PartitionConfig{Topic: topic, Partition: partition, InitialPosition: 1, QueueCapacity: sequencer.DefaultQueueCapacity, MaxFragmentSize: 4 << 20}
		}
		pr, err = s.rt.OpenPartition(topic, partition, pcfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	switch action {
	case "append":
		s.handleAppend(w, r, pr)
	case "peek":
		s.handlePeek(w, r, pr)
	case "close":
		s.handleClose(w, r, pr)
	default:
		http.NotFound(w, r)
	}
}

type appendEntryReq struct {
	Header         []byte `json:"header"`
	Payload        []byte `json:"payload"`
	SourcePosition int64  `json:"sourcePosition"`
}

type appendResp struct {
	FirstPosition int64  `json:"firstPosition"`
	LastPosition  int64  `json:"lastPosition"`
	CorrelationID string `json:"correlationId"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request, pr *runtime.PartitionRuntime) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var reqs []appendEntryReq
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if len(reqs) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	entries := make([]sequencer.AppendEntry, len(reqs))
	totalSize := 0
	for i, e := range reqs {
		entries[i] = sequencer.Record{Header: e.Header, Payload: e.Payload}
		totalSize += len(e.Header) + len(e.Payload)
	}
	sourcePosition := reqs[0].SourcePosition

	if !pr.Sequencer.CanWriteEvents(len(entries), totalSize) {
		http.Error(w, `{"rejected":"too_large"}`, http.StatusRequestEntityTooLarge)
		return
	}

	last := pr.Sequencer.TryWriteBatch(entries, sourcePosition)
	if last < 0 {
		reason := "queue_full"
		if pr.Sequencer.IsClosed() {
			reason = "closed"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"rejected": reason})
		return
	}

	first := last - int64(len(entries)) + 1
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(appendResp{FirstPosition: first, LastPosition: last, CorrelationID: s.ids.Next().String()})
}

type peekResp struct {
	FirstPosition  int64 `json:"firstPosition"`
	SourcePosition int64 `json:"sourcePosition"`
	Size           int   `json:"size"`
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request, pr *runtime.PartitionRuntime) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	b := pr.Sequencer.Peek()
	w.Header().Set("Content-Type", "application/json")
	if b == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = json.NewEncoder(w).Encode(peekResp{FirstPosition: b.FirstPosition, SourcePosition: b.SourcePosition, Size: b.Size()})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request, pr *runtime.PartitionRuntime) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pr.Sequencer.Close()
	w.WriteHeader(http.StatusNoContent)
}
