package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	serverrun "github.com/xieyihong/zeebe/internal/cmd/server"
	cfgpkg "github.com/xieyihong/zeebe/internal/config"
	pebblestore "github.com/xieyihong/zeebe/internal/storage/pebble"
	logpkg "github.com/xieyihong/zeebe/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	level := os.Getenv("FLO_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "sequencerd",
		Short: "Sequencer daemon CLI",
		Long:  "sequencerd runs the append sequencer for one or more partitions and exposes gRPC health and HTTP admin endpoints.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the sequencer daemon (gRPC health and HTTP admin)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			configPath, _ := cmd.Flags().GetString("config")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				GRPCAddr:      grpcAddr,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("grpc", ":50051", "gRPC listen address")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	serverStartCmd.Flags().String("config", os.Getenv("FLO_CONFIG"), "Path to a JSON or YAML config file (defaults to a single default/0 partition)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	partitionCmd := &cobra.Command{Use: "partition", Short: "Partition operations"}
	partitionWriteCmd := &cobra.Command{
		Use:   "write",
		Short: "Append a single entry to a running sequencer's partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			partition, _ := cmd.Flags().GetUint32("partition")
			payload, _ := cmd.Flags().GetString("payload")

			body, err := json.Marshal([]map[string]any{{"payload": []byte(payload), "sourcePosition": -1}})
			if err != nil {
				return err
			}
			url := fmt.Sprintf("%s/v1/partitions/%s/%d/append", apiURL(), topic, partition)
			resp, err := http.Post(url, "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			out, _ := io.ReadAll(resp.Body)
			fmt.Println("status:", resp.Status)
			fmt.Println(string(out))
			return nil
		},
	}
	partitionWriteCmd.Flags().String("topic", "default", "Topic name")
	partitionWriteCmd.Flags().Uint32("partition", 0, "Partition number")
	partitionWriteCmd.Flags().String("payload", "", "Payload to append")
	partitionCmd.AddCommand(partitionWriteCmd)
	rootCmd.AddCommand(partitionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("FLO_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
