package config

import (
	"os"
	"strconv"
)

// FromEnv overlays FLO_* environment variables onto cfg. Only process-wide
// knobs are supported this way; per-partition overrides belong in the
// config file's Partitions list.
func FromEnv(cfg *Config) {
	if v := os.Getenv("FLO_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FLO_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("FLO_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("FLO_FRAME_HEADER_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Frame.HeaderLength = n
		}
	}
	if v := os.Getenv("FLO_FRAME_ALIGNMENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Frame.FrameAlignment = n
		}
	}
}
