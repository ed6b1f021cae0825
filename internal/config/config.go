package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string            `json:"dataDir" yaml:"dataDir"`
	Fsync           string            `json:"fsync" yaml:"fsync"` // always|interval|never
	FsyncIntervalMs int               `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	Partitions      []PartitionConfig `json:"partitions" yaml:"partitions"`
	Frame           FrameConfig       `json:"frame" yaml:"frame"`
}

// PartitionConfig describes a single partition this process owns a
// sequencer/appender pair for.
type PartitionConfig struct {
	Topic           string `json:"topic" yaml:"topic"`
	Partition       uint32 `json:"partition" yaml:"partition"`
	InitialPosition int64  `json:"initialPosition" yaml:"initialPosition"`
	QueueCapacity   int    `json:"queueCapacity" yaml:"queueCapacity"`
	MaxFragmentSize int    `json:"maxFragmentSize" yaml:"maxFragmentSize"`
}

// FrameConfig describes the on-wire framing a partition's sequencer uses to
// size-check batches before accepting them.
type FrameConfig struct {
	HeaderLength   int `json:"headerLength" yaml:"headerLength"`
	FrameAlignment int `json:"frameAlignment" yaml:"frameAlignment"`
}

// Default returns built-in defaults: a single "default" topic, partition 0,
// starting at position 1, with a 128-capacity queue and a 4 MiB fragment
// limit.
func Default() Config {
	return Config{
		DataDir: "./data",
		Fsync:   "always",
		Partitions: []PartitionConfig{
			{
				Topic:           "default",
				Partition:       0,
				InitialPosition: 1,
				QueueCapacity:   128,
				MaxFragmentSize: 4 << 20,
			},
		},
		Frame: FrameConfig{
			HeaderLength:   13,
			FrameAlignment: 8,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	ext := filepath.Ext(path)
	switch ext {
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Find locates the PartitionConfig for topic/partition, if configured.
func (c Config) Find(topic string, partition uint32) (PartitionConfig, bool) {
	for _, p := range c.Partitions {
		if p.Topic == topic && p.Partition == partition {
			return p, true
		}
	}
	return PartitionConfig{}, false
}

// Validate reports a descriptive error for an obviously broken config: a
// partition entry without a topic, or with a MaxFragmentSize that is not
// positive. QueueCapacity is not checked; zero or negative values make the
// sequencer fall back to its default capacity.
func (c Config) Validate() error {
	for _, p := range c.Partitions {
		if p.Topic == "" {
			return fmt.Errorf("config: partition entry missing topic")
		}
		if p.MaxFragmentSize <= 0 {
			return fmt.Errorf("config: partition %s/%d: maxFragmentSize must be positive", p.Topic, p.Partition)
		}
	}
	return nil
}
