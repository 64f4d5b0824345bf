// Package sdrcfg loads the CLI's YAML configuration file, mirroring
// the rest of the pack's per-binary Config/LoadConfig convention.
package sdrcfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sdrshm/sdrshm/internal/logging"
)

// RingConfig is one ring's geometry and path.
type RingConfig struct {
	Path      string `yaml:"path"`
	Channels  int    `yaml:"channels"`
	ChunkSize uint32 `yaml:"chunk_size"`
	NumSlots  uint32 `yaml:"num_slots"`
}

// DeviceConfig is the radio parameters passed through to the external
// process.
type DeviceConfig struct {
	SampleRate  uint64        `yaml:"sample_rate"`
	Frequency   uint64        `yaml:"frequency"`
	Gain        int           `yaml:"gain"`
	Bandwidth   uint64        `yaml:"bandwidth"`
	BufferTime  time.Duration `yaml:"buffer_time"`
	DeviceIndex int           `yaml:"device_index"`
}

// Config is the CLI's top-level configuration.
type Config struct {
	BinaryPath string `yaml:"binary_path"`
	LogDir     string `yaml:"log_dir"`

	RX RingConfig `yaml:"rx"`
	TX RingConfig `yaml:"tx"`

	Device DeviceConfig `yaml:"device"`

	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns the documented defaults: single-channel RX and
// TX rings under /tmp, logging at info level.
func DefaultConfig() *Config {
	return &Config{
		BinaryPath: "sdr-streamd",
		LogDir:     "/var/log/sdrshm",
		RX: RingConfig{
			Path:      "/tmp/sdrshm-rx.ring",
			Channels:  1,
			ChunkSize: 4096,
			NumSlots:  64,
		},
		TX: RingConfig{
			Path:      "/tmp/sdrshm-tx.ring",
			Channels:  1,
			ChunkSize: 4096,
			NumSlots:  64,
		},
		Device: DeviceConfig{
			SampleRate: 40_000_000,
			Frequency:  5_000_000_000,
			Gain:       20,
			BufferTime: 3 * time.Second,
		},
	}
}

// LoadConfig reads and decodes a YAML config file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
