package sdrcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsSelfConsistent(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.BinaryPath)
	assert.NotEmpty(t, cfg.RX.Path)
	assert.NotEmpty(t, cfg.TX.Path)
	assert.NotEqual(t, cfg.RX.Path, cfg.TX.Path)
	assert.Greater(t, cfg.Device.SampleRate, uint64(0))
}

func TestLoadConfigOverridesDefaultsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdrshm.yaml")
	yaml := `
binary_path: /opt/sdr/sdr-streamd
rx:
  path: /tmp/custom-rx.ring
  channels: 2
  chunk_size: 8192
  num_slots: 128
device:
  sample_rate: 20000000
  gain: 12
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/sdr/sdr-streamd", cfg.BinaryPath)
	assert.Equal(t, "/tmp/custom-rx.ring", cfg.RX.Path)
	assert.Equal(t, 2, cfg.RX.Channels)
	assert.Equal(t, uint32(8192), cfg.RX.ChunkSize)
	assert.Equal(t, uint32(128), cfg.RX.NumSlots)
	assert.Equal(t, uint64(20_000_000), cfg.Device.SampleRate)
	assert.Equal(t, 12, cfg.Device.Gain)

	// Fields absent from the YAML keep their documented defaults.
	assert.Equal(t, DefaultConfig().TX.Path, cfg.TX.Path)
	assert.Equal(t, DefaultConfig().LogDir, cfg.LogDir)
}

func TestLoadConfigReturnsErrorOnMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	assert.Error(t, err)
}
