package sdrshm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComposeRXArgs(t *testing.T) {
	p := NewRXParams(2, "/tmp/rx.ring",
		WithRXDeviceIndex(3),
		WithRXSampleRate(1_000_000),
		WithRXFrequency(915_000_000),
		WithRXGain(20),
		WithRXAGCMode(AGCFastAttack),
		WithRXBandwidth(500_000),
		WithRXBufferTime(1500*time.Millisecond),
		WithRXSampleCap(4096),
	)

	args := composeRXArgs(p)

	assert.Equal(t, []string{
		"-c", "3",
		"-samplerate", "1000000",
		"-rx_freq", "915000000",
		"-rx_gain", "20",
		"-agc_mode", "fast_attack",
		"-bandwidth", "500000",
		"-channels", "2",
		"-shm_path", "/tmp/rx.ring",
		"-buffer_time", "1.5",
		"-num_samples", "4096",
	}, args)
}

func TestComposeRXArgsQuiet(t *testing.T) {
	p := NewRXParams(1, "/tmp/rx.ring", WithRXQuiet(true))
	args := composeRXArgs(p)
	assert.Equal(t, "-q", args[len(args)-1])
}

func TestComposeTXArgs(t *testing.T) {
	p := NewTXParams("/tmp/tx.ring",
		WithTXDeviceIndex(1),
		WithTXSampleRate(2_000_000),
		WithTXFrequency(100_000_000),
		WithTXGain(-5),
		WithTXBandwidth(1_000_000),
		WithTXBufferTime(2*time.Second),
	)

	args := composeTXArgs(p)

	assert.Equal(t, []string{
		"-c", "1",
		"-samplerate", "2000000",
		"-tx_freq", "100000000",
		"-tx_gain", "-5",
		"-bandwidth", "1000000",
		"-channels", "1",
		"-shm_path", "/tmp/tx.ring",
		"-buffer_time", "2",
	}, args)
}

func TestComposeTXArgsQuiet(t *testing.T) {
	p := NewTXParams("/tmp/tx.ring", WithTXQuiet(true))
	args := composeTXArgs(p)
	assert.Equal(t, "-q", args[len(args)-1])
}

func TestComposeDuplexArgs(t *testing.T) {
	p := NewDuplexParams(1, "/tmp/rx.ring", "/tmp/tx.ring")
	p.RX.DeviceIndex = 2
	p.RX.AGCMode = AGCHybrid

	args := composeDuplexArgs(p)

	assert.Contains(t, args, "-w")
	assert.Contains(t, args, "-rx_shm_path")
	assert.Contains(t, args, "-tx_shm_path")
	assert.Contains(t, args, "-rx_buffer_time")
	assert.Contains(t, args, "-tx_buffer_time")
	assert.NotContains(t, args, "-shm_path")
	assert.NotContains(t, args, "-buffer_time")

	// -w is mandatory regardless of flags, and sits wherever
	// composeDuplexArgs puts it; Quiet is off here so it's the last arg.
	assert.Equal(t, "-w", args[len(args)-1])
}

func TestComposeDuplexArgsQuiet(t *testing.T) {
	p := NewDuplexParams(1, "/tmp/rx.ring", "/tmp/tx.ring")
	p.Quiet = true
	args := composeDuplexArgs(p)
	assert.Equal(t, "-q", args[len(args)-1])
	assert.Contains(t, args, "-w")
}
