package sdrshm

import (
	"fmt"
	"strconv"
	"time"
)

// formatSeconds renders a duration as the fractional-seconds value the
// external process's -buffer_time family of flags expects (e.g. "1.5"),
// not Go's unit-suffixed Duration.String().
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// composeRXArgs builds the external process's command line for an RX
// session, per the ring file format's producer contract: the process
// creates the ring itself once its radio parameters are applied.
func composeRXArgs(p RXParams) []string {
	args := []string{
		"-c", strconv.Itoa(p.DeviceIndex),
		"-samplerate", strconv.FormatUint(p.SampleRate, 10),
		"-rx_freq", strconv.FormatUint(p.Frequency, 10),
		"-rx_gain", strconv.Itoa(p.Gain),
		"-agc_mode", string(p.AGCMode),
		"-bandwidth", strconv.FormatUint(p.Bandwidth, 10),
		"-channels", strconv.Itoa(p.Channels),
		"-shm_path", p.RingPath,
		"-buffer_time", formatSeconds(p.BufferTime),
		"-num_samples", strconv.FormatUint(p.SampleCap, 10),
	}
	if p.Quiet {
		args = append(args, "-q")
	}
	return args
}

// composeTXArgs builds the external process's command line for a TX
// session: the process creates the TX ring and consumes it as the
// reader.
func composeTXArgs(p TXParams) []string {
	args := []string{
		"-c", strconv.Itoa(p.DeviceIndex),
		"-samplerate", strconv.FormatUint(p.SampleRate, 10),
		"-tx_freq", strconv.FormatUint(p.Frequency, 10),
		"-tx_gain", strconv.Itoa(p.Gain),
		"-bandwidth", strconv.FormatUint(p.Bandwidth, 10),
		"-channels", strconv.Itoa(p.Channels),
		"-shm_path", p.RingPath,
		"-buffer_time", formatSeconds(p.BufferTime),
	}
	if p.Quiet {
		args = append(args, "-q")
	}
	return args
}

// composeDuplexArgs builds the external process's command line for a
// duplex session: one invocation, two rings, and the mandatory
// wait-for-peer-ring flag (§4.5).
func composeDuplexArgs(p DuplexParams) []string {
	args := []string{
		"-c", strconv.Itoa(p.RX.DeviceIndex),
		"-samplerate", strconv.FormatUint(p.RX.SampleRate, 10),
		"-rx_freq", strconv.FormatUint(p.RX.Frequency, 10),
		"-tx_freq", strconv.FormatUint(p.TX.Frequency, 10),
		"-rx_gain", strconv.Itoa(p.RX.Gain),
		"-tx_gain", strconv.Itoa(p.TX.Gain),
		"-agc_mode", string(p.RX.AGCMode),
		"-bandwidth", strconv.FormatUint(p.RX.Bandwidth, 10),
		"-channels", strconv.Itoa(p.Channels),
		"-rx_shm_path", p.RX.RingPath,
		"-tx_shm_path", p.TX.RingPath,
		"-rx_buffer_time", formatSeconds(p.RX.BufferTime),
		"-tx_buffer_time", formatSeconds(p.TX.BufferTime),
		"-num_samples", strconv.FormatUint(p.RX.SampleCap, 10),
		"-w",
	}
	if p.Quiet {
		args = append(args, "-q")
	}
	return args
}

func binaryPathOr(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func logNameFor(kind, ringPath string) string {
	return fmt.Sprintf("%s-%x.log", kind, hashPath(ringPath))
}

// hashPath is a small, dependency-free fold used only to keep log file
// names distinct per ring path; it is not a content hash.
func hashPath(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
