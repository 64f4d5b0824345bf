package sdrshm

import (
	"os/exec"
	"time"
)

// AGCMode selects the external process's automatic-gain-control
// behaviour.
type AGCMode string

const (
	AGCManual      AGCMode = "manual"
	AGCFastAttack  AGCMode = "fast_attack"
	AGCSlowAttack  AGCMode = "slow_attack"
	AGCHybrid      AGCMode = "hybrid"
)

// DefaultBinaryPath is the external streaming binary's name, resolved
// via exec.LookPath unless a Params.BinaryPath override is given.
const DefaultBinaryPath = "sdr-streamd"

const (
	defaultSampleRate           = 40_000_000
	defaultFrequency            = 5_000_000_000
	defaultRXGain                = 20
	defaultTXGain                = -10
	defaultBufferTime            = 3 * time.Second
	defaultChunkChannelCapacity  = 100
	defaultWarningChannelCapacity = 16
	defaultStatsChannelCapacity  = 1000
)

// RXParams configures StartRX. NewRXParams fills in the documented
// defaults before applying options; of the fields an option leaves at
// zero, only Bandwidth is replaced afterwards (by SampleRate).
type RXParams struct {
	Channels    int
	SampleRate  uint64
	Frequency   uint64
	Gain        int
	AGCMode     AGCMode
	Bandwidth   uint64
	BufferTime  time.Duration
	SampleCap   uint64
	RingPath    string
	DeviceIndex int
	BinaryPath  string
	LogDir      string

	ChunkChannelCapacity   int
	WarningChannelCapacity int
	Quiet                  bool

	// InvocationOverride replaces the external process invocation
	// entirely; used by tests to launch a mock producer.
	InvocationOverride func() *exec.Cmd
}

// RXOption configures an RXParams built by NewRXParams.
type RXOption func(*RXParams)

func WithRXSampleRate(hz uint64) RXOption      { return func(p *RXParams) { p.SampleRate = hz } }
func WithRXFrequency(hz uint64) RXOption       { return func(p *RXParams) { p.Frequency = hz } }
func WithRXGain(db int) RXOption               { return func(p *RXParams) { p.Gain = db } }
func WithRXAGCMode(m AGCMode) RXOption         { return func(p *RXParams) { p.AGCMode = m } }
func WithRXBandwidth(hz uint64) RXOption       { return func(p *RXParams) { p.Bandwidth = hz } }
func WithRXBufferTime(d time.Duration) RXOption { return func(p *RXParams) { p.BufferTime = d } }
func WithRXSampleCap(n uint64) RXOption        { return func(p *RXParams) { p.SampleCap = n } }
func WithRXDeviceIndex(i int) RXOption         { return func(p *RXParams) { p.DeviceIndex = i } }
func WithRXBinaryPath(path string) RXOption    { return func(p *RXParams) { p.BinaryPath = path } }
func WithRXLogDir(dir string) RXOption         { return func(p *RXParams) { p.LogDir = dir } }
func WithRXChunkChannelCapacity(n int) RXOption {
	return func(p *RXParams) { p.ChunkChannelCapacity = n }
}
func WithRXWarningChannelCapacity(n int) RXOption {
	return func(p *RXParams) { p.WarningChannelCapacity = n }
}
func WithRXQuiet(q bool) RXOption { return func(p *RXParams) { p.Quiet = q } }
func WithRXInvocationOverride(f func() *exec.Cmd) RXOption {
	return func(p *RXParams) { p.InvocationOverride = f }
}

// NewRXParams returns the documented RX defaults for the given
// channel count and ring path, with opts applied on top.
func NewRXParams(channels int, ringPath string, opts ...RXOption) RXParams {
	p := RXParams{
		Channels:               channels,
		SampleRate:             defaultSampleRate,
		Frequency:              defaultFrequency,
		Gain:                   defaultRXGain,
		AGCMode:                AGCManual,
		Bandwidth:              defaultSampleRate,
		BufferTime:             defaultBufferTime,
		SampleCap:              0,
		RingPath:               ringPath,
		DeviceIndex:            0,
		BinaryPath:             DefaultBinaryPath,
		ChunkChannelCapacity:   defaultChunkChannelCapacity,
		WarningChannelCapacity: defaultWarningChannelCapacity,
	}
	if p.Bandwidth == 0 {
		p.Bandwidth = p.SampleRate
	}
	for _, o := range opts {
		o(&p)
	}
	if p.Bandwidth == 0 {
		p.Bandwidth = p.SampleRate
	}
	return p
}

// TXParams configures StartTX.
type TXParams struct {
	Channels    int
	SampleRate  uint64
	Frequency   uint64
	Gain        int
	Bandwidth   uint64
	BufferTime  time.Duration
	RingPath    string
	DeviceIndex int
	BinaryPath  string
	LogDir      string
	Quiet       bool

	WarningCapacity int
	StatsCapacity   int

	InvocationOverride func() *exec.Cmd
}

// TXOption configures a TXParams built by NewTXParams.
type TXOption func(*TXParams)

func WithTXChannels(n int) TXOption            { return func(p *TXParams) { p.Channels = n } }
func WithTXSampleRate(hz uint64) TXOption      { return func(p *TXParams) { p.SampleRate = hz } }
func WithTXFrequency(hz uint64) TXOption       { return func(p *TXParams) { p.Frequency = hz } }
func WithTXGain(db int) TXOption               { return func(p *TXParams) { p.Gain = db } }
func WithTXBandwidth(hz uint64) TXOption       { return func(p *TXParams) { p.Bandwidth = hz } }
func WithTXBufferTime(d time.Duration) TXOption { return func(p *TXParams) { p.BufferTime = d } }
func WithTXDeviceIndex(i int) TXOption         { return func(p *TXParams) { p.DeviceIndex = i } }
func WithTXBinaryPath(path string) TXOption    { return func(p *TXParams) { p.BinaryPath = path } }
func WithTXLogDir(dir string) TXOption         { return func(p *TXParams) { p.LogDir = dir } }
func WithTXQuiet(q bool) TXOption              { return func(p *TXParams) { p.Quiet = q } }
func WithTXWarningCapacity(n int) TXOption     { return func(p *TXParams) { p.WarningCapacity = n } }
func WithTXStatsCapacity(n int) TXOption       { return func(p *TXParams) { p.StatsCapacity = n } }
func WithTXInvocationOverride(f func() *exec.Cmd) TXOption {
	return func(p *TXParams) { p.InvocationOverride = f }
}

// NewTXParams returns the documented TX defaults for the given ring
// path, with opts applied on top. Channels defaults to 1; use
// WithTXChannels for a 2-channel ring.
func NewTXParams(ringPath string, opts ...TXOption) TXParams {
	p := TXParams{
		Channels:        1,
		SampleRate:      defaultSampleRate,
		Frequency:       defaultFrequency,
		Gain:            defaultTXGain,
		Bandwidth:       defaultSampleRate,
		BufferTime:      defaultBufferTime,
		RingPath:        ringPath,
		DeviceIndex:     0,
		BinaryPath:      DefaultBinaryPath,
		WarningCapacity: defaultWarningChannelCapacity,
		StatsCapacity:   defaultStatsChannelCapacity,
	}
	for _, o := range opts {
		o(&p)
	}
	if p.Bandwidth == 0 {
		p.Bandwidth = p.SampleRate
	}
	return p
}

// DuplexParams pairs an RX and a TX parameter set for StartDuplex. Only
// one external process is spawned; its invocation is composed from
// both sides plus the wait-for-peer-ring flag.
type DuplexParams struct {
	Channels int
	RX       RXParams
	TX       TXParams

	BinaryPath string
	LogDir     string
	Quiet      bool

	InvocationOverride func() *exec.Cmd
}

// NewDuplexParams returns the documented defaults for a duplex
// session over the given RX/TX ring paths.
func NewDuplexParams(channels int, rxRingPath, txRingPath string) DuplexParams {
	return DuplexParams{
		Channels:   channels,
		RX:         NewRXParams(channels, rxRingPath),
		TX:         NewTXParams(txRingPath),
		BinaryPath: DefaultBinaryPath,
	}
}
