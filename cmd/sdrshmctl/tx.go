package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sdrshm "github.com/sdrshm/sdrshm"
)

type txFlags struct {
	ring       string
	channels   int
	binary     string
	logDir     string
	sampleRate uint64
	frequency  uint64
	gain       int
	bandwidth  uint64
	bufferTime time.Duration
	device     int
	duration   time.Duration
	toneHz     float64
	chunkSize  int
}

func txCmd() *cobra.Command {
	var f txFlags

	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Start a TX session and transmit a synthetic test tone",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTX(f)
		},
	}

	cmd.Flags().StringVar(&f.ring, "ring", "/tmp/sdrshm-tx.ring", "ring file path")
	cmd.Flags().IntVar(&f.channels, "channels", 1, "number of channels (1 or 2)")
	cmd.Flags().StringVar(&f.binary, "binary", "", "external process path (default: "+sdrshm.DefaultBinaryPath+")")
	cmd.Flags().StringVar(&f.logDir, "log-dir", ".", "directory for the external process's log file")
	cmd.Flags().Uint64Var(&f.sampleRate, "sample-rate", 0, "sample rate in Hz (default: library default)")
	cmd.Flags().Uint64Var(&f.frequency, "frequency", 0, "center frequency in Hz (default: library default)")
	cmd.Flags().IntVar(&f.gain, "gain", 0, "gain in dB (default: library default)")
	cmd.Flags().Uint64Var(&f.bandwidth, "bandwidth", 0, "bandwidth in Hz (default: sample rate)")
	cmd.Flags().DurationVar(&f.bufferTime, "buffer-time", 0, "external buffer depth (default: library default)")
	cmd.Flags().IntVar(&f.device, "device-index", 0, "device index")
	cmd.Flags().DurationVar(&f.duration, "duration", 10*time.Second, "how long to transmit before finishing")
	cmd.Flags().Float64Var(&f.toneHz, "tone-hz", 1000, "synthetic tone frequency in Hz")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-samples", 4096, "samples per generated chunk")

	return cmd
}

func runTX(f txFlags) error {
	p := sdrshm.NewTXParams(f.ring, WithTXFlags(f))

	log := buildLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := sdrshm.StartTX(ctx, p, log)
	if err != nil {
		return fmt.Errorf("start tx: %w", err)
	}

	sampleRate := p.SampleRate
	if sampleRate == 0 {
		sampleRate = 40_000_000
	}
	samplesNeeded := int(float64(sampleRate) * f.duration.Seconds())

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return waitInterrupted(ctx)
	})
	wg.Go(func() error {
		sent := 0
		phase := 0.0
		step := 2 * math.Pi * f.toneHz / float64(sampleRate)
		for sent < samplesNeeded {
			chunk := sdrshm.NewChunk(f.chunkSize, f.channels)
			for s := 0; s < f.chunkSize; s++ {
				re := int16(8000 * math.Cos(phase))
				im := int16(8000 * math.Sin(phase))
				phase += step
				for c := 0; c < f.channels; c++ {
					chunk.Set(s, c, sdrshm.IQ{Re: re, Im: im})
				}
			}
			if !sess.Send(ctx, sdrshm.TxInput{Complex: chunk}) {
				break
			}
			sent += f.chunkSize
		}
		sess.Finish()
		return nil
	})
	wg.Go(func() error {
		for {
			select {
			case w, ok := <-sess.Warnings():
				if !ok {
					continue
				}
				log.Warnw("tx warning", "kind", w.Kind.String(), "delta", w.Delta)
			case st, ok := <-sess.Stats():
				if !ok {
					continue
				}
				log.Infow("tx stats", "write_index", st.WriteIndex, "read_index", st.ReadIndex, "error_count", st.ErrorCount, "buffer_stall_count", st.BufferStallCount)
			case <-ctx.Done():
				return nil
			}
		}
	})

	err = wg.Wait()
	closeErr := sess.Close()
	if err != nil && !isInterrupted(err) {
		return err
	}
	return closeErr
}

// WithTXFlags translates the CLI's flag set onto the library's
// functional options.
func WithTXFlags(f txFlags) sdrshm.TXOption {
	return func(p *sdrshm.TXParams) {
		p.Channels = f.channels
		if f.binary != "" {
			p.BinaryPath = f.binary
		}
		p.LogDir = f.logDir
		if f.sampleRate != 0 {
			p.SampleRate = f.sampleRate
		}
		if f.frequency != 0 {
			p.Frequency = f.frequency
		}
		if f.gain != 0 {
			p.Gain = f.gain
		}
		if f.bandwidth != 0 {
			p.Bandwidth = f.bandwidth
		}
		if f.bufferTime != 0 {
			p.BufferTime = f.bufferTime
		}
		p.DeviceIndex = f.device
	}
}
