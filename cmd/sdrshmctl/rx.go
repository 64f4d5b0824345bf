package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sdrshm "github.com/sdrshm/sdrshm"
)

type rxFlags struct {
	ring       string
	channels   int
	binary     string
	logDir     string
	sampleRate uint64
	frequency  uint64
	gain       int
	agc        string
	bandwidth  uint64
	bufferTime time.Duration
	device     int
}

func rxCmd() *cobra.Command {
	var f rxFlags

	cmd := &cobra.Command{
		Use:   "rx",
		Short: "Start an RX session and print received chunks and warnings",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runRX(f)
		},
	}

	cmd.Flags().StringVar(&f.ring, "ring", "/tmp/sdrshm-rx.ring", "ring file path")
	cmd.Flags().IntVar(&f.channels, "channels", 1, "number of channels (1 or 2)")
	cmd.Flags().StringVar(&f.binary, "binary", "", "external process path (default: "+sdrshm.DefaultBinaryPath+")")
	cmd.Flags().StringVar(&f.logDir, "log-dir", ".", "directory for the external process's log file")
	cmd.Flags().Uint64Var(&f.sampleRate, "sample-rate", 0, "sample rate in Hz (default: library default)")
	cmd.Flags().Uint64Var(&f.frequency, "frequency", 0, "center frequency in Hz (default: library default)")
	cmd.Flags().IntVar(&f.gain, "gain", 0, "gain in dB (default: library default)")
	cmd.Flags().StringVar(&f.agc, "agc", "", "AGC mode: manual, fast_attack, slow_attack, hybrid")
	cmd.Flags().Uint64Var(&f.bandwidth, "bandwidth", 0, "bandwidth in Hz (default: sample rate)")
	cmd.Flags().DurationVar(&f.bufferTime, "buffer-time", 0, "external buffer depth (default: library default)")
	cmd.Flags().IntVar(&f.device, "device-index", 0, "device index")

	return cmd
}

func runRX(f rxFlags) error {
	opts := []sdrshm.RXOption{
		WithRXFlags(f),
	}
	p := sdrshm.NewRXParams(f.channels, f.ring, opts...)

	log := buildLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := sdrshm.StartRX(ctx, p, log)
	if err != nil {
		return fmt.Errorf("start rx: %w", err)
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return waitInterrupted(ctx)
	})
	wg.Go(func() error {
		count := 0
		for {
			select {
			case chunk, ok := <-sess.Chunks():
				if !ok {
					log.Infow("rx stream ended", "chunks_received", count)
					return nil
				}
				count++
				if count%100 == 0 {
					log.Infow("rx progress", "chunks_received", count, "samples", chunk.Cols)
				}
			case w, ok := <-sess.Warnings():
				if !ok {
					continue
				}
				log.Warnw("rx warning", "kind", w.Kind.String(), "delta", w.Delta)
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

// WithRXFlags translates the CLI's flag set onto the library's
// functional options, leaving unset (zero-valued) flags to the
// library's own defaults.
func WithRXFlags(f rxFlags) sdrshm.RXOption {
	return func(p *sdrshm.RXParams) {
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
		if f.agc != "" {
			p.AGCMode = sdrshm.AGCMode(f.agc)
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
