package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sdrshm "github.com/sdrshm/sdrshm"
)

type duplexFlags struct {
	rxRing     string
	txRing     string
	channels   int
	binary     string
	logDir     string
	sampleRate uint64
	frequency  uint64
	gain       int
	device     int
}

func duplexCmd() *cobra.Command {
	var f duplexFlags

	cmd := &cobra.Command{
		Use:   "duplex",
		Short: "Start a duplex session, echoing RX chunks back out as TX",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDuplex(f)
		},
	}

	cmd.Flags().StringVar(&f.rxRing, "rx-ring", "/tmp/sdrshm-rx.ring", "RX ring file path")
	cmd.Flags().StringVar(&f.txRing, "tx-ring", "/tmp/sdrshm-tx.ring", "TX ring file path")
	cmd.Flags().IntVar(&f.channels, "channels", 1, "number of channels (1 or 2), shared by both rings")
	cmd.Flags().StringVar(&f.binary, "binary", "", "external process path (default: "+sdrshm.DefaultBinaryPath+")")
	cmd.Flags().StringVar(&f.logDir, "log-dir", ".", "directory for the external process's log file")
	cmd.Flags().Uint64Var(&f.sampleRate, "sample-rate", 0, "sample rate in Hz (default: library default)")
	cmd.Flags().Uint64Var(&f.frequency, "frequency", 0, "center frequency in Hz (default: library default)")
	cmd.Flags().IntVar(&f.gain, "gain", 0, "RX gain in dB (default: library default)")
	cmd.Flags().IntVar(&f.device, "device-index", 0, "device index")

	return cmd
}

func runDuplex(f duplexFlags) error {
	p := sdrshm.NewDuplexParams(f.channels, f.rxRing, f.txRing)
	if f.binary != "" {
		p.BinaryPath = f.binary
	}
	p.LogDir = f.logDir
	if f.sampleRate != 0 {
		p.RX.SampleRate = f.sampleRate
		p.TX.SampleRate = f.sampleRate
	}
	if f.frequency != 0 {
		p.RX.Frequency = f.frequency
		p.TX.Frequency = f.frequency
	}
	if f.gain != 0 {
		p.RX.Gain = f.gain
	}
	p.RX.DeviceIndex = f.device
	p.TX.DeviceIndex = f.device

	log := buildLogger(zap.NewAtomicLevelAt(zap.InfoLevel))
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := sdrshm.StartDuplex(ctx, p, log)
	if err != nil {
		return fmt.Errorf("start duplex: %w", err)
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return waitInterrupted(ctx)
	})
	wg.Go(func() error {
		// Echo every received chunk straight back out as TX input.
		for {
			select {
			case chunk, ok := <-sess.Chunks():
				if !ok {
					close(sess.Input())
					return nil
				}
				tx := sdrshm.NewChunk(chunk.Cols, chunk.Rows)
				for ch := 0; ch < chunk.Rows; ch++ {
					for s := 0; s < chunk.Cols; s++ {
						tx.Set(s, ch, chunk.At(ch, s))
					}
				}
				select {
				case sess.Input() <- sdrshm.TxInput{Complex: tx}:
				case <-ctx.Done():
					return nil
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	wg.Go(func() error {
		for {
			select {
			case w, ok := <-sess.Warnings():
				if !ok {
					continue
				}
				log.Warnw("duplex warning", "kind", w.Kind.String(), "delta", w.Delta)
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
