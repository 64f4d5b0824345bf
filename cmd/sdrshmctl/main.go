package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "sdrshmctl",
	Short: "Drive IQ streaming sessions over a shared-memory ring",
}

func main() {
	rootCmd.AddCommand(rxCmd())
	rootCmd.AddCommand(txCmd())
	rootCmd.AddCommand(duplexCmd())
	rootCmd.AddCommand(statCmd())
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func buildLogger(level zap.AtomicLevel) *zap.SugaredLogger {
	log, _, err := logging.Init(&logging.Config{Level: level.Level()})
	if err != nil {
		return logging.Nop()
	}
	return log
}

type interrupted struct {
	os.Signal
}

func (m interrupted) Error() string { return m.String() }

// waitInterrupted blocks until SIGINT, SIGTERM, or ctx is canceled.
func waitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case v := <-ch:
		return interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isInterrupted(err error) bool {
	var i interrupted
	return errors.As(err, &i)
}
