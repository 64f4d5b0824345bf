package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sdrshm "github.com/sdrshm/sdrshm"
)

func statCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <ring-path>",
		Short: "Print a ring's current counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := sdrshm.ReadStats(args[0])
			if err != nil {
				return fmt.Errorf("read stats: %w", err)
			}
			fmt.Printf("write_index:   %d\n", st.WriteIndex)
			fmt.Printf("read_index:    %d\n", st.ReadIndex)
			fmt.Printf("error_count:   %d\n", st.ErrorCount)
			fmt.Printf("writer_done:   %v\n", st.WriterDone)
			return nil
		},
	}
	return cmd
}
