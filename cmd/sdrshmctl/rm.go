package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sdrshm "github.com/sdrshm/sdrshm"
)

func rmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <ring-path>",
		Short: "Delete a stale ring file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := sdrshm.DeleteRing(args[0]); err != nil {
				return fmt.Errorf("delete ring: %w", err)
			}
			return nil
		},
	}
	return cmd
}
