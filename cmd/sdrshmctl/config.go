package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sdrshm/sdrshm/internal/sdrcfg"
)

func configCmd() *cobra.Command {
	var path string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults merged with --file)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := sdrcfg.DefaultConfig()
			if path != "" {
				loaded, err := sdrcfg.LoadConfig(path)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
	showCmd.Flags().StringVar(&path, "file", "", "path to a YAML config file (defaults are printed if omitted)")

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect sdrshmctl's configuration",
	}
	cmd.AddCommand(showCmd)
	return cmd
}
