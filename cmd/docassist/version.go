package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docassist/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the configured service version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "docassist %s (%s)\n", cfg.Version, cfg.Env())
			return nil
		},
	}
}
