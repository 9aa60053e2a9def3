package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newValidateCommand(stdout, stderr io.Writer) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Lint the pipeline config and exit",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if _, err := loadConfig(configPath, stderr); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "configuration is valid: %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/pipeline.yaml", "pipeline config path (.json, .yaml)")
	return cmd
}
