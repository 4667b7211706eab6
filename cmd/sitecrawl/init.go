package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cametumbling/sitecrawl/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Init writes the built-in configuration as YAML so it can be edited.

Examples:
  # Write to the XDG config directory
  sitecrawl init

  # Write to the working directory, replacing any existing file
  sitecrawl init -o sitecrawl.yaml -f`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputPath, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")

			if err := config.WriteDefault(outputPath, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", config.DefaultPath(), "output file path")
	cmd.Flags().BoolP("force", "f", false, "overwrite an existing file")

	return cmd
}
