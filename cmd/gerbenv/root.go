// Package main provides the entry point for the gerbenv CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for gerbenv.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gerbenv",
		Short: "Convert Gerber fabrication data into training-environment artifacts",
		Long: `gerbenv converts Gerber fabrication exports (.gbrjob plus RS-274X layers)
into the renders, occupancy grids, and shape records consumed by a
dispensing training environment.

A conversion renders each board side to SVG and PNG, extracts binary
observation grids from the category composites, flattens rendered SVGs
into primitive shape records, and records every run in a local history
database for later comparison.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewConvertCmd())
	cmd.AddCommand(NewFillCmd())
	cmd.AddCommand(NewShapesCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
