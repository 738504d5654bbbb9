package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the chaoscache CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaoscache",
		Short: "Record and replay rigid body simulations",
		Long: `chaoscache records rigid body and geometry collection simulations
into cache assets and replays them kinematically.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "manager config file path")

	cmd.AddCommand(NewInspectCmd())
	cmd.AddCommand(NewDemoCmd())

	return cmd
}
