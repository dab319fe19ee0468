package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var configPath string

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coachd",
		Short: "GROW coaching session server",
		Long: `coachd runs a stage-gated GROW coaching dialogue (Goal, Reality,
Options, Option-Improvement, Will) between end users and an AI coach,
exposed over an HTTP API.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "coachd.yaml", "path to config file")

	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the coachd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("coachd", Version)
		},
	}
}
