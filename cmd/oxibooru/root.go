package main

import (
	"github.com/spf13/cobra"

	"github.com/liamw1/oxibooru/config"
)

// Exit codes, grounded on the cobra-CLI shape of the reference crumbs
// cupboard CLI.
const (
	exitSuccess = 0
	exitUserError = 1
	exitSysError  = 2
)

var flagConfigFile string

var rootCmd = &cobra.Command{
	Use:     "oxibooru",
	Short:   "oxibooru is an imageboard/post management backend",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load(flagConfigFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&flagConfigFile, "config", "", "path to config.yaml (default: ./config.yaml)",
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(recomputeSignaturesCmd)
	rootCmd.AddCommand(resetFilenamesCmd)
}
