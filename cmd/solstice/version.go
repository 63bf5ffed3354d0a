package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var buildVersion = "dev"
var buildCommit = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
		return err
	},
}

func init() {
	rootCmd.Version = versionString()
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	return fmt.Sprintf("solstice %s (commit %s)", buildVersion, buildCommit)
}
