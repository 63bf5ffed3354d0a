// Package main implements the solstice task service.
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"solstice/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "solstice",
	Short:        "Solstice - a small task tracking service",
	SilenceUsage: true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
}
