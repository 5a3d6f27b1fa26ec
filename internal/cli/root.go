// Package cli implements the imagesizer command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "imagesizer",
	Short: "imagesizer - crop images and converge them on a file size or pixel target",
	Long: "imagesizer crops images to an aspect ratio and repeatedly resizes and re-encodes them " +
		"until they meet a target file size in megabytes or a target width or height.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file")
}
