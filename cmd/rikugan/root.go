package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rerrors "github.com/rikugan-dev/rikugan/pkg/errors"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rikugan",
	Short: "Activation streaming backend for transformer visualization",
	Long: `rikugan serves transformer generation with live activation capture.
Clients connect over WebSocket, submit prompts, and receive per-layer
activation slices alongside the generated text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and prints failures through the error formatter.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		rerrors.DefaultFormatter().Print(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file path (default: rikugan.yaml)")

	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		if err := initConfigFile(path); err != nil {
			return err
		}
		fmt.Printf("Config initialized at: %s\n", path)
		fmt.Println("Edit this file to configure the server and models.")
		return nil
	},
}
