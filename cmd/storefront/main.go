// Package main is the storefront provisioning service binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version     = "0.1.0"
	serviceName = "storefront"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n", r)
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Store provisioning service",
		Long: `Provisions merchant storefronts: stores uploaded images, assigns them to
products and sliders, generates the store artifacts and persists the
merchant and store rows.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), migrateCmd(), verifyCmd(), dedupCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", serviceName, Version)
		},
	})
	return cmd
}
