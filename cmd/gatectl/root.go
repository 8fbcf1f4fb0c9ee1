package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gatectl",
	Short: "Run and manage the gatekeeper access-control server",
	Long: `gatectl runs and manages the gatekeeper server: the edge request
gate, role resolution, and the role store behind them.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
