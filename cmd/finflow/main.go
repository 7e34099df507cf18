// finflow runs the automated financial-research workflow service.
//
// Usage:
//
//	finflow serve [--addr=:8080] [--mongo-uri=...] [--enforce-credits]
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "finflow",
	Short: "Automated financial-research workflow engine",
	Long: "finflow orchestrates a team of LLM agents over a workflow graph\n" +
		"to research financial questions and produce persisted reports.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
