// Command executor-server hosts the secure code-execution engine over a
// minimal JSON HTTP endpoint for local and manual testing. The HTTP/
// WebSocket transport is out of core scope (spec.md §6); this binary exists
// so the engine is runnable end-to-end during development.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "executor-server",
	Short: "Secure code-execution engine",
	Long:  "executor-server hosts the Sandbox Runner, Egress Proxy, Policy Engine, and Two-Phase Orchestrator behind a local HTTP endpoint.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (default: env vars + ./config.yaml)")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("executor-server (dev)")
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
