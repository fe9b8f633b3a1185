// Package cmd contains the CLI entry points for the hackathon assistant
// backend: serving the HTTP API, forcing an index rebuild, and printing
// version information.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hackathon-agent",
	Short: "Offline hackathon assistant backend",
	Long: `hackathon-agent serves the offline hackathon assistant API:
rule/context ingestion, semantic retrieval over the session corpus, and
index status. Embeddings are produced by a local Ollama server, so the
whole stack runs without internet access.`,
	SilenceUsage: true,
}

// debugLogging enables debug-level log output.
var debugLogging bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
