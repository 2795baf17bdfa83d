// Package cmd implements the szperacz command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:   "szperacz",
	Short: "Hybrid retrieval engine for mixed-media document collections",
	Long: `szperacz indexes document chunks (text, image descriptions, audio and
video transcriptions) and answers queries with hybrid retrieval: BM25 and
dense vector search fused with reciprocal rank fusion, optionally reordered
by a cross-encoder reranker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override data directory")
}
