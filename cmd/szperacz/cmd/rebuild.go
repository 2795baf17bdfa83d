package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the lexical index from the stored corpus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.coord.Rebuild(ctx); err != nil {
			return err
		}
		stats := a.engine.LexicalStats()
		fmt.Printf("lexical index rebuilt: %d documents, %d terms\n",
			stats.DocumentCount, stats.TermCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
