package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and corpus state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		count, err := a.db.Count(ctx)
		if err != nil {
			return err
		}
		sources, err := a.db.ListSources(ctx)
		if err != nil {
			return err
		}
		stats := a.engine.LexicalStats()

		fmt.Printf("data dir:        %s\n", a.cfg.Paths.DataDir)
		fmt.Printf("chunks:          %d\n", count)
		fmt.Printf("sources:         %d\n", len(sources))
		fmt.Printf("embedder:        %s (%d dims)\n", a.embedder.ModelID(), a.embedder.Dimensions())
		fmt.Printf("lexical backend: %s\n", a.cfg.Search.LexicalBackend)
		fmt.Printf("lexical ready:   %v (%d documents, %d terms)\n",
			a.lexical.Ready(), stats.DocumentCount, stats.TermCount)

		if len(sources) > 0 {
			names := make([]string, 0, len(sources))
			for name := range sources {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Println("indexed sources:")
			for _, name := range names {
				fmt.Printf("  %s (%d chunks)\n", name, sources[name])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
