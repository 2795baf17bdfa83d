package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzurek/szperacz/internal/search"
	"github.com/mzurek/szperacz/internal/telemetry"
)

var (
	searchTopK     int
	searchMode     string
	searchRerank   bool
	searchNoRerank bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		mode, err := parseMode(searchMode)
		if err != nil {
			return err
		}

		query := strings.Join(args, " ")
		opts := search.Options{
			TopK:        searchTopK,
			Mode:        mode,
			UseReranker: useReranker(a.cfg.Search.UseReranker),
		}

		start := time.Now()
		results, err := a.engine.Search(ctx, query, opts)
		if err != nil {
			return err
		}
		a.metrics.Record(telemetry.QueryRecord{
			Query:    query,
			Mode:     searchMode,
			Results:  len(results),
			Duration: time.Since(start),
		})

		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%2d. [%.4f] %s", i+1, r.Score, r.Chunk.SourceFile)
			if r.Chunk.Page > 0 {
				fmt.Printf(" (str. %d)", r.Chunk.Page)
			}
			fmt.Printf(" %s\n", r.Chunk.ElementID)
			fmt.Printf("    %s\n", excerpt(r.Chunk.Content, 160))
		}
		return nil
	},
}

// parseMode accepts both the full mode names and short aliases.
func parseMode(s string) (search.Mode, error) {
	switch s {
	case "", "hybrid":
		return search.ModeHybrid, nil
	case "vector", "vector_only":
		return search.ModeVector, nil
	case "lexical", "lexical_only":
		return search.ModeLexical, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected hybrid, vector_only or lexical_only)", s)
	}
}

// useReranker merges the config default with the explicit flags.
func useReranker(configDefault bool) bool {
	if searchNoRerank {
		return false
	}
	if searchRerank {
		return true
	}
	return configDefault
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "retrieval mode: hybrid, vector_only, lexical_only")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "force the cross-encoder reranker on")
	searchCmd.Flags().BoolVar(&searchNoRerank, "no-rerank", false, "force the reranker off")
	rootCmd.AddCommand(searchCmd)
}
