package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mzurek/szperacz/internal/provider"
	"github.com/mzurek/szperacz/internal/qa"
	"github.com/mzurek/szperacz/internal/search"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed corpus using a local LLM",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		llm, err := provider.NewProvider(ctx, provider.FactoryConfig{
			Backend:   a.cfg.LLM.Backend,
			OllamaURL: a.cfg.LLM.OllamaURL,
			OpenAIURL: a.cfg.LLM.OpenAIURL,
			Model:     a.cfg.LLM.Model,
		}, a.logger)
		if err != nil {
			return err
		}
		defer llm.Close()

		answerer, err := qa.NewAnswerer(a.engine, llm, a.logger)
		if err != nil {
			return err
		}

		answer, err := answerer.Ask(ctx, strings.Join(args, " "), search.Options{
			TopK:        askTopK,
			UseReranker: a.cfg.Search.UseReranker,
		})
		if err != nil {
			return err
		}

		fmt.Println(answer.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of context chunks (default from config)")
	rootCmd.AddCommand(askCmd)
}
