// Package qa composes grounded answers: it retrieves context through the
// search engine and asks the LLM provider to answer strictly from it.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mzurek/szperacz/internal/provider"
	"github.com/mzurek/szperacz/internal/search"
)

// systemPrompt pins the model to the retrieved context. The corpus is
// Polish, so the instructions and the refusal phrasing are too.
const systemPrompt = `Jesteś asystentem odpowiadającym na pytania wyłącznie na podstawie dostarczonego kontekstu.
Zasady:
- Odpowiadaj po polsku, zwięźle i rzeczowo.
- Korzystaj tylko z informacji zawartych w kontekście poniżej.
- Jeśli kontekst nie zawiera odpowiedzi, napisz: "Nie znalazłem tej informacji w dostępnych dokumentach."
- Nie wymyślaj faktów ani źródeł.`

// Answer is a grounded response with its provenance.
type Answer struct {
	Text    string
	Sources []string
	Results []*search.Result
}

// Answerer glues retrieval and generation together.
type Answerer struct {
	engine   *search.Engine
	provider provider.Provider
	logger   *slog.Logger
}

// NewAnswerer builds the question-answering pipeline. provider may be nil;
// Ask then fails with provider.ErrNoProvider while Retrieve still works.
func NewAnswerer(engine *search.Engine, p provider.Provider, logger *slog.Logger) (*Answerer, error) {
	if engine == nil {
		return nil, fmt.Errorf("answerer requires a search engine")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{engine: engine, provider: p, logger: logger}, nil
}

// Ask answers a question from the indexed corpus. Bare greetings get a
// canned reply without touching the index.
func (a *Answerer) Ask(ctx context.Context, question string, opts search.Options) (*Answer, error) {
	if IsGreeting(question) {
		return &Answer{Text: greetingReply}, nil
	}
	if a.provider == nil {
		return nil, provider.ErrNoProvider
	}

	results, err := a.engine.Search(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Answer{Text: "Nie znalazłem tej informacji w dostępnych dokumentach."}, nil
	}

	text, err := a.provider.Generate(ctx, provider.GenerateRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(question, results),
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := collectSources(results)
	return &Answer{
		Text:    appendSources(strings.TrimSpace(text), sources),
		Sources: sources,
		Results: results,
	}, nil
}

func buildPrompt(question string, results []*search.Result) string {
	var b strings.Builder
	b.WriteString("Kontekst:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] (%s", i+1, r.Chunk.SourceFile)
		if r.Chunk.Page > 0 {
			fmt.Fprintf(&b, ", str. %d", r.Chunk.Page)
		}
		b.WriteString(")\n")
		b.WriteString(r.Chunk.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Pytanie: ")
	b.WriteString(question)
	return b.String()
}

func collectSources(results []*search.Result) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, r := range results {
		if r.Chunk == nil || r.Chunk.SourceFile == "" {
			continue
		}
		if _, ok := seen[r.Chunk.SourceFile]; ok {
			continue
		}
		seen[r.Chunk.SourceFile] = struct{}{}
		sources = append(sources, r.Chunk.SourceFile)
	}
	sort.Strings(sources)
	return sources
}

func appendSources(text string, sources []string) string {
	if len(sources) == 0 || strings.Contains(text, "Źródła:") {
		return text
	}
	return text + "\n\nŹródła: " + strings.Join(sources, ", ")
}
