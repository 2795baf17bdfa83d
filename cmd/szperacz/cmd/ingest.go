package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzurek/szperacz/internal/store"
)

// chunkRecord is the JSON shape produced by the extraction pipeline.
type chunkRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	SourceFile string `json:"source_file"`
	Page       int    `json:"page"`
	ChunkType  string `json:"chunk_type"`
	ElementID  string `json:"element_id"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <chunks.json>",
	Short: "Ingest extracted chunks into the index",
	Long: `Reads a JSON array of chunk records produced by the extraction
pipeline, embeds them, stores them and rebuilds the lexical index.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read chunks file: %w", err)
		}
		var records []chunkRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse chunks file: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("nothing to ingest")
			return nil
		}

		now := time.Now()
		chunks := make([]*store.Chunk, 0, len(records))
		for i, rec := range records {
			if rec.ID == "" {
				return fmt.Errorf("record %d has no id", i)
			}
			if rec.Content == "" {
				return fmt.Errorf("record %d (%s) has no content", i, rec.ID)
			}
			chunkType := store.ChunkType(rec.ChunkType)
			if chunkType == "" {
				chunkType = store.ChunkTypeText
			}
			chunks = append(chunks, &store.Chunk{
				ID:         rec.ID,
				Content:    rec.Content,
				SourceFile: rec.SourceFile,
				Page:       rec.Page,
				ChunkType:  chunkType,
				ElementID:  rec.ElementID,
				CreatedAt:  now,
			})
		}

		if err := a.coord.Ingest(ctx, chunks); err != nil {
			return err
		}
		fmt.Printf("ingested %d chunks\n", len(chunks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
