/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tieubaoca/knowledge-be/config"
	"github.com/tieubaoca/knowledge-be/service"
	"github.com/tieubaoca/knowledge-be/types"
)

// batchIngestCmd walks a directory and stores every text file it finds,
// chunking files that exceed the configured chunk size.
var batchIngestCmd = &cobra.Command{
	Use:   "batch-ingest [dir]",
	Short: "Ingest every .txt and .md file under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		ctx := context.Background()

		e, err := newEngine(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.cleanup(context.Background())

		chunker := service.NewTextChunker(types.ChunkerConfig{
			MaxChunkSize: cfg.Chunker.MaxChunkSize,
			OverlapSize:  cfg.Chunker.OverlapSize,
		})

		var reqs []types.StoreDocumentRequest
		root := args[0]
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".txt" && ext != ".md" {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			chunks := chunker.Chunk(string(content))
			for _, chunk := range chunks {
				title := filepath.Base(path)
				if len(chunks) > 1 {
					title = fmt.Sprintf("%s#%d", title, chunk.Sequence)
				}
				reqs = append(reqs, types.StoreDocumentRequest{
					Title:   title,
					Content: chunk.Content,
					Metadata: map[string]any{
						"source": path,
						"chunk":  chunk.Sequence,
					},
				})
			}
			return nil
		})
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			fmt.Println("no .txt or .md files found")
			return nil
		}

		docs, err := e.knowledge.StoreDocumentBatch(ctx, reqs, func(status types.BatchStoreStatus) {
			if status.Status == types.StatusError {
				fmt.Printf("[%d/%d] %s: FAILED: %s\n", status.Processed, status.Total, status.Title, status.Message)
				return
			}
			fmt.Printf("[%d/%d] %s: stored as %s\n", status.Processed, status.Total, status.Title, status.DocumentID)
		})
		if err != nil {
			return err
		}

		stored := 0
		for _, doc := range docs {
			if doc != nil {
				stored++
			}
		}
		fmt.Printf("done: %d stored, %d failed\n", stored, len(docs)-stored)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchIngestCmd)
}
