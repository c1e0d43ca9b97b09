/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tieubaoca/knowledge-be/config"
	"github.com/tieubaoca/knowledge-be/types"
)

// ingestCmd stores a single file as one document.
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a single file into the knowledge base",
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

		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		doc, err := e.knowledge.StoreDocument(ctx, types.StoreDocumentRequest{
			Title:   filepath.Base(path),
			Content: string(content),
			Metadata: map[string]any{
				"source": path,
			},
		})
		if err != nil {
			return err
		}
		fmt.Printf("stored document %s (%s)\n", doc.ID, doc.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
