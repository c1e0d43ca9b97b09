/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tieubaoca/knowledge-be/config"
	"github.com/tieubaoca/knowledge-be/database"
)

// resetIndexCmd drops and recreates the vector collection. Documents in the
// document store are untouched; their vectors must be re-ingested afterwards.
var resetIndexCmd = &cobra.Command{
	Use:   "reset-index",
	Short: "Drop and recreate the Weaviate vector collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		index, err := database.NewWeaviateIndex(database.WeaviateConfig{
			Host:      cfg.Weaviate.Host,
			APIKey:    cfg.Weaviate.APIKey,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.StoreTimeout,
		}, logger)
		if err != nil {
			return err
		}

		if err := index.DropCollection(ctx); err != nil {
			return err
		}
		if err := index.EnsureCollection(ctx); err != nil {
			return err
		}
		fmt.Println("vector collection reset")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetIndexCmd)
}
