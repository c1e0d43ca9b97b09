/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/tieubaoca/knowledge-be/config"
	"github.com/tieubaoca/knowledge-be/handler"
	"github.com/tieubaoca/knowledge-be/service"
)

// startCmd runs the HTTP API server.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the knowledge base API server",
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

		documentHandler := handler.NewDocumentHandler(e.knowledge)
		searchHandler := handler.NewSearchHandler(e.search)
		ingestHandler := handler.NewIngestHandler(e.knowledge)
		corsHandler := handler.NewCorsHandler()
		wsService := service.NewWebSocketService(e.knowledge, e.logger)

		router := gin.Default()
		router.Use(corsHandler.CorsMiddleware)

		api := router.Group("/api/v1")
		{
			api.POST("/documents", documentHandler.HandleStoreDocument)
			api.GET("/documents/get", documentHandler.HandleGetDocument)
			api.DELETE("/documents/delete", documentHandler.HandleDeleteDocument)
			api.POST("/documents/search", searchHandler.HandleSearch)
			api.POST("/documents/batch", ingestHandler.HandleBatchStore)
			api.GET("/ws/ingest", func(c *gin.Context) {
				wsService.HandleIngest(c.Writer, c.Request)
			})
		}

		e.logger.Info("starting server", "port", cfg.Port, "storage", cfg.Storage, "provider", cfg.Embedding.Provider)
		return router.Run(":" + cfg.Port)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
