package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tieubaoca/knowledge-be/service"
	"github.com/tieubaoca/knowledge-be/types"
)

type IngestHandler struct {
	knowledge *service.KnowledgeService
}

func NewIngestHandler(knowledge *service.KnowledgeService) *IngestHandler {
	return &IngestHandler{
		knowledge: knowledge,
	}
}

// HandleBatchStore ingests a batch of documents and streams per-document
// progress to the client as SSE events, ending with a summary event.
func (h *IngestHandler) HandleBatchStore(c *gin.Context) {
	var req types.BatchStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	statusChan := make(chan types.BatchStoreStatus)
	doneChan := make(chan error, 1)
	clientCtx := c.Request.Context()
	go func() {
		_, err := h.knowledge.StoreDocumentBatch(clientCtx, req.Documents, func(status types.BatchStoreStatus) {
			// Drop the status if the client is gone so the batch goroutine
			// never blocks on an abandoned channel.
			select {
			case statusChan <- status:
			case <-clientCtx.Done():
			}
		})
		close(statusChan)
		doneChan <- err
	}()

	clientGone := c.Request.Context().Done()
	stored := 0
	failed := 0
	for {
		select {
		case <-clientGone:
			return
		case status, ok := <-statusChan:
			if !ok {
				if err := <-doneChan; err != nil {
					sendServiceError(c, err)
					return
				}
				c.SSEvent("done", gin.H{"stored": stored, "failed": failed})
				c.Writer.Flush()
				return
			}
			if status.Status == types.StatusSuccess {
				stored++
			} else {
				failed++
			}
			jsonStatus, err := json.Marshal(status)
			if err != nil {
				continue
			}
			c.SSEvent("message", string(jsonStatus))
			c.Writer.Flush()
		}
	}
}
