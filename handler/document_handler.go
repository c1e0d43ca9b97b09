package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tieubaoca/knowledge-be/service"
	"github.com/tieubaoca/knowledge-be/types"
)

type DocumentHandler struct {
	knowledge *service.KnowledgeService
}

func NewDocumentHandler(knowledge *service.KnowledgeService) *DocumentHandler {
	return &DocumentHandler{
		knowledge: knowledge,
	}
}

func (h *DocumentHandler) HandleStoreDocument(c *gin.Context) {
	var req types.StoreDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.knowledge.StoreDocument(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	sendSuccess(c, doc)
}

func (h *DocumentHandler) HandleGetDocument(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		sendError(c, http.StatusBadRequest, "id parameter is required")
		return
	}

	doc, err := h.knowledge.GetDocument(c.Request.Context(), id)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	sendSuccess(c, doc)
}

func (h *DocumentHandler) HandleDeleteDocument(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		sendError(c, http.StatusBadRequest, "id parameter is required")
		return
	}

	if err := h.knowledge.DeleteDocument(c.Request.Context(), id); err != nil {
		sendServiceError(c, err)
		return
	}
	sendSuccess(c, types.DeleteDocumentRequest{ID: id})
}
