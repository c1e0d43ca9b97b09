package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tieubaoca/knowledge-be/service"
	"github.com/tieubaoca/knowledge-be/types"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{
		search: search,
	}
}

func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, err)
		return
	}
	sendSuccess(c, types.SearchResponse{Results: results})
}
