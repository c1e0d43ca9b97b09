package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tieubaoca/knowledge-be/types"
)

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, types.DataResponse{
		Status:  types.StatusError,
		Message: message,
	})
}

func sendSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, types.DataResponse{
		Status: types.StatusSuccess,
		Data:   data,
	})
}

// sendServiceError maps the engine's error taxonomy onto HTTP statuses.
// Consistency and partial-delete states get 409 so callers can tell "retry
// the delete" apart from a hard failure.
func sendServiceError(c *gin.Context, err error) {
	var validationErr *types.ValidationError
	var providerErr *types.ProviderError
	var consistencyErr *types.ConsistencyError
	var partialErr *types.PartialDeleteError

	switch {
	case errors.As(err, &validationErr):
		sendError(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, types.ErrNotFound):
		sendError(c, http.StatusNotFound, "document not found")
	case errors.As(err, &consistencyErr), errors.As(err, &partialErr):
		sendError(c, http.StatusConflict, err.Error())
	case errors.As(err, &providerErr):
		sendError(c, http.StatusBadGateway, err.Error())
	default:
		sendError(c, http.StatusInternalServerError, err.Error())
	}
}
