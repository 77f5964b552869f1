package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// respondError maps the error taxonomy to HTTP at the boundary; handlers
// never pick status codes for domain errors themselves.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), ErrorResponse{Error: err.Error()})
}

// hostID reads the host identity set by the JWT middleware.
func hostID(c *gin.Context) uint {
	v, _ := c.Get("host_id")
	id, _ := v.(uint)
	return id
}
