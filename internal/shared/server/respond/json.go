package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListResponse is the envelope for collection endpoints.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

func Accepted(c *gin.Context, payload any) {
	JSON(c, http.StatusAccepted, payload)
}

// Items writes a list envelope; a nil slice is sent as [].
func Items[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	OK(c, ListResponse[T]{Items: items, Count: len(items)})
}
