package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// errorBody is the uniform error response shape.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError maps an error to its HTTP status and writes the body.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrCredentialNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrScheduleRunning):
		status = http.StatusConflict
	case domain.CodeOf(err) == domain.CodeScheduleValidation:
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, errorBody{Error: err.Error(), Code: string(domain.CodeOf(err))})
}

// respondBadRequest writes a 400 with the given message.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg})
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// queryInt64 parses an int64 query parameter, zero when absent.
func queryInt64(c *gin.Context, name string) int64 {
	n, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// pagination extracts page and page_size, clamped to the service cap.
func pagination(c *gin.Context) (page, pageSize int) {
	page = queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize = queryInt(c, "page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
