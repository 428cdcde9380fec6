package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/spice-sorter/internal/common"
	"github.com/Veraticus/spice-sorter/internal/storage"
)

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported as 500.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		common.LogError(c.Request.Context(), err, "Request failed", common.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var userErr *common.UserError
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateEntry), errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidTransaction),
		errors.Is(err, common.ErrUnsupportedFormat),
		errors.Is(err, common.ErrEmptyStatement),
		errors.Is(err, storage.ErrInvalidCategory),
		errors.Is(err, storage.ErrEmptyString),
		errors.As(err, &userErr):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrStoreUnavailable), errors.Is(err, common.ErrStoreBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
