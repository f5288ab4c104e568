package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/server/quickconnect"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{common.ErrNotFound, http.StatusNotFound},
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrCredential, http.StatusBadRequest},
	{common.ErrQuotaExceeded, http.StatusForbidden},
	{common.ErrPublishInProgress, http.StatusConflict},
	{common.ErrPlatform, http.StatusBadGateway},
	{common.ErrConfiguration, http.StatusNotImplemented},
	{quickconnect.ErrNotImplemented, http.StatusNotImplemented},
	{common.ErrUnauthorized, http.StatusUnauthorized},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
}

// writeError maps err to a status and a client-safe message. Unknown errors
// are logged and reported as 500 without detail.
func (h *handler) writeError(c *gin.Context, err error) {
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			abortError(c, s.status, clientMessage(err, s.err))
			return
		}
	}
	h.log.Error(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	abortError(c, http.StatusInternalServerError, "Internal error")
}

// clientMessage strips the sentinel prefix from "sentinel: detail" errors.
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return msg
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
