package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/logging"
	"github.com/dmitrijs2005/crosspost/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// jwtAuth rejects requests without a valid bearer token and stores the user
// id for handlers.
func jwtAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		userID, err := auth.GetUserIDFromToken(token, secret)
		if err != nil {
			msg := "Unauthorized"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "Token expired"
			}
			abortError(c, http.StatusUnauthorized, msg)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// cronAuth accepts the shared secret as ?secret= or a bearer token. With no
// secret configured every request is refused.
func cronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.Query(common.CronSecretQueryParam)
		if got == "" {
			got = bearerToken(c)
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abortError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func requestLogging(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
