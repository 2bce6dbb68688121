package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/docflow/docflow/server/internal/sessions"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares.
const (
	ClaimsKey   = "claims"
	TokenKey    = "accessToken"
	CallerIDKey = "callerId"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// CallerResolver maps verified claims to the docflow user id of the caller.
type CallerResolver func(ctx context.Context, claims map[string]interface{}) (string, error)

// AuthMiddleware verifies Bearer tokens with ver, rejects revoked tokens and
// stores the claims on the context.
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			abort(c, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			abort(c, http.StatusUnauthorized, "invalid Authorization header")
			return
		}

		revoked, err := sessions.IsAccessTokenBlacklisted(c.Request.Context(), token)
		if err != nil {
			logger.Errorf("blacklist check failed: %v", err)
			abort(c, http.StatusInternalServerError, "token check failed")
			return
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "token revoked")
			return
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Debugf("token verification failed: %v", err)
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			abort(c, http.StatusUnauthorized, "failed to parse claims")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// CallerMiddleware runs after AuthMiddleware and establishes the caller
// identity every document operation is performed as.
func CallerMiddleware(resolve CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, _ := c.Get(ClaimsKey)
		claims, ok := v.(map[string]interface{})
		if !ok {
			abort(c, http.StatusUnauthorized, "not authenticated")
			return
		}
		id, err := resolve(c.Request.Context(), claims)
		if err != nil || id == "" {
			if err != nil {
				logger.Warnf("resolve caller: %v", err)
			}
			abort(c, http.StatusUnauthorized, "unknown user")
			return
		}
		c.Set(CallerIDKey, id)
		c.Next()
	}
}

// CallerID returns the caller established by CallerMiddleware.
func CallerID(c *gin.Context) (string, bool) {
	id := c.GetString(CallerIDKey)
	return id, id != ""
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "error": msg})
}
