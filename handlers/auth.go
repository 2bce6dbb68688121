package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docflow/docflow/server/internal/config"
	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/sessions"
	"github.com/docflow/docflow/server/internal/tokens"
	"github.com/docflow/docflow/server/internal/users"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/docflow/docflow/server/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	// autoVerify marks registered accounts verified; there is no mail delivery
	// to complete verification outside development.
	autoVerify bool
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		usersSvc:    u,
		sessionsSvc: s,
		autoVerify:  cfg.Server.Environment != "production",
	}
}

// Register mounts routes under /auth. protected guards /auth/me and must end
// with middleware.CallerMiddleware.
func (h *AuthHandler) Register(rg *gin.RouterGroup, protected ...gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
	a.GET("/me", append(protected, h.Me)...)
}

func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Please provide email and password"})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), users.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Department: req.Department,
		Verified:   h.autoVerify,
	})
	if err != nil {
		status := document.MapHTTPStatus(err)
		if status == http.StatusInternalServerError {
			logger.Errorf("register %s: %v", req.Email, err)
		}
		c.JSON(status, gin.H{"success": false, "error": document.Message(err)})
		return
	}
	logger.Infof("registered user %s (%s)", u.ID, u.Email)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": u})
}

// Login checks local credentials and issues an access token plus a refresh session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Please provide email and password"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials), errors.Is(err, users.ErrNotVerified):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		logger.Errorf("login %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "login failed"})
		return
	}

	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create session"})
		return
	}
	ttl := h.cfg.JWT.AccessTokenTTL
	access, err := tokens.GenerateAccessToken(h.cfg, u, ttl)
	if err != nil {
		logger.Errorf("failed to create access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"accessToken":  access,
		"refreshToken": rft,
		"expiresIn":    int(ttl / time.Second),
		"data":         u,
	})
}

// Refresh rotates a refresh token and returns a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "refreshToken required"})
		return
	}
	next, sess, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		logger.Errorf("refresh rotate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), sess.UserID)
	if err != nil || u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "user no longer exists"})
		return
	}
	ttl := h.cfg.JWT.AccessTokenTTL
	access, err := tokens.GenerateAccessToken(h.cfg, u, ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": access, "refreshToken": next, "expiresIn": int(ttl / time.Second)})
}

// Logout invalidates the refresh token and blacklists the presented access
// token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "refreshToken required"})
		return
	}
	if at := bearer(c); at != "" {
		if exp, err := parseExpFromJWT(at); err == nil {
			if err := sessions.BlacklistAccessToken(c.Request.Context(), at, time.Until(exp)); err != nil {
				logger.Errorf("blacklist access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to blacklist access token"})
				return
			}
		}
	}
	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "not authenticated"})
		return
	}
	u, err := h.usersSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("me %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "user lookup failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}

// CallerResolver maps verified claims to a docflow user id. Locally issued
// tokens carry the id as subject; provider tokens are linked through the
// user's OIDC subject, creating the user on first sight.
func CallerResolver(u *users.Service) middleware.CallerResolver {
	return func(ctx context.Context, claims map[string]interface{}) (string, error) {
		if iss, _ := claims["iss"].(string); iss == tokens.Issuer {
			sub, _ := claims["sub"].(string)
			return sub, nil
		}
		user, err := u.UpsertFromClaims(ctx, claims)
		if err != nil || user == nil {
			return "", err
		}
		return user.ID, nil
	}
}

func bearer(c *gin.Context) string {
	v, _ := c.Get(middleware.TokenKey)
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	const prefix = "Bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
