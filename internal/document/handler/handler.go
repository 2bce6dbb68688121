package handler

import (
	"context"
	"net/http"

	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/document/service"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/docflow/docflow/server/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type createRequest struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Type          document.Type     `json:"type"`
	Priority      document.Priority `json:"priority"`
	ReceiverEmail string            `json:"receiverEmail"`
}

type statusRequest struct {
	Status  document.Status `json:"status"`
	Comment string          `json:"comment"`
	Version *int64          `json:"version,omitempty"`
}

type forwardRequest struct {
	ReceiverEmail string `json:"receiverEmail"`
	Comment       string `json:"comment"`
	Version       *int64 `json:"version,omitempty"`
}

// RegisterDocumentRoutes mounts the workflow endpoints on rg. rg must run
// middleware.CallerMiddleware so every handler has a caller id.
func RegisterDocumentRoutes(rg *gin.RouterGroup, svc service.Service) {
	h := &handler{svc: svc}
	rg.POST("", h.create)
	rg.GET("", h.list(svc.Participating))
	rg.GET("/inbox", h.list(svc.Inbox))
	rg.GET("/received", h.list(svc.Inbox))
	rg.GET("/sent", h.list(svc.Outbox))
	rg.GET("/outbox", h.list(svc.Outbox))
	rg.GET("/:id", h.get)
	rg.PUT("/:id/status", h.updateStatus)
	rg.PUT("/:id/forward", h.forward)
}

type handler struct {
	svc service.Service
}

type lister func(ctx context.Context, callerID string) ([]*document.View, error)

func (h *handler) create(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.Create(c.Request.Context(), caller, service.CreateInput{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Priority:      req.Priority,
		ReceiverEmail: req.ReceiverEmail,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": doc})
}

func (h *handler) list(fn lister) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerID(c)
		if !ok {
			return
		}
		views, err := fn(c.Request.Context(), caller)
		if err != nil {
			failErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(views), "data": views})
	}
}

func (h *handler) get(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (h *handler) updateStatus(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.UpdateStatus(c.Request.Context(), caller, c.Param("id"), service.StatusInput{
		Status:  req.Status,
		Comment: req.Comment,
		Version: req.Version,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
}

func (h *handler) forward(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req forwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := h.svc.Forward(c.Request.Context(), caller, c.Param("id"), service.ForwardInput{
		ReceiverEmail: req.ReceiverEmail,
		Comment:       req.Comment,
		Version:       req.Version,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
}

func callerID(c *gin.Context) (string, bool) {
	id, ok := middleware.CallerID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Not authorized, no token")
	}
	return id, ok
}

func failErr(c *gin.Context, err error) {
	status := document.MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	fail(c, status, document.Message(err))
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
