// Package handler exposes project CRUD and membership management over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-manager/backend/internal/project/domain"
	"task-manager/backend/internal/project/service"
	"task-manager/backend/internal/server/middleware"
)

// Handler serves the project routes.
type Handler struct {
	projects *service.Service
}

// NewHandler returns a project Handler.
func NewHandler(projects *service.Service) *Handler {
	return &Handler{projects: projects}
}

// RegisterRoutes mounts the project routes on g. All routes require auth.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/projects", h.create)
	g.GET("/projects", h.list)
	g.GET("/projects/:id", h.get)
	g.PUT("/projects/:id", h.update)
	g.DELETE("/projects/:id", h.delete)
	g.GET("/projects/:id/members", h.listMembers)
	g.POST("/projects/:id/members", h.addMember)
	g.DELETE("/projects/:id/members/:userId", h.removeMember)
}

type projectRequest struct {
	Name string `json:"name" binding:"required"`
}

type projectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type memberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required"`
}

type memberResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) create(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	callerID, _ := middleware.GetUserID(c.Request.Context())
	p, err := h.projects.Create(c.Request.Context(), callerID, req.Name)
	if err != nil {
		writeProjectError(c, err)
		return
	}
	c.JSON(http.StatusCreated, projectToResponse(p))
}

func (h *Handler) list(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	list, err := h.projects.List(c.Request.Context(), callerID)
	if err != nil {
		writeProjectError(c, err)
		return
	}
	out := make([]projectResponse, len(list))
	for i, p := range list {
		out[i] = projectToResponse(p)
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

func (h *Handler) get(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	p, err := h.projects.Get(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		writeProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectToResponse(p))
}

func (h *Handler) update(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	callerID, _ := middleware.GetUserID(c.Request.Context())
	p, err := h.projects.Update(c.Request.Context(), callerID, c.Param("id"), req.Name)
	if err != nil {
		writeProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, projectToResponse(p))
}

func (h *Handler) delete(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	if err := h.projects.Delete(c.Request.Context(), callerID, c.Param("id")); err != nil {
		writeProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) listMembers(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	members, err := h.projects.ListMembers(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		writeProjectError(c, err)
		return
	}
	out := make([]memberResponse, len(members))
	for i, m := range members {
		out[i] = memberResponse{UserID: m.UserID, Role: m.Role}
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

func (h *Handler) addMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	callerID, _ := middleware.GetUserID(c.Request.Context())
	if err := h.projects.AddMember(c.Request.Context(), callerID, c.Param("id"), req.UserID, req.Role); err != nil {
		writeProjectError(c, err)
		return
	}
	c.JSON(http.StatusCreated, memberResponse{UserID: req.UserID, Role: req.Role})
}

func (h *Handler) removeMember(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	if err := h.projects.RemoveMember(c.Request.Context(), callerID, c.Param("id"), c.Param("userId")); err != nil {
		writeProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func projectToResponse(p *domain.Project) projectResponse {
	return projectResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func writeProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrLastOwner):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "project operation failed"})
	}
}
