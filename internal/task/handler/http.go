// Package handler exposes project task CRUD over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	projectservice "task-manager/backend/internal/project/service"
	"task-manager/backend/internal/server/middleware"
	"task-manager/backend/internal/task/domain"
	"task-manager/backend/internal/task/service"
)

// Handler serves the task routes.
type Handler struct {
	tasks *service.Service
}

// NewHandler returns a task Handler.
func NewHandler(tasks *service.Service) *Handler {
	return &Handler{tasks: tasks}
}

// RegisterRoutes mounts the task routes on g. All routes require auth.
func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/projects/:id/tasks", h.create)
	g.GET("/projects/:id/tasks", h.list)
	g.GET("/projects/:id/tasks/:taskId", h.get)
	g.PUT("/projects/:id/tasks/:taskId", h.update)
	g.DELETE("/projects/:id/tasks/:taskId", h.delete)
}

type taskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (h *Handler) create(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	callerID, _ := middleware.GetUserID(c.Request.Context())
	t, err := h.tasks.Create(c.Request.Context(), callerID, c.Param("id"), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, taskToResponse(t))
}

func (h *Handler) list(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	list, err := h.tasks.List(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	out := make([]taskResponse, len(list))
	for i, t := range list {
		out[i] = taskToResponse(t)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (h *Handler) get(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	t, err := h.tasks.Get(c.Request.Context(), callerID, c.Param("id"), c.Param("taskId"))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

func (h *Handler) update(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	callerID, _ := middleware.GetUserID(c.Request.Context())
	t, err := h.tasks.Update(c.Request.Context(), callerID, c.Param("id"), c.Param("taskId"), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(t))
}

func (h *Handler) delete(c *gin.Context) {
	callerID, _ := middleware.GetUserID(c.Request.Context())
	if err := h.tasks.Delete(c.Request.Context(), callerID, c.Param("id"), c.Param("taskId")); err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func taskToResponse(t *domain.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		DueDate:     t.DueDate,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func writeTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrTitleRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, projectservice.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, projectservice.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task operation failed"})
	}
}
