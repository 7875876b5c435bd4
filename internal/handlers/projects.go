package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/service"
)

type projectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h HandlerSet) ListProjects(c *gin.Context) {
	projects, err := h.svc.Projects.List(c.Request.Context(), caller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": mapSlice(projects, newProjectResponse)})
}

func (h HandlerSet) GetProject(c *gin.Context) {
	project, err := h.svc.Projects.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProjectResponse(project))
}

func (h HandlerSet) CreateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	project, err := h.svc.Projects.Create(c.Request.Context(), caller(c), service.ProjectInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Color:       deref(req.Color),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProjectResponse(project))
}

func (h HandlerSet) UpdateProject(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	project, err := h.svc.Projects.Update(c.Request.Context(), caller(c), c.Param("id"), service.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProjectResponse(project))
}

func (h HandlerSet) DeleteProject(c *gin.Context) {
	if err := h.svc.Projects.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
