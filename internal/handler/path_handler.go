package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/middleware"
	"github.com/noah-isme/irshad-lms-api/internal/service"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
	"github.com/noah-isme/irshad-lms-api/pkg/response"
)

// PathHandler wires catalog endpoints: paths, modules, teacher assignment.
type PathHandler struct {
	service *service.PathService
}

// NewPathHandler creates a new handler.
func NewPathHandler(svc *service.PathService) *PathHandler {
	return &PathHandler{service: svc}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// managementView reports whether the caller sees unpublished catalog entries.
func managementView(c *gin.Context) bool {
	return authz.CanAccessAdminPanel(middleware.RolesFromContext(c))
}

// ListPaths godoc
// @Summary List learning paths
// @Tags Catalog
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /paths [get]
func (h *PathHandler) ListPaths(c *gin.Context) {
	req := service.PathListRequest{
		PublishedOnly: !managementView(c),
		Search:        c.Query("search"),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 20),
	}

	paths, pagination, err := h.service.ListPaths(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, paths, pagination, middleware.ExtractMeta(c))
}

// GetPath godoc
// @Summary Get a path by slug
// @Tags Catalog
// @Produce json
// @Param slug path string true "Path slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /paths/{slug} [get]
func (h *PathHandler) GetPath(c *gin.Context) {
	path, err := h.service.GetPathBySlug(c.Request.Context(), c.Param("slug"), managementView(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path, nil)
}

// CreatePath godoc
// @Summary Create a path
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.SavePathRequest true "Path payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/paths [post]
func (h *PathHandler) CreatePath(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SavePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	path, err := h.service.CreatePath(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, path)
}

// UpdatePath godoc
// @Summary Update a path
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Path ID"
// @Param payload body service.SavePathRequest true "Path payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/paths/{id} [put]
func (h *PathHandler) UpdatePath(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SavePathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	path, err := h.service.UpdatePath(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, path, nil)
}

// DeletePath godoc
// @Summary Delete a path
// @Tags Catalog
// @Param id path string true "Path ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/paths/{id} [delete]
func (h *PathHandler) DeletePath(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeletePath(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListModules godoc
// @Summary List a path's modules
// @Tags Catalog
// @Produce json
// @Param slug path string true "Path slug"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /paths/{slug}/modules [get]
func (h *PathHandler) ListModules(c *gin.Context) {
	path, err := h.service.GetPathBySlug(c.Request.Context(), c.Param("slug"), managementView(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	modules, err := h.service.ListModules(c.Request.Context(), path.ID, managementView(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, nil)
}

// GetModule godoc
// @Summary Get a module
// @Tags Catalog
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /modules/{id} [get]
func (h *PathHandler) GetModule(c *gin.Context) {
	module, err := h.service.GetModule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !module.Published && !managementView(c) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "module not found"))
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// CreateModule godoc
// @Summary Create a module inside a path
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Path ID"
// @Param payload body service.SaveModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/paths/{id}/modules [post]
func (h *PathHandler) CreateModule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SaveModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	module, err := h.service.CreateModule(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// UpdateModule godoc
// @Summary Update a module
// @Tags Catalog
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body service.SaveModuleRequest true "Module payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/modules/{id} [put]
func (h *PathHandler) UpdateModule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SaveModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	module, err := h.service.UpdateModule(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// ListModuleTeachers godoc
// @Summary List teachers assigned to a module
// @Tags Catalog
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{id}/teachers [get]
func (h *PathHandler) ListModuleTeachers(c *gin.Context) {
	teachers, err := h.service.ModuleTeachers(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// AssignTeacher godoc
// @Summary Assign a teacher to a module
// @Tags Catalog
// @Accept json
// @Param id path string true "Module ID"
// @Param payload body object true "Teacher user ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/modules/{id}/teachers [post]
func (h *PathHandler) AssignTeacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "user_id is required"))
		return
	}

	if err := h.service.AssignTeacher(c.Request.Context(), claims.UserID, c.Param("id"), payload.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnassignTeacher godoc
// @Summary Remove a teacher from a module
// @Tags Catalog
// @Param id path string true "Module ID"
// @Param userId path string true "Teacher user ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/modules/{id}/teachers/{userId} [delete]
func (h *PathHandler) UnassignTeacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.UnassignTeacher(c.Request.Context(), claims.UserID, c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
