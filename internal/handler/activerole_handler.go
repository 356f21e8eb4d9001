package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/irshad-lms-api/internal/models"
	"github.com/noah-isme/irshad-lms-api/internal/service"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
	"github.com/noah-isme/irshad-lms-api/pkg/response"
)

const (
	// ActiveRoleCookie stores the viewing lens client-side. It is a UI
	// preference only; authorization never trusts it.
	ActiveRoleCookie       = "activeRole"
	activeRoleCookieMaxAge = 31536000
)

// ActiveRoleHandler wires the active-role endpoints.
type ActiveRoleHandler struct {
	service       *service.ActiveRoleService
	secureCookies bool
}

// NewActiveRoleHandler creates a new handler. secureCookies should be true
// outside local development.
func NewActiveRoleHandler(svc *service.ActiveRoleService, secureCookies bool) *ActiveRoleHandler {
	return &ActiveRoleHandler{service: svc, secureCookies: secureCookies}
}

func activeRoleFromCookie(c *gin.Context) models.ActiveRole {
	value, err := c.Cookie(ActiveRoleCookie)
	if err != nil {
		return ""
	}
	return models.ActiveRole(value)
}

func (h *ActiveRoleHandler) setCookie(c *gin.Context, lens models.ActiveRole) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ActiveRoleCookie, string(lens), activeRoleCookieMaxAge, "/", "", h.secureCookies, true)
}

// Get godoc
// @Summary Resolve active role
// @Description Reconciles the active-role cookie with the user's durable role set
// @Tags ActiveRole
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/active-role [get]
func (h *ActiveRoleHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	state, err := h.service.Resolve(c.Request.Context(), claims.UserID, activeRoleFromCookie(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	// A stale cookie is rewritten to the resolved lens.
	h.setCookie(c, state.ActiveRole)
	response.JSON(c, http.StatusOK, state, nil)
}

// Select godoc
// @Summary Switch active role
// @Description Switches the viewing lens; rejected if the lens is not backed by a held role
// @Tags ActiveRole
// @Accept json
// @Produce json
// @Param payload body object true "Requested active role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /me/active-role [put]
func (h *ActiveRoleHandler) Select(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		ActiveRole string `json:"active_role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "active_role is required"))
		return
	}

	state, err := h.service.Select(c.Request.Context(), claims.UserID, models.ActiveRole(payload.ActiveRole))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, state.ActiveRole)
	response.JSON(c, http.StatusOK, state, nil)
}
