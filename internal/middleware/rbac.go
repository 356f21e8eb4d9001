package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/models"
	appErrors "github.com/noah-isme/irshad-lms-api/pkg/errors"
	"github.com/noah-isme/irshad-lms-api/pkg/response"
)

// ContextRolesKey is the gin context key storing the durable role set.
const ContextRolesKey = "currentRoles"

// RoleSource loads the durable role set for a user. Roles are never read from
// the token: a revocation must take effect on the next request.
type RoleSource interface {
	Roles(ctx context.Context, userID string) (models.RoleSet, error)
}

// LoadRoles resolves the authenticated user's role set from the store and
// attaches it to the request context. Must run after JWT.
func LoadRoles(source RoleSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		roles, err := source.Roles(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roles"))
			c.Abort()
			return
		}

		c.Set(ContextRolesKey, roles)
		c.Next()
	}
}

// OptionalLoadRoles loads the role set when a user is authenticated and lets
// anonymous requests pass with no roles attached. Must run after OptionalJWT.
func OptionalLoadRoles(source RoleSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			c.Next()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if roles, err := source.Roles(c.Request.Context(), claims.UserID); err == nil {
			c.Set(ContextRolesKey, roles)
		}
		c.Next()
	}
}

// RolesFromContext returns the role set attached by LoadRoles, or nil.
func RolesFromContext(c *gin.Context) models.RoleSet {
	value, exists := c.Get(ContextRolesKey)
	if !exists {
		return nil
	}
	roles, ok := value.(models.RoleSet)
	if !ok {
		return nil
	}
	return roles
}

// RequirePermission blocks callers whose role set lacks the permission.
// Directors pass every check.
func RequirePermission(permission authz.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authz.HasPermission(RolesFromContext(c), permission) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireTeacherPanel blocks callers without the teacher, admin or director
// role. Module-level scoping still happens in the services.
func RequireTeacherPanel() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authz.CanAccessTeacherPanel(RolesFromContext(c)) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdminPanel blocks callers without the admin or director role.
func RequireAdminPanel() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authz.CanAccessAdminPanel(RolesFromContext(c)) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireDirector blocks callers without the director role.
func RequireDirector() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authz.CanAssignRoles(RolesFromContext(c)) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
