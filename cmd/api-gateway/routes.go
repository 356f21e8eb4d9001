package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/irshad-lms-api/internal/authz"
	"github.com/noah-isme/irshad-lms-api/internal/handler"
	"github.com/noah-isme/irshad-lms-api/internal/middleware"
	"github.com/noah-isme/irshad-lms-api/internal/repository"
	"github.com/noah-isme/irshad-lms-api/internal/service"
	"github.com/noah-isme/irshad-lms-api/pkg/config"
)

type routeDeps struct {
	authService *service.AuthService
	userRepo    *repository.UserRepository
	auditRepo   *repository.AuditRepository

	auth          *handler.AuthHandler
	activeRole    *handler.ActiveRoleHandler
	paths         *handler.PathHandler
	sessions      *handler.SessionHandler
	enrollments   *handler.EnrollmentHandler
	requests      *handler.RequestHandler
	questions     *handler.QuestionHandler
	notifications *handler.NotificationHandler
	announcements *handler.AnnouncementHandler
	attendance    *handler.AttendanceHandler
	roles         *handler.RoleHandler
	exports       *handler.ExportHandler
	metrics       *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", d.auth.Login)
	api.POST("/auth/refresh", d.auth.Refresh)

	// Public catalog. Roles are loaded when a token is present so staff see
	// unpublished entries through the same routes.
	catalog := api.Group("", middleware.OptionalJWT(d.authService), middleware.OptionalLoadRoles(d.userRepo), middleware.WithResponseMeta())
	catalog.GET("/paths", d.paths.ListPaths)
	catalog.GET("/paths/:slug", d.paths.GetPath)
	catalog.GET("/paths/:slug/modules", d.paths.ListModules)
	catalog.GET("/modules/:id", d.paths.GetModule)
	catalog.GET("/modules/:id/teachers", d.paths.ListModuleTeachers)
	catalog.GET("/modules/:id/sessions", d.sessions.ListByModule)
	catalog.GET("/sessions/:id", d.sessions.Get)
	catalog.GET("/announcements", d.announcements.List)
	catalog.GET("/announcements/:id", d.announcements.Get)

	// Authenticated. Roles always come from the store, never from the token.
	authed := api.Group("", middleware.JWT(d.authService), middleware.LoadRoles(d.userRepo))
	authed.POST("/auth/logout", d.auth.Logout)
	authed.POST("/auth/change-password", d.auth.ChangePassword)
	authed.GET("/auth/me", d.auth.Me)

	authed.GET("/me/active-role", d.activeRole.Get)
	authed.PUT("/me/active-role", d.activeRole.Select)

	authed.POST("/modules/:id/enroll", d.enrollments.Enroll)
	authed.GET("/me/enrollments", d.enrollments.ListMine)

	authed.POST("/requests", d.requests.Submit)
	authed.GET("/me/requests", d.requests.ListMine)
	authed.GET("/requests/:id", d.requests.Get)

	authed.POST("/questions", d.questions.Ask)
	authed.GET("/me/questions", d.questions.ListMine)
	authed.GET("/questions/:id", d.questions.Get)

	authed.GET("/me/notifications", d.notifications.List)
	authed.GET("/me/notifications/unread-count", d.notifications.UnreadCount)
	authed.PUT("/me/notifications/:id/read", d.notifications.MarkRead)
	authed.POST("/me/notifications/read-all", d.notifications.MarkAllRead)

	authed.POST("/me/role-requests", d.roles.Request)
	authed.GET("/me/role-requests", d.roles.ListMine)

	// Teacher panel. Per-module scoping happens in the services.
	teacher := authed.Group("/teacher", middleware.RequireTeacherPanel())
	teacher.POST("/modules/:id/sessions", d.sessions.Create)
	teacher.PUT("/sessions/:id", d.sessions.Update)
	teacher.DELETE("/sessions/:id", d.sessions.Delete)

	teacher.GET("/modules/:id/questions", d.questions.ListForModule)
	teacher.POST("/questions/:id/answer", d.questions.Answer)

	teacher.POST("/sessions/:id/attendance", d.attendance.Mark)
	teacher.GET("/sessions/:id/attendance", d.attendance.ListBySession)
	teacher.GET("/modules/:id/attendance/summary", d.attendance.Summary)

	downloads := teacher.Group("", middleware.Audit(d.auditRepo, "export.download", "module"))
	downloads.GET("/modules/:id/exports/roster", d.exports.Roster)
	downloads.GET("/modules/:id/exports/attendance", d.exports.Attendance)

	// Admin panel.
	admin := authed.Group("/admin", middleware.RequireAdminPanel())

	pathsAdmin := admin.Group("", middleware.RequirePermission(authz.PermManagePaths))
	pathsAdmin.POST("/paths", d.paths.CreatePath)
	pathsAdmin.PUT("/paths/:id", d.paths.UpdatePath)
	pathsAdmin.DELETE("/paths/:id", d.paths.DeletePath)

	modulesAdmin := admin.Group("", middleware.RequirePermission(authz.PermManageModules))
	modulesAdmin.POST("/paths/:id/modules", d.paths.CreateModule)
	modulesAdmin.PUT("/modules/:id", d.paths.UpdateModule)
	modulesAdmin.POST("/modules/:id/teachers", d.paths.AssignTeacher)
	modulesAdmin.DELETE("/modules/:id/teachers/:userId", d.paths.UnassignTeacher)

	enrollAdmin := admin.Group("", middleware.RequirePermission(authz.PermManageEnrollments))
	enrollAdmin.GET("/enrollments", d.enrollments.List)
	enrollAdmin.GET("/enrollments/:id", d.enrollments.Get)
	enrollAdmin.POST("/enrollments/:id/decide", d.enrollments.Decide)
	enrollAdmin.PUT("/enrollments/:id/status", d.enrollments.UpdateStatus)

	requestAdmin := admin.Group("", middleware.RequirePermission(authz.PermRespondRequests))
	requestAdmin.GET("/requests", d.requests.List)
	requestAdmin.PUT("/requests/:id/status", d.requests.UpdateStatus)

	announceAdmin := admin.Group("", middleware.RequirePermission(authz.PermManageAnnouncements))
	announceAdmin.POST("/announcements", d.announcements.Create)
	announceAdmin.PUT("/announcements/:id", d.announcements.Update)
	announceAdmin.DELETE("/announcements/:id", d.announcements.Delete)

	admin.GET("/role-requests", d.roles.List)
	admin.POST("/role-requests/:id/decide", d.roles.Decide)
	admin.GET("/users", d.roles.ListUsers)
	admin.GET("/users/:id/roles", d.roles.UserRoles)
	admin.POST("/users/:id/roles", middleware.RequireDirector(), d.roles.Grant)
	admin.DELETE("/users/:id/roles/:role", middleware.RequireDirector(), d.roles.Revoke)

	admin.GET("/metrics", middleware.RequirePermission(authz.PermViewReports), d.metrics.Snapshot)
}
