package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crowdwatch-api/internal/middleware"
)

// Routes groups the handlers and guards mounted under the API prefix.
type Routes struct {
	Auth          *AuthHandler
	Admin         *AdminHandler
	System        *SystemHandler
	Authenticator middleware.Authenticator
	LoginLimiter  *middleware.LoginRateLimiter
}

// Register mounts every endpoint on api. Aliases share a handler method.
func (rt Routes) Register(api *gin.RouterGroup) {
	limit := func(c *gin.Context) { c.Next() }
	if rt.LoginLimiter != nil {
		limit = rt.LoginLimiter.Middleware()
	}
	protected := middleware.Authenticate(rt.Authenticator)

	api.GET("/health", rt.System.Health)

	api.POST("/login", limit, rt.Auth.Login)
	api.POST("/admin-login", limit, rt.Auth.AdminLogin)
	api.POST("/admin/login", limit, rt.Auth.AdminLogin)
	api.POST("/signup", rt.Auth.Signup)
	api.POST("/register", rt.Auth.Signup)
	api.POST("/refresh", rt.Auth.Refresh)
	api.POST("/logout", rt.Auth.Logout)
	api.POST("/verify", rt.Auth.Verify)
	api.POST("/verify-admin", rt.Auth.VerifyAdmin)
	api.GET("/me", protected, rt.Auth.Me)

	admin := api.Group("/admin", protected, middleware.RequireAdmin())
	admin.GET("/users", rt.Admin.ListUsers)
	admin.GET("/users/export", rt.Admin.ExportUsers)
	admin.DELETE("/users/:userId", rt.Admin.DeleteUser)
}
