package main

import (
	"database/sql"
	"time"

	"maintenance-platform/internal/auth"
	"maintenance-platform/internal/httpapi"
	"maintenance-platform/internal/lifecycle"
	"maintenance-platform/internal/rbac"
	"maintenance-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type registerDeps struct {
	Auth   *auth.Manager
	Engine *lifecycle.Service
	Redis  *redis.Client
	DB     *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.DB != nil {
			if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
				c.JSON(503, gin.H{"status": "degraded", "db": "down"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	h := httpapi.Handlers{
		Auth:   deps.Auth,
		Engine: deps.Engine,
	}

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(deps.Auth))
	{
		v1.GET("/me", h.Me)

		requests := v1.Group("/requests")
		mutcap := httpapi.MutationCap{Redis: deps.Redis}.Middleware()
		{
			requests.POST("", mutcap, h.CreateRequest)
			requests.GET("/:id", h.GetRequest)
			requests.GET("/:id/history", h.RequestHistory)
			requests.GET("/:id/confirmation-status", h.ConfirmationStatus)

			requests.POST("/:id/submit", mutcap, h.SubmitRequest)
			requests.PATCH("/:id/status", mutcap, h.UpdateStatus)

			requests.POST("/:id/assign", mutcap,
				rbac.RequireAnyRole(rbac.RoleMaintenanceAdmin), h.AssignRequest)
			requests.POST("/:id/self-assign", mutcap,
				rbac.RequireAnyRole(rbac.RoleTechnician), h.SelfAssignRequest)
			requests.POST("/:id/unassign", mutcap,
				rbac.RequireAnyRole(rbac.RoleMaintenanceAdmin), h.UnassignRequest)

			requests.POST("/:id/confirm-completion", mutcap, h.ConfirmCompletion)
			requests.POST("/:id/reject-completion", mutcap,
				rbac.RequireAnyRole(rbac.RoleCustomer), h.RejectCompletion)
			requests.POST("/:id/close-without-confirmation", mutcap,
				rbac.RequireAnyRole(rbac.RoleMaintenanceAdmin), h.CloseWithoutConfirmation)
		}
	}
}
