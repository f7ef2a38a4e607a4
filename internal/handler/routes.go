package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/internal/model"
	"github.com/suteetoe/storefront/pkg/jwtutil"
	"github.com/suteetoe/storefront/pkg/middleware"
)

// RegisterRoutes mounts the health and store endpoints on e
func RegisterRoutes(e *echo.Echo, h *StoreHandler, jwtUtil *jwtutil.JWTUtil) {
	e.GET("/health", HealthCheck)

	stores := e.Group("/stores")
	stores.POST("/create-with-images", h.CreateWithImages)
	stores.POST("/validate", h.Validate)
	stores.POST("/check-exists", h.CheckExists)
	stores.GET("/public/:slug", h.Public)
	stores.GET("/list", h.List)

	// Operator only
	stores.POST("/cleanup", h.Cleanup,
		middleware.JWTAuthMiddleware(jwtUtil),
		middleware.RequireRole(model.RoleAdmin))
}
