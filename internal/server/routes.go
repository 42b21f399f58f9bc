package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/motifs/internal/server/middleware"
	"github.com/OFFIS-RIT/motifs/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Session routes
	apiRoutes.GET("/sessions/:unit_id/graph", routes.GetSessionGraphHandler, middleware.RequirePermission(middleware.PermGraphView))
	apiRoutes.GET("/sessions/:unit_id/similar", routes.GetSimilarSessionsHandler, middleware.RequirePermission(middleware.PermGraphView))

	// Motif routes
	apiRoutes.GET("/motifs/:hash", routes.GetMotifsHandler, middleware.RequirePermission(middleware.PermMotifView))

	// Job routes
	apiRoutes.POST("/jobs/build", routes.PostBuildJobHandler, middleware.RequirePermission(middleware.PermJobBuild))
	apiRoutes.POST("/jobs/mine", routes.PostMineJobHandler, middleware.RequirePermission(middleware.PermJobMine))
}
