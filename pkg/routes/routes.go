// Package routes mounts the HTTP surface: master rows, the staging review
// queue, the build workflow and health probes.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/routes/amcmaster"
	"github.com/Ramsey-B/aster/pkg/routes/build"
	"github.com/Ramsey-B/aster/pkg/routes/health"
	"github.com/Ramsey-B/aster/pkg/routes/staging"
)

// RegisterAll wires middleware and every route group onto the echo server.
func RegisterAll(e *echo.Echo, logger ectologger.Logger, checker *health.Checker) {
	e.Use(otelecho.Middleware("aster"))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.HTTPErrorHandler = middleware.Error(logger)

	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	amcmaster.Register(api.Group("/amcs"))
	staging.Register(api.Group("/staging"))
	build.Register(api.Group("/build"))
}
