package build

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/workflow"
)

var validate = validator.New()

// Register registers build workflow routes
func Register(g *echo.Group) {
	g.POST("", Run)
	g.POST("/extract", Extract)
	g.GET("/summary", Summary)
	g.POST("/resolve", Resolve)
	g.POST("/promote", Promote)
	g.POST("/codes/:source", BulkUpdateCodes)
}

// Run executes a full build pass: extract, resolve, auto-approve, promote
func Run(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "build_handler.Run")
	defer span.End()

	ctx, builder, err := ectoinject.GetContext[*workflow.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get builder")
	}

	summary, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"extracted":       summary.Extracted,
			"direct_resolved": summary.DirectResolved,
			"staged":          summary.Staged,
			"promoted":        summary.Promoted,
		}).Info("Completed master build")
	}

	return c.JSON(http.StatusOK, summary)
}

// Extract runs extraction only: stage or resolve every raw reference
// without approving or promoting anything
func Extract(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "build_handler.Extract")
	defer span.End()

	ctx, builder, err := ectoinject.GetContext[*workflow.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get builder")
	}

	summary, err := builder.Extract(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}

// Summary reports the current state of the master and the review queue
func Summary(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "build_handler.Summary")
	defer span.End()

	ctx, builder, err := ectoinject.GetContext[*workflow.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get builder")
	}

	summary, err := builder.Summary(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, summary)
}

// Resolve resolves a single raw reference against the current master
func Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "build_handler.Resolve")
	defer span.End()

	var req models.ResolveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	source, ok := models.ParseSource(req.Source)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown source %q", req.Source)
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}

	result, err := svc.Resolve(ctx, models.RawAmcReference{
		Source:  source,
		AmcCode: req.AmcCode,
		AmcName: req.AmcName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Promote turns pending NO_MATCH candidates into new master rows
func Promote(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "build_handler.Promote")
	defer span.End()

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}

	promoted, err := svc.PromoteNewAmcs(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]int{"promoted": promoted})
}

// BulkUpdateCodes applies a CSV of (amc_name, amc_code) pairs for one
// source. Row failures are reported, not fatal.
func BulkUpdateCodes(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "build_handler.BulkUpdateCodes")
	defer span.End()

	source := c.Param("source")

	ctx, builder, err := ectoinject.GetContext[*workflow.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get builder")
	}

	result, err := builder.BulkUpdateCodes(ctx, source, c.Request().Body)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
