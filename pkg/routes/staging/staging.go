package staging

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/repositories/amcstaging"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/workflow"
)

var validate = validator.New()

// Register registers staging review routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/pending", ListPending)
	g.GET("/export", ExportPending)
	g.POST("/bulk-approve", BulkApprove)
	g.GET("/:id", Get)
	g.POST("/:id/review", Review)
}

// List returns a page of staged candidates, optionally filtered by status
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "staging_handler.List")
	defer span.End()

	var status *models.StagingStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, ok := models.ParseStagingStatus(raw)
		if !ok {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown status %q", raw)
		}
		status = &parsed
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*amcstaging.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.List(ctx, status, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListPending returns every pending candidate in review order
func ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "staging_handler.ListPending")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*amcstaging.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	candidates, err := repo.ListPending(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, candidates)
}

// Get returns a single staged candidate by id
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "staging_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*amcstaging.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	candidate, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, candidate)
}

// Review approves or rejects a single staged candidate
func Review(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "staging_handler.Review")
	defer span.End()

	id := c.Param("id")

	var req models.ReviewStagingRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}

	candidate, err := svc.ReviewStaging(ctx, id, req)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"staging_id":  id,
			"status":      req.Status,
			"reviewed_by": req.ReviewedBy,
		}).Info("Reviewed staged candidate")
	}

	return c.JSON(http.StatusOK, candidate)
}

// BulkApprove approves every pending candidate at or above the threshold.
// A zero threshold falls back to the configured auto-approve threshold.
func BulkApprove(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "staging_handler.BulkApprove")
	defer span.End()

	var req models.BulkApproveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Threshold == 0 {
		ctx2, cfg, err := ectoinject.GetContext[config.Config](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get config")
		}
		ctx = ctx2
		req.Threshold = cfg.AutoApproveThreshold
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get resolver")
	}

	result, err := svc.BulkApprove(ctx, req.Threshold)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ExportPending streams the pending review queue as a CSV spreadsheet
func ExportPending(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "staging_handler.ExportPending")
	defer span.End()

	ctx, builder, err := ectoinject.GetContext[*workflow.Builder](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get builder")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="amc_pending_review.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	if _, err := builder.ExportPending(ctx, c.Response()); err != nil {
		return err
	}
	return nil
}
