package amcmaster

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/aster/internal/repositories/amcmaster"
	"github.com/Ramsey-B/aster/internal/repositories/amcstaging"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/normalizers"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var validate = validator.New()

// Register registers AMC master routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.POST("", Create)
	g.GET("/coverage", Coverage)
	g.POST("/codes", AttachCode)
	g.GET("/:id", Get)
	g.PUT("/:id/code", UpdateCode)
}

// List returns a page of master rows
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "amcmaster_handler.List")
	defer span.End()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*amcmaster.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Create creates a canonical AMC row directly, outside the build workflow
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "amcmaster_handler.Create")
	defer span.End()

	var req models.CreateAmcMasterRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*amcmaster.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	master := models.AmcMaster{
		AmcID:        uuid.New().String(),
		AmcCode:      normalizers.NormalizeAmcCode(req.AmcCode),
		AmcShortName: normalizers.NormalizeAmcName(req.AmcShortName),
		AmcFullName:  req.AmcFullName,
	}

	result, isNew, err := repo.Create(ctx, master)
	if err != nil {
		return err
	}
	if !isNew {
		return httperror.NewHTTPError(http.StatusConflict, "amc with this code already exists")
	}

	return c.JSON(http.StatusCreated, result)
}

// Get returns a single master row by id
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "amcmaster_handler.Get")
	defer span.End()

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*amcmaster.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// AttachCode attaches one registrar code to a master row addressed by id or
// by name
func AttachCode(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "amcmaster_handler.AttachCode")
	defer span.End()

	var req models.AttachCodeRequest
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

	result, err := svc.AttachCodeByTarget(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// UpdateCode replaces a master row's canonical code
func UpdateCode(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "amcmaster_handler.UpdateCode")
	defer span.End()

	id := c.Param("id")

	var req models.UpdateAmcCodeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*amcmaster.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := repo.UpdateCode(ctx, id, normalizers.NormalizeAmcCode(req.AmcCode)); err != nil {
		return err
	}

	result, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// Coverage reports master size and per-source code coverage
func Coverage(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "amcmaster_handler.Coverage")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*amcmaster.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	coverage, err := repo.CoverageBySource(ctx)
	if err != nil {
		return err
	}
	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}

	ctx, staging, err := ectoinject.GetContext[*amcstaging.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	byStatus, err := staging.CountByStatus(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.CoverageSummary{
		MasterCount:   count,
		PendingReview: byStatus[models.StagingPending],
		Approved:      byStatus[models.StagingApproved],
		Coverage:      coverage,
	})
}
