package reconciliation

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/matchreport"
	"github.com/Ramsey-B/fern/pkg/processor"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Register registers reconciliation routes
func Register(g *echo.Group) {
	g.POST("", Run)
	g.GET("/reports", ListReports)
	g.GET("/reports/:run_id", GetReport)
}

// Run triggers a full reconciliation pass and returns its report.
func Run(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconciliation_handler.Run")
	defer span.End()

	ctx, proc, err := ectoinject.GetContext[*processor.Processor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "processor not available")
	}

	report, err := proc.RunReconciliation(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}

// ListReports returns past run reports, most recent first.
func ListReports(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconciliation_handler.ListReports")
	defer span.End()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	ctx, repo, err := ectoinject.GetContext[*matchreport.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	reports, err := repo.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, reports)
}

// GetReport returns one run's report.
func GetReport(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "reconciliation_handler.GetReport")
	defer span.End()

	runID := c.Param("run_id")
	if runID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "run_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*matchreport.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	report, err := repo.GetByRunID(ctx, runID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, report)
}
