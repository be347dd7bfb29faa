package records

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/inspectionrecord"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var validate = validator.New()

// Register registers inspection record routes
func Register(g *echo.Group) {
	g.POST("", Ingest)
	g.GET("/stats", Stats)
}

// IngestRequest is a direct (non-Kafka) batch submission from a provider
// adapter.
type IngestRequest struct {
	Provider string                       `json:"provider" validate:"required"`
	Records  []models.RawInspectionRecord `json:"records" validate:"required,min=1"`
}

// IngestResponse reports how many records in the batch were newly staged.
type IngestResponse struct {
	Received int `json:"received"`
	Staged   int `json:"staged"`
}

// Ingest stages a batch of mapped inspection records.
func Ingest(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "records_handler.Ingest")
	defer span.End()

	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	for i := range req.Records {
		if req.Records[i].Provider == "" {
			req.Records[i].Provider = req.Provider
		}
		if req.Records[i].RestaurantName == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "every record requires a restaurant_name")
		}
		if req.Records[i].InspectionDate.IsZero() {
			return httperror.NewHTTPError(http.StatusBadRequest, "every record requires an inspection_date")
		}
	}

	ctx, repo, err := ectoinject.GetContext[*inspectionrecord.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	staged, err := repo.UpsertBatch(ctx, req.Records)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Received: len(req.Records),
		Staged:   staged,
	})
}

// Stats returns staged record counts by provider.
func Stats(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "records_handler.Stats")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*inspectionrecord.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	counts, err := repo.CountByProvider(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, counts)
}
