package entity

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	entityrepo "github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Register registers entity routes
func Register(g *echo.Group) {
	g.GET("/:id", Get)
	g.GET("/:id/health", GetHealth)
	g.GET("/:id/provenance", GetProvenance)
}

// Get returns one entity with its attached health record.
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.Get")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	entity, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entity)
}

// GetHealth returns only the entity's reconciled health record.
func GetHealth(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.GetHealth")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	entity, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !entity.HasHealthRecord() {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s has no health record", id)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"entity_id":     entity.ID,
		"confidence":    entity.HealthConfidence,
		"health_record": entity.HealthRecord,
	})
}

// GetProvenance returns the recorded match edges for an entity.
func GetProvenance(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "entity_handler.GetProvenance")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	ctx, service, err := ectoinject.GetContext[*graph.ProvenanceService](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "provenance not available")
	}

	history, err := service.GetMatchHistory(ctx, id)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get provenance")
	}

	return c.JSON(http.StatusOK, history)
}
