package entity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles entity persistence. Entities are owned by the directory;
// fern only reads them and attaches health records.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type entityRow struct {
	ID               string                               `db:"id"`
	Name             string                               `db:"name"`
	Address          string                               `db:"address"`
	Phone            *string                              `db:"phone"`
	Region           string                               `db:"region"`
	HealthRecord     database.JSONB[*models.HealthRecord] `db:"health_record"`
	HealthConfidence string                               `db:"health_confidence"`
	CreatedAt        time.Time                            `db:"created_at"`
	UpdatedAt        time.Time                            `db:"updated_at"`
}

func (row entityRow) toModel() models.Entity {
	return models.Entity{
		ID:               row.ID,
		Name:             row.Name,
		Address:          row.Address,
		Phone:            row.Phone,
		Region:           row.Region,
		HealthRecord:     row.HealthRecord.GetValue(),
		HealthConfidence: models.Confidence(row.HealthConfidence),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

var entityColumns = []string{"id", "name", "address", "phone", "region", "health_record", "health_confidence", "created_at", "updated_at"}

// GetAll returns every entity in the directory, ordered stably by creation.
func (r *Repository) GetAll(ctx context.Context) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities")
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []entityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	entities := make([]models.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, row.toModel())
	}
	return entities, nil
}

// GetByID retrieves a single entity.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns...)
	sb.From("entities")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var row entityRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}

	entity := row.toModel()
	return &entity, nil
}

// Upsert creates or replaces an entity's directory fields. Health data is not
// touched here; it is only ever written through ApplyUpdates.
func (r *Repository) Upsert(ctx context.Context, entity models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO entities (id, name, address, phone, region, health_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', $6, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			region = EXCLUDED.region,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, entity.ID, entity.Name, entity.Address, entity.Phone, entity.Region, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": entity.ID}).Error("Failed to upsert entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert entity")
	}
	return nil
}

// ApplyUpdates writes a batch of accepted health-record replacements in a
// single transaction. Either every update lands or none do.
func (r *Repository) ApplyUpdates(ctx context.Context, updates []models.EntityUpdate) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ApplyUpdates")
	defer span.End()

	if len(updates) == 0 {
		return 0, nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "ApplyUpdates",
		"update_count": len(updates),
	})

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin transaction")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply updates")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	applied := 0
	for _, update := range updates {
		record := database.JSONB[*models.HealthRecord]{Data: update.HealthRecord}
		result, err := tx.ExecContext(ctx,
			`UPDATE entities SET health_record = $1, health_confidence = $2, updated_at = $3 WHERE id = $4`,
			record, string(update.Confidence), now, update.EntityID,
		)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"entity_id": update.EntityID}).Error("Failed to update entity health record")
			return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply updates")
		}
		rows, _ := result.RowsAffected()
		applied += int(rows)
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit updates")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply updates")
	}

	log.WithFields(map[string]any{"applied": applied}).Info("Applied health record updates")
	return applied, nil
}
