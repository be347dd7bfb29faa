package inspectionrecord

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository stages raw inspection records between ingestion and
// reconciliation runs.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new inspection record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type recordRow struct {
	ID                string                             `db:"id"`
	SourceSystemID    *string                            `db:"source_system_id"`
	Provider          string                             `db:"provider"`
	RestaurantName    string                             `db:"restaurant_name"`
	RestaurantAddress string                             `db:"restaurant_address"`
	RestaurantPhone   *string                            `db:"restaurant_phone"`
	InspectionDate    time.Time                          `db:"inspection_date"`
	Score             *float64                           `db:"score"`
	Grade             *string                            `db:"grade"`
	Violations        database.JSONB[[]models.Violation] `db:"violations"`
	ActionText        *string                            `db:"action_text"`
	Fingerprint       string                             `db:"fingerprint"`
	CreatedAt         time.Time                          `db:"created_at"`
}

func (row recordRow) toModel() models.RawInspectionRecord {
	record := models.RawInspectionRecord{
		Provider:          row.Provider,
		RestaurantName:    row.RestaurantName,
		RestaurantAddress: row.RestaurantAddress,
		InspectionDate:    row.InspectionDate,
		Score:             row.Score,
		Grade:             row.Grade,
		Violations:        row.Violations.GetValue(),
	}
	if row.SourceSystemID != nil {
		record.SourceSystemID = *row.SourceSystemID
	}
	if row.RestaurantPhone != nil {
		record.RestaurantPhone = *row.RestaurantPhone
	}
	if row.ActionText != nil {
		record.ActionText = *row.ActionText
	}
	return record
}

var recordColumns = []string{"id", "source_system_id", "provider", "restaurant_name", "restaurant_address", "restaurant_phone", "inspection_date", "score", "grade", "violations", "action_text", "fingerprint", "created_at"}

// UpsertBatch stages a batch of records. Duplicate records (same content
// fingerprint) are absorbed so re-delivered messages stay idempotent.
func (r *Repository) UpsertBatch(ctx context.Context, records []models.RawInspectionRecord) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "inspectionrecord.Repository.UpsertBatch")
	defer span.End()

	if len(records) == 0 {
		return 0, nil
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "UpsertBatch",
		"record_count": len(records),
	})

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin transaction")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to stage inspection records")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	staged := 0
	for _, record := range records {
		fp, err := fingerprint.Generate(record)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"provider": record.Provider, "restaurant_name": record.RestaurantName}).Error("Failed to fingerprint inspection record")
			return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid inspection record")
		}

		violations := database.JSONB[[]models.Violation]{Data: record.Violations}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO inspection_records (
				id, source_system_id, provider, restaurant_name, restaurant_address,
				restaurant_phone, inspection_date, score, grade, violations,
				action_text, fingerprint, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (fingerprint) DO NOTHING
		`,
			uuid.New().String(), nullable(record.SourceSystemID), record.Provider,
			record.RestaurantName, record.RestaurantAddress, nullable(record.RestaurantPhone),
			record.InspectionDate, record.Score, record.Grade, violations,
			nullable(record.ActionText), fp, now,
		)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"provider": record.Provider, "restaurant_name": record.RestaurantName}).Error("Failed to stage inspection record")
			return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to stage inspection records")
		}
		rows, _ := result.RowsAffected()
		staged += int(rows)
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit staged records")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to stage inspection records")
	}

	log.WithFields(map[string]any{"staged": staged}).Info("Staged inspection records")
	return staged, nil
}

// ListAll returns every staged record in insertion order. Grouping depends on
// this order for its fallback keys, so it must be stable.
func (r *Repository) ListAll(ctx context.Context) ([]models.RawInspectionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "inspectionrecord.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From("inspection_records")
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list inspection records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list inspection records")
	}

	records := make([]models.RawInspectionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// CountByProvider returns staged record counts keyed by provider.
func (r *Repository) CountByProvider(ctx context.Context) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "inspectionrecord.Repository.CountByProvider")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("provider", "COUNT(*) AS record_count")
	sb.From("inspection_records")
	sb.GroupBy("provider")

	query, args := sb.Build()
	var rows []struct {
		Provider    string `db:"provider"`
		RecordCount int    `db:"record_count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count inspection records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count inspection records")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.RecordCount
	}
	return counts, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
