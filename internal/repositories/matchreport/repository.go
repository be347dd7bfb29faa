package matchreport

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

// Repository persists per-run match reports for later review.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match report repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type reportRow struct {
	RunID        string                             `db:"run_id"`
	Report       database.JSONB[models.MatchReport] `db:"report"`
	MatchCount   int                                `db:"match_count"`
	UpdatedCount int                                `db:"updated_count"`
	CreatedAt    time.Time                          `db:"created_at"`
}

var reportColumns = []string{"run_id", "report", "match_count", "updated_count", "created_at"}

// Create stores a completed run's report.
func (r *Repository) Create(ctx context.Context, report models.MatchReport) error {
	ctx, span := tracing.StartSpan(ctx, "matchreport.Repository.Create")
	defer span.End()

	body := database.JSONB[models.MatchReport]{Data: report}
	query := `
		INSERT INTO match_reports (run_id, report, match_count, updated_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, report.RunID, body, report.MatchCount, report.UpdatedCount, report.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": report.RunID}).Error("Failed to create match report")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match report")
	}
	return nil
}

// GetByRunID retrieves one run's report.
func (r *Repository) GetByRunID(ctx context.Context, runID string) (*models.MatchReport, error) {
	ctx, span := tracing.StartSpan(ctx, "matchreport.Repository.GetByRunID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reportColumns...)
	sb.From("match_reports")
	sb.Where(sb.Equal("run_id", runID))

	query, args := sb.Build()
	var row reportRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "match report %s not found", runID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": runID}).Error("Failed to get match report")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match report")
	}

	report := row.Report.GetValue()
	return &report, nil
}

// List returns reports most recent first.
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.MatchReport, error) {
	ctx, span := tracing.StartSpan(ctx, "matchreport.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reportColumns...)
	sb.From("match_reports")
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"page": page, "page_size": pageSize}).Error("Failed to list match reports")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match reports")
	}

	reports := make([]models.MatchReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.Report.GetValue())
	}
	return reports, nil
}
