package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

var runTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestReconciler(cfg Config) *Reconciler {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewReconcilerWithNow(logger, cfg, func() time.Time { return runTime })
}

func healthRecord(source string, score float64) *models.HealthRecord {
	return &models.HealthRecord{
		CurrentScore:   &score,
		InspectionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DataSource:     source,
	}
}

func match(entityID string, score float64, record *models.HealthRecord) models.Match {
	confidence, _ := models.ConfidenceForScore(score)
	return models.Match{
		EntityID:       entityID,
		GroupKey:       "src-" + entityID,
		RestaurantName: "Jade Garden",
		Score:          score,
		Confidence:     confidence,
		HealthRecord:   record,
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("any tier fills a gap", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		entities := []models.Entity{{ID: "ent-1", Name: "Jade Garden", Region: "il"}}
		matches := []models.Match{match("ent-1", 0.55, healthRecord("cdph", 92))}

		result, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		require.Len(t, result.Updates, 1)
		assert.Equal(t, 1, result.UpdatedCount)
		assert.Equal(t, models.ConfidenceLow, result.Updates[0].Confidence)
		assert.Equal(t, runTime, result.Updates[0].HealthRecord.LastUpdated)
	})

	t.Run("medium confidence never overwrites", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		entities := []models.Entity{{
			ID:               "ent-1",
			HealthRecord:     healthRecord("king-county", 80),
			HealthConfidence: models.ConfidenceHigh,
		}}
		matches := []models.Match{match("ent-1", 0.70, healthRecord("cdph", 92))}

		result, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		assert.Empty(t, result.Updates)
		// The rejected match still counts toward the report.
		assert.Equal(t, 1, result.Report.CountsByConfidence[models.ConfidenceMedium])
	})

	t.Run("high confidence overwrites", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		entities := []models.Entity{{
			ID:               "ent-1",
			HealthRecord:     healthRecord("king-county", 80),
			HealthConfidence: models.ConfidenceMedium,
		}}
		matches := []models.Match{match("ent-1", 0.9, healthRecord("cdph", 92))}

		result, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		require.Len(t, result.Updates, 1)
		assert.Equal(t, "cdph", result.Updates[0].HealthRecord.DataSource)
	})

	t.Run("identical record is an idempotent no-op", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		stored := healthRecord("cdph", 92)
		stored.LastUpdated = runTime.AddDate(0, -1, 0) // timestamp alone must not count as change
		entities := []models.Entity{{
			ID:               "ent-1",
			HealthRecord:     stored,
			HealthConfidence: models.ConfidenceHigh,
		}}
		matches := []models.Match{match("ent-1", 0.9, healthRecord("cdph", 92))}

		result, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		assert.Empty(t, result.Updates)
		assert.Equal(t, 0, result.UpdatedCount)
		assert.Equal(t, 1, result.Report.MatchCount)
	})

	t.Run("best match wins a contested entity", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		entities := []models.Entity{{ID: "ent-1"}}
		matches := []models.Match{
			match("ent-1", 0.65, healthRecord("king-county", 70)),
			match("ent-1", 0.95, healthRecord("cdph", 92)),
		}

		result, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		require.Len(t, result.Updates, 1)
		// 0.95 applies first; the 0.65 match then faces existing data and loses.
		assert.Equal(t, "cdph", result.Updates[0].HealthRecord.DataSource)
	})

	t.Run("unknown entity is skipped", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		result, err := r.Reconcile(ctx, nil, []models.Match{match("ghost", 0.9, healthRecord("cdph", 92))})
		require.NoError(t, err)
		assert.Empty(t, result.Updates)
		assert.Equal(t, 0, result.Report.CountsByConfidence[models.ConfidenceHigh])
	})

	t.Run("match without a record is skipped", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		entities := []models.Entity{{ID: "ent-1"}}
		result, err := r.Reconcile(ctx, entities, []models.Match{match("ent-1", 0.9, nil)})
		require.NoError(t, err)
		assert.Empty(t, result.Updates)
		// Counted in the report even though nothing could be written.
		assert.Equal(t, 1, result.Report.CountsByConfidence[models.ConfidenceHigh])
	})

	t.Run("samples are capped per tier", func(t *testing.T) {
		r := newTestReconciler(Config{SamplesPerTier: 2})
		entities := make([]models.Entity, 0, 5)
		matches := make([]models.Match, 0, 5)
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("ent-%d", i)
			entities = append(entities, models.Entity{ID: id, Region: "il"})
			matches = append(matches, match(id, 0.9, healthRecord("cdph", float64(90+i))))
		}

		result, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		assert.Equal(t, 5, result.Report.CountsByConfidence[models.ConfidenceHigh])
		assert.Equal(t, 5, result.Report.CountsByRegion["il"])
		assert.Len(t, result.Report.Samples[models.ConfidenceHigh], 2)
		assert.Len(t, result.Updates, 5)
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		r := newTestReconciler(DefaultConfig())
		entities := []models.Entity{{ID: "ent-1"}}
		matches := []models.Match{match("ent-1", 0.9, healthRecord("cdph", 92))}

		_, err := r.Reconcile(ctx, entities, matches)
		require.NoError(t, err)
		assert.Nil(t, entities[0].HealthRecord)
		assert.True(t, matches[0].HealthRecord.LastUpdated.IsZero())
	})
}
