// Package reconcile applies computed matches to the entity directory under
// the update policy and produces the run report.
package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// fingerprintExclusions keeps the reconciliation timestamp out of the no-op
// comparison; an identical record re-applied on a later run is not a change.
var fingerprintExclusions = map[string]bool{"last_updated": true}

// Config contains configuration for the reconciler.
type Config struct {
	SamplesPerTier int // Spot-check matches kept per confidence tier in the report (default: 5)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{SamplesPerTier: 5}
}

// Reconciler decides which matches may write their health record onto an
// entity. It never mutates its inputs; accepted writes come back as an
// EntityUpdate batch for the caller to apply atomically.
type Reconciler struct {
	logger ectologger.Logger
	cfg    Config
	now    func() time.Time
}

// NewReconciler creates a reconciler using the wall clock.
func NewReconciler(logger ectologger.Logger, cfg Config) *Reconciler {
	return NewReconcilerWithNow(logger, cfg, time.Now)
}

// NewReconcilerWithNow creates a reconciler with an explicit clock.
func NewReconcilerWithNow(logger ectologger.Logger, cfg Config, now func() time.Time) *Reconciler {
	if cfg.SamplesPerTier <= 0 {
		cfg.SamplesPerTier = 5
	}
	return &Reconciler{logger: logger, cfg: cfg, now: now}
}

// entityState tracks an entity's health data as matches are applied within
// one run, so a later match is judged against what an earlier one wrote.
type entityState struct {
	entity      *models.Entity
	record      *models.HealthRecord
	confidence  models.Confidence
	fingerprint string
}

// Reconcile applies matches to the entity snapshot under the update policy:
// a match fills a gap when the entity has no stored record, and only a
// high-confidence match (score ≥ 0.80) may overwrite existing data.
// Medium/low matches never overwrite. Re-running on unchanged inputs yields
// the same result with zero updates: a record identical to the stored one
// (ignoring the reconciliation timestamp) is not rewritten.
func (r *Reconciler) Reconcile(ctx context.Context, entities []models.Entity, matches []models.Match) (*models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Reconciler.Reconcile")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_count": len(entities),
		"match_count":  len(matches),
	})

	states := make(map[string]*entityState, len(entities))
	for i := range entities {
		entity := &entities[i]
		state := &entityState{
			entity:     entity,
			record:     entity.HealthRecord,
			confidence: entity.HealthConfidence,
		}
		if entity.HealthRecord != nil {
			fp, err := fingerprint.GenerateWithExclusions(entity.HealthRecord, fingerprintExclusions)
			if err != nil {
				log.WithError(err).WithFields(map[string]any{"entity_id": entity.ID}).Warn("Failed to fingerprint stored health record")
			}
			state.fingerprint = fp
		}
		states[entity.ID] = state
	}

	// Highest score first so the best match wins a contested entity; stable
	// sort keeps exact ties in input order for reproducibility.
	ordered := make([]models.Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	report := r.newReport()
	updates := make([]models.EntityUpdate, 0)

	for _, match := range ordered {
		state, ok := states[match.EntityID]
		if !ok {
			log.WithFields(map[string]any{"entity_id": match.EntityID}).Warn("Match references unknown entity, skipping")
			continue
		}

		report.CountsByConfidence[match.Confidence]++
		report.CountsByRegion[state.entity.Region]++
		if len(report.Samples[match.Confidence]) < r.cfg.SamplesPerTier {
			report.Samples[match.Confidence] = append(report.Samples[match.Confidence], models.MatchSample{
				EntityID:       match.EntityID,
				EntityName:     state.entity.Name,
				GroupKey:       match.GroupKey,
				RestaurantName: match.RestaurantName,
				Score:          match.Score,
			})
		}

		if match.HealthRecord == nil {
			log.WithFields(map[string]any{"group_key": match.GroupKey}).Warn("Match carries no health record, skipping")
			continue
		}

		if !r.accepts(state, match) {
			continue
		}

		incoming, err := fingerprint.GenerateWithExclusions(match.HealthRecord, fingerprintExclusions)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"entity_id": match.EntityID}).Warn("Failed to fingerprint incoming health record, skipping")
			continue
		}
		if state.record != nil && !fingerprint.HasChanged(state.fingerprint, incoming) {
			// Same content as already stored: idempotent no-op.
			continue
		}

		// Whole-record replacement; the prior record is never partially merged.
		record := *match.HealthRecord
		record.LastUpdated = r.now().UTC()

		updates = append(updates, models.EntityUpdate{
			EntityID:     match.EntityID,
			Confidence:   match.Confidence,
			HealthRecord: &record,
		})

		state.record = &record
		state.confidence = match.Confidence
		state.fingerprint = incoming
	}

	report.MatchCount = len(matches)
	report.UpdatedCount = len(updates)

	log.WithFields(map[string]any{"updated_count": len(updates)}).Info("Reconciliation pass complete")

	return &models.ReconcileResult{
		UpdatedCount: len(updates),
		Updates:      updates,
		Report:       report,
	}, nil
}

// accepts applies the update policy: fill gaps freely, overwrite only with
// high confidence.
func (r *Reconciler) accepts(state *entityState, match models.Match) bool {
	if state.record == nil {
		return true
	}
	return match.Confidence == models.ConfidenceHigh && match.Score >= models.HighConfidenceThreshold
}

func (r *Reconciler) newReport() models.MatchReport {
	return models.MatchReport{
		CountsByConfidence: make(map[models.Confidence]int),
		CountsByRegion:     make(map[string]int),
		Samples:            make(map[models.Confidence][]models.MatchSample),
		CreatedAt:          r.now().UTC(),
	}
}
