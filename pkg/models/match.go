package models

import (
	"time"
)

// Confidence is the tier assigned to a match score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Fixed tier thresholds on the overall score.
const (
	HighConfidenceThreshold   = 0.80
	MediumConfidenceThreshold = 0.60
	LowConfidenceThreshold    = 0.50
)

// ConfidenceForScore maps an overall score onto a tier. Scores below the low
// threshold are not match candidates at all; ok is false for those.
func ConfidenceForScore(score float64) (Confidence, bool) {
	switch {
	case score >= HighConfidenceThreshold:
		return ConfidenceHigh, true
	case score >= MediumConfidenceThreshold:
		return ConfidenceMedium, true
	case score >= LowConfidenceThreshold:
		return ConfidenceLow, true
	default:
		return "", false
	}
}

// MatchDetails holds the per-dimension similarity scores behind a match.
type MatchDetails struct {
	Name    float64 `json:"name"`
	Address float64 `json:"address"`
	Phone   float64 `json:"phone"`
}

// Match is a computed candidate pairing of one restaurant group with one
// entity. It is a pure value; only its effect (the health record written onto
// the entity) persists.
type Match struct {
	EntityID       string        `json:"entity_id"`
	GroupKey       string        `json:"group_key"`
	RestaurantName string        `json:"restaurant_name"`
	Score          float64       `json:"score"`
	Confidence     Confidence    `json:"confidence"`
	Details        MatchDetails  `json:"details"`
	HealthRecord   *HealthRecord `json:"health_record"`
}

// MatchSample is one spot-check row in a report.
type MatchSample struct {
	EntityID       string  `json:"entity_id"`
	EntityName     string  `json:"entity_name"`
	GroupKey       string  `json:"group_key"`
	RestaurantName string  `json:"restaurant_name"`
	Score          float64 `json:"score"`
}

// MatchReport summarizes one reconciliation run for human review. It is
// diagnostic output and is never consumed by the engine itself.
type MatchReport struct {
	RunID              string                       `json:"run_id"`
	CountsByConfidence map[Confidence]int           `json:"counts_by_confidence"`
	CountsByRegion     map[string]int               `json:"counts_by_region"`
	Samples            map[Confidence][]MatchSample `json:"samples"`
	MatchCount         int                          `json:"match_count"`
	UpdatedCount       int                          `json:"updated_count"`
	CreatedAt          time.Time                    `json:"created_at"`
}

// ReconcileResult is what a reconciliation pass produces: the accepted
// updates (applied by the caller as one batch) and the report.
type ReconcileResult struct {
	UpdatedCount int            `json:"updated_count"`
	Updates      []EntityUpdate `json:"updates"`
	Report       MatchReport    `json:"report"`
}
