package models

import (
	"time"
)

// Entity is a directory listing (a buffet) as owned by the directory site.
// Fern never creates or deletes entities; it only attaches health records.
type Entity struct {
	ID               string        `json:"id" db:"id"`
	Name             string        `json:"name" db:"name"`
	Address          string        `json:"address" db:"address"`
	Phone            *string       `json:"phone,omitempty" db:"phone"`
	Region           string        `json:"region" db:"region"` // jurisdiction label, e.g. "il" or "chicago-il"
	HealthRecord     *HealthRecord `json:"health_record,omitempty" db:"-"`
	HealthConfidence Confidence    `json:"health_confidence,omitempty" db:"health_confidence"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// HasHealthRecord reports whether a previous reconciliation attached data.
func (e *Entity) HasHealthRecord() bool {
	return e.HealthRecord != nil
}

// HealthRecord is the reconciled health-inspection state attached to one
// entity. It is always replaced wholesale, never partially mutated.
type HealthRecord struct {
	CurrentScore            *float64            `json:"current_score,omitempty"`
	CurrentGrade            *string             `json:"current_grade,omitempty"`
	InspectionDate          time.Time           `json:"inspection_date"`
	Violations              []Violation         `json:"violations,omitempty"`
	CriticalViolationsCount *int                `json:"critical_violations_count,omitempty"`
	GeneralViolationsCount  *int                `json:"general_violations_count,omitempty"`
	InspectionHistory       []InspectionSummary `json:"inspection_history,omitempty"`
	ClosureHistory          []ClosureEvent      `json:"closure_history,omitempty"`
	HasRecentClosure        bool                `json:"has_recent_closure"`
	DataSource              string              `json:"data_source"`
	LastUpdated             time.Time           `json:"last_updated"`
}

// InspectionSummary is one reduced entry in an entity's inspection history.
// Zero violation counts are omitted so "no violations recorded" stays
// distinguishable from "field not applicable".
type InspectionSummary struct {
	Date                    time.Time `json:"date"`
	Score                   *float64  `json:"score,omitempty"`
	Grade                   *string   `json:"grade,omitempty"`
	ViolationsCount         *int      `json:"violations_count,omitempty"`
	CriticalViolationsCount *int      `json:"critical_violations_count,omitempty"`
}

// ClosureEvent is a closure-indicating inspection action within the recency window.
type ClosureEvent struct {
	Date       time.Time `json:"date"`
	ActionText string    `json:"action_text"`
}

// EntityUpdate is one accepted reconciliation write: a whole-record
// replacement of the entity's health data.
type EntityUpdate struct {
	EntityID     string        `json:"entity_id"`
	Confidence   Confidence    `json:"confidence"`
	HealthRecord *HealthRecord `json:"health_record"`
}
