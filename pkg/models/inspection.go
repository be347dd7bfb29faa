package models

import (
	"time"
)

// RawInspectionRecord is a single inspection event from one government data
// source, already mapped into the common shape by the provider adapter.
// Fields vary per source; sparse records are still grouped and scored with
// whatever is present.
type RawInspectionRecord struct {
	SourceSystemID    string      `json:"source_system_id,omitempty"` // the source's own restaurant identifier, may be absent
	Provider          string      `json:"provider"`                   // provenance label, e.g. "cdph" or "king-county"
	RestaurantName    string      `json:"restaurant_name"`
	RestaurantAddress string      `json:"restaurant_address"`
	RestaurantPhone   string      `json:"restaurant_phone,omitempty"`
	InspectionDate    time.Time   `json:"inspection_date"`
	Score             *float64    `json:"score,omitempty"` // numeric, scale varies by source
	Grade             *string     `json:"grade,omitempty"`
	Violations        []Violation `json:"violations,omitempty"`
	ActionText        string      `json:"action_text,omitempty"` // free text, used to detect closures
}

// Violation is one cited violation on an inspection.
type Violation struct {
	Code        *string `json:"code,omitempty"`
	Description string  `json:"description"`
	IsCritical  bool    `json:"is_critical"`
}

// RestaurantGroup collects every inspection record believed to belong to one
// source-side restaurant. Inspections are sorted by date descending with
// stable ties on original input order.
type RestaurantGroup struct {
	Key         string                `json:"key"` // SourceSystemID, or a synthetic fallback key
	Restaurant  RestaurantSummary     `json:"restaurant"`
	Inspections []RawInspectionRecord `json:"inspections"`
}

// RestaurantSummary is the denormalized identity of a group, taken from its
// most recent record.
type RestaurantSummary struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone,omitempty"`
	Provider string `json:"provider"`
}
