// Package history collapses a restaurant group's inspections into the
// current state plus a bounded trailing history and closure flags.
package history

import (
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Config contains configuration for the history builder.
type Config struct {
	HistoryLimit        int      // Maximum inspections kept in the trailing history (default: 10)
	ClosureWindowMonths int      // Recency window for closure flags (default: 24)
	ClosurePhrases      []string // Case-insensitive substrings of actionText that indicate a closure
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:        10,
		ClosureWindowMonths: 24,
		ClosurePhrases:      []string{"closed", "closure", "suspended"},
	}
}

// Builder builds HealthRecords from restaurant groups. The clock is
// injectable because the closure window is relative to build time.
type Builder struct {
	cfg Config
	now func() time.Time
}

// NewBuilder creates a builder using the wall clock.
func NewBuilder(cfg Config) *Builder {
	return NewBuilderWithNow(cfg, time.Now)
}

// NewBuilderWithNow creates a builder with an explicit clock.
func NewBuilderWithNow(cfg Config, now func() time.Time) *Builder {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.ClosureWindowMonths <= 0 {
		cfg.ClosureWindowMonths = 24
	}
	if len(cfg.ClosurePhrases) == 0 {
		cfg.ClosurePhrases = DefaultConfig().ClosurePhrases
	}
	return &Builder{cfg: cfg, now: now}
}

// Build collapses a group into a HealthRecord. Returns nil only when the
// group has no inspections, which the grouper's contract rules out; callers
// must still handle it.
//
// The current fields come from the most recent inspection. The closure scan
// covers every record in the group, not just the bounded history, so old
// closures inside the recency window are never missed. LastUpdated is stamped
// by the reconciler when a match is accepted, not here.
func (b *Builder) Build(group *models.RestaurantGroup) *models.HealthRecord {
	if group == nil || len(group.Inspections) == 0 {
		return nil
	}

	latest := group.Inspections[0]

	record := &models.HealthRecord{
		CurrentScore:   latest.Score,
		CurrentGrade:   latest.Grade,
		InspectionDate: latest.InspectionDate,
		Violations:     latest.Violations,
		DataSource:     group.Restaurant.Provider,
	}

	critical, general := countViolations(latest.Violations)
	record.CriticalViolationsCount = nonZero(critical)
	record.GeneralViolationsCount = nonZero(general)

	limit := b.cfg.HistoryLimit
	if limit > len(group.Inspections) {
		limit = len(group.Inspections)
	}
	record.InspectionHistory = make([]models.InspectionSummary, 0, limit)
	for _, inspection := range group.Inspections[:limit] {
		crit, gen := countViolations(inspection.Violations)
		record.InspectionHistory = append(record.InspectionHistory, models.InspectionSummary{
			Date:                    inspection.InspectionDate,
			Score:                   inspection.Score,
			Grade:                   inspection.Grade,
			ViolationsCount:         nonZero(crit + gen),
			CriticalViolationsCount: nonZero(crit),
		})
	}

	cutoff := b.now().AddDate(0, -b.cfg.ClosureWindowMonths, 0)
	for _, inspection := range group.Inspections {
		if !inspection.InspectionDate.After(cutoff) {
			continue
		}
		if b.isClosureAction(inspection.ActionText) {
			record.ClosureHistory = append(record.ClosureHistory, models.ClosureEvent{
				Date:       inspection.InspectionDate,
				ActionText: inspection.ActionText,
			})
		}
	}
	record.HasRecentClosure = len(record.ClosureHistory) > 0

	return record
}

// isClosureAction reports whether the free-text action indicates a closure.
func (b *Builder) isClosureAction(actionText string) bool {
	if actionText == "" {
		return false
	}
	lowered := strings.ToLower(actionText)
	for _, phrase := range b.cfg.ClosurePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func countViolations(violations []models.Violation) (critical, general int) {
	for _, v := range violations {
		if v.IsCritical {
			critical++
		} else {
			general++
		}
	}
	return critical, general
}

// nonZero returns a pointer only for positive counts, keeping zero counts
// absent in serialized output.
func nonZero(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
