package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

var buildTime = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestBuilder(cfg Config) *Builder {
	return NewBuilderWithNow(cfg, func() time.Time { return buildTime })
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestBuild(t *testing.T) {
	t.Run("nil group yields nil record", func(t *testing.T) {
		b := newTestBuilder(DefaultConfig())
		assert.Nil(t, b.Build(nil))
		assert.Nil(t, b.Build(&models.RestaurantGroup{Key: "empty"}))
	})

	t.Run("current state comes from the most recent inspection", func(t *testing.T) {
		b := newTestBuilder(DefaultConfig())
		group := &models.RestaurantGroup{
			Key:        "cdph-42",
			Restaurant: models.RestaurantSummary{Name: "Jade Garden", Provider: "cdph"},
			Inspections: []models.RawInspectionRecord{
				{
					InspectionDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
					Score:          floatPtr(92),
					Grade:          strPtr("A"),
					Violations: []models.Violation{
						{Description: "improper holding temperature", IsCritical: true},
						{Description: "floors unclean", IsCritical: false},
						{Description: "no paper towels", IsCritical: false},
					},
				},
				{
					InspectionDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
					Score:          floatPtr(78),
					Grade:          strPtr("B"),
				},
			},
		}

		record := b.Build(group)
		require.NotNil(t, record)
		assert.Equal(t, floatPtr(92.0), record.CurrentScore)
		assert.Equal(t, strPtr("A"), record.CurrentGrade)
		assert.Equal(t, group.Inspections[0].InspectionDate, record.InspectionDate)
		assert.Equal(t, "cdph", record.DataSource)

		require.NotNil(t, record.CriticalViolationsCount)
		assert.Equal(t, 1, *record.CriticalViolationsCount)
		require.NotNil(t, record.GeneralViolationsCount)
		assert.Equal(t, 2, *record.GeneralViolationsCount)

		require.Len(t, record.InspectionHistory, 2)
		require.NotNil(t, record.InspectionHistory[0].ViolationsCount)
		assert.Equal(t, 3, *record.InspectionHistory[0].ViolationsCount)
		// Zero counts stay absent rather than serializing as 0.
		assert.Nil(t, record.InspectionHistory[1].ViolationsCount)
		assert.Nil(t, record.InspectionHistory[1].CriticalViolationsCount)

		assert.False(t, record.HasRecentClosure)
		assert.True(t, record.LastUpdated.IsZero())
	})

	t.Run("history is capped at the limit", func(t *testing.T) {
		b := newTestBuilder(DefaultConfig())
		group := &models.RestaurantGroup{Key: "cdph-42"}
		for i := 0; i < 12; i++ {
			group.Inspections = append(group.Inspections, models.RawInspectionRecord{
				InspectionDate: buildTime.AddDate(0, -i, 0),
			})
		}

		record := b.Build(group)
		require.NotNil(t, record)
		assert.Len(t, record.InspectionHistory, 10)
		assert.Equal(t, group.Inspections[0].InspectionDate, record.InspectionHistory[0].Date)
	})

	t.Run("closure scan covers records beyond the history cap", func(t *testing.T) {
		b := newTestBuilder(Config{HistoryLimit: 2, ClosureWindowMonths: 24})
		group := &models.RestaurantGroup{Key: "cdph-42"}
		for i := 0; i < 5; i++ {
			group.Inspections = append(group.Inspections, models.RawInspectionRecord{
				InspectionDate: buildTime.AddDate(0, -i, 0),
			})
		}
		// Closure sits outside the 2-entry history but inside the window.
		group.Inspections = append(group.Inspections, models.RawInspectionRecord{
			InspectionDate: buildTime.AddDate(0, -10, 0),
			ActionText:     "Facility Closed pending re-inspection",
		})

		record := b.Build(group)
		require.NotNil(t, record)
		assert.Len(t, record.InspectionHistory, 2)
		require.Len(t, record.ClosureHistory, 1)
		assert.True(t, record.HasRecentClosure)
		assert.Equal(t, "Facility Closed pending re-inspection", record.ClosureHistory[0].ActionText)
	})

	t.Run("closures outside the window are ignored", func(t *testing.T) {
		b := newTestBuilder(DefaultConfig())
		group := &models.RestaurantGroup{
			Key: "cdph-42",
			Inspections: []models.RawInspectionRecord{
				{InspectionDate: buildTime.AddDate(0, -1, 0)},
				{InspectionDate: buildTime.AddDate(0, -30, 0), ActionText: "license suspended"},
			},
		}

		record := b.Build(group)
		require.NotNil(t, record)
		assert.Empty(t, record.ClosureHistory)
		assert.False(t, record.HasRecentClosure)
	})

	t.Run("window boundary is exclusive", func(t *testing.T) {
		b := newTestBuilder(DefaultConfig())
		exactly := buildTime.AddDate(0, -24, 0)
		group := &models.RestaurantGroup{
			Key: "cdph-42",
			Inspections: []models.RawInspectionRecord{
				{InspectionDate: exactly.AddDate(0, 0, 1), ActionText: "closure order issued"},
				{InspectionDate: exactly, ActionText: "closure order issued"},
			},
		}

		record := b.Build(group)
		require.NotNil(t, record)
		require.Len(t, record.ClosureHistory, 1)
		assert.Equal(t, exactly.AddDate(0, 0, 1), record.ClosureHistory[0].Date)
	})

	t.Run("closure phrases match case-insensitively", func(t *testing.T) {
		b := newTestBuilder(Config{ClosurePhrases: []string{"shut down"}})
		group := &models.RestaurantGroup{
			Key: "cdph-42",
			Inspections: []models.RawInspectionRecord{
				{InspectionDate: buildTime.AddDate(0, -1, 0), ActionText: "Establishment SHUT DOWN by order"},
			},
		}

		record := b.Build(group)
		require.NotNil(t, record)
		assert.True(t, record.HasRecentClosure)
	})
}

func TestNewBuilderWithNowDefaults(t *testing.T) {
	b := newTestBuilder(Config{})
	group := &models.RestaurantGroup{Key: "cdph-42"}
	for i := 0; i < 15; i++ {
		group.Inspections = append(group.Inspections, models.RawInspectionRecord{
			InspectionDate: buildTime.AddDate(0, 0, -i),
			ActionText:     fmt.Sprintf("routine inspection %d", i),
		})
	}

	record := b.Build(group)
	require.NotNil(t, record)
	assert.Len(t, record.InspectionHistory, 10)
	assert.False(t, record.HasRecentClosure)
}
