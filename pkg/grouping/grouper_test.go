package grouping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGroup(t *testing.T) {
	g := New()

	t.Run("source system id wins as key", func(t *testing.T) {
		records := []models.RawInspectionRecord{
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Jade Garden", InspectionDate: date(2026, 1, 5)},
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Jade Garden Buffet", InspectionDate: date(2026, 3, 5)},
		}

		groups := g.Group(records)
		require.Len(t, groups, 1)
		assert.Equal(t, "cdph-42", groups[0].Key)
		assert.Len(t, groups[0].Inspections, 2)
	})

	t.Run("falls back to normalized name and address", func(t *testing.T) {
		records := []models.RawInspectionRecord{
			{Provider: "cdph", RestaurantName: "JADE GARDEN", RestaurantAddress: "123 Main Street", InspectionDate: date(2026, 1, 5)},
			{Provider: "cdph", RestaurantName: "Jade Garden", RestaurantAddress: "123 Main St", InspectionDate: date(2026, 2, 5)},
		}

		groups := g.Group(records)
		require.Len(t, groups, 1)
		assert.Equal(t, "jade garden|123 main", groups[0].Key)
	})

	t.Run("record with no identity gets a positional key", func(t *testing.T) {
		records := []models.RawInspectionRecord{
			{Provider: "cdph", InspectionDate: date(2026, 1, 5)},
			{Provider: "cdph", InspectionDate: date(2026, 2, 5)},
		}

		groups := g.Group(records)
		require.Len(t, groups, 2)
		assert.Equal(t, "ungrouped-0", groups[0].Key)
		assert.Equal(t, "ungrouped-1", groups[1].Key)
	})

	t.Run("inspections sorted by date descending", func(t *testing.T) {
		records := []models.RawInspectionRecord{
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Old Name", InspectionDate: date(2025, 6, 1)},
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "New Name", InspectionDate: date(2026, 3, 1)},
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Middle Name", InspectionDate: date(2025, 12, 1)},
		}

		groups := g.Group(records)
		require.Len(t, groups, 1)
		inspections := groups[0].Inspections
		require.Len(t, inspections, 3)
		assert.Equal(t, "New Name", inspections[0].RestaurantName)
		assert.Equal(t, "Middle Name", inspections[1].RestaurantName)
		assert.Equal(t, "Old Name", inspections[2].RestaurantName)
	})

	t.Run("date ties keep input order", func(t *testing.T) {
		same := date(2026, 3, 1)
		records := []models.RawInspectionRecord{
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "First", InspectionDate: same},
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Second", InspectionDate: same},
		}

		groups := g.Group(records)
		require.Len(t, groups, 1)
		assert.Equal(t, "First", groups[0].Inspections[0].RestaurantName)
		assert.Equal(t, "Second", groups[0].Inspections[1].RestaurantName)
	})

	t.Run("summary comes from the most recent record", func(t *testing.T) {
		records := []models.RawInspectionRecord{
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Jade Garden", RestaurantAddress: "123 Main St", InspectionDate: date(2025, 6, 1)},
			{SourceSystemID: "cdph-42", Provider: "cdph", RestaurantName: "Jade Garden Buffet", RestaurantAddress: "125 Main St", RestaurantPhone: "3125551234", InspectionDate: date(2026, 3, 1)},
		}

		groups := g.Group(records)
		require.Len(t, groups, 1)
		summary := groups[0].Restaurant
		assert.Equal(t, "Jade Garden Buffet", summary.Name)
		assert.Equal(t, "125 Main St", summary.Address)
		assert.Equal(t, "3125551234", summary.Phone)
		assert.Equal(t, "cdph", summary.Provider)
	})

	t.Run("groups appear in first-seen order", func(t *testing.T) {
		records := []models.RawInspectionRecord{
			{SourceSystemID: "b", Provider: "cdph", RestaurantName: "B", InspectionDate: date(2026, 1, 1)},
			{SourceSystemID: "a", Provider: "cdph", RestaurantName: "A", InspectionDate: date(2026, 1, 2)},
			{SourceSystemID: "b", Provider: "cdph", RestaurantName: "B", InspectionDate: date(2026, 1, 3)},
		}

		groups := g.Group(records)
		require.Len(t, groups, 2)
		assert.Equal(t, "b", groups[0].Key)
		assert.Equal(t, "a", groups[1].Key)
	})

	t.Run("empty input yields no groups", func(t *testing.T) {
		assert.Empty(t, g.Group(nil))
	})
}
