// Package grouping clusters raw inspection records into one history per
// source restaurant.
package grouping

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

// Grouper clusters records by the source system's restaurant identifier.
// Records lacking an identifier fall back to a composite of normalized name
// and address so repeat inspections of the same unidentified restaurant still
// collapse into one group. No record is ever discarded.
type Grouper struct{}

// New creates a new Grouper
func New() *Grouper {
	return &Grouper{}
}

// Group clusters records into RestaurantGroups. Output order is deterministic:
// groups appear in first-seen order and inspections within a group are sorted
// by date descending with stable ties on input order.
func (g *Grouper) Group(records []models.RawInspectionRecord) []models.RestaurantGroup {
	grouped := make(map[string][]models.RawInspectionRecord)
	keyOrder := make([]string, 0)

	for i, record := range records {
		key := groupKey(record, i)
		if _, seen := grouped[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		grouped[key] = append(grouped[key], record)
	}

	groups := make([]models.RestaurantGroup, 0, len(keyOrder))
	for _, key := range keyOrder {
		inspections := grouped[key]

		sort.SliceStable(inspections, func(i, j int) bool {
			return inspections[i].InspectionDate.After(inspections[j].InspectionDate)
		})

		latest := inspections[0]
		groups = append(groups, models.RestaurantGroup{
			Key: key,
			Restaurant: models.RestaurantSummary{
				Name:     latest.RestaurantName,
				Address:  latest.RestaurantAddress,
				Phone:    latest.RestaurantPhone,
				Provider: latest.Provider,
			},
			Inspections: inspections,
		})
	}

	return groups
}

// groupKey derives the grouping key for one record. The source's own
// identifier wins; otherwise a normalized name+address composite; a record
// with neither gets a positional key and forms its own singleton group.
func groupKey(record models.RawInspectionRecord, index int) string {
	if record.SourceSystemID != "" {
		return record.SourceSystemID
	}

	name := normalizers.Name(record.RestaurantName)
	address := normalizers.Address(record.RestaurantAddress)
	if name != "" || address != "" {
		return name + "|" + address
	}

	return fmt.Sprintf("ungrouped-%d", index)
}
