package aggregate

import "github.com/denisok6893-rgb/building-insights/internal/domain"

// Summary is everything the dashboard cards and charts show for one subset.
type Summary struct {
	Count int `json:"count"`

	AvgEnergy    Mean `json:"avg_energy"`
	AvgWater     Mean `json:"avg_water"`
	AvgRecycling Mean `json:"avg_recycling"`
	AvgOccupancy Mean `json:"avg_occupancy"`

	ByStatus     []Count     `json:"by_status"`
	ByArea       []Count     `json:"by_area"`
	ByYear       []Count     `json:"by_year"`
	EnergyByType []GroupMean `json:"energy_by_type"`
}

// Summarize recomputes every card and series from scratch.
func Summarize(records []domain.Record) Summary {
	return Summary{
		Count:        len(records),
		AvgEnergy:    MeanOf(records, domain.FieldEnergyPerSqM),
		AvgWater:     MeanOf(records, domain.FieldWaterUsage),
		AvgRecycling: MeanOf(records, domain.FieldWasteRecycled),
		AvgOccupancy: MeanOf(records, domain.FieldOccupancyRate),
		ByStatus:     GroupCount(records, domain.FieldBuildingStatus),
		ByArea:       GroupCount(records, domain.FieldArea),
		ByYear:       SortCounts(GroupCount(records, domain.FieldConstructionYr), Ascending),
		EnergyByType: GroupMeans(records, domain.FieldBuildingType, domain.FieldEnergyPerSqM),
	}
}

// Options lists the values offered by the filter form selects.
type Options struct {
	Areas      []string `json:"areas"`
	Types      []string `json:"types"`
	Statuses   []string `json:"statuses"`
	Years      []string `json:"years"`
	Clusters   []string `json:"clusters"`
	Priorities []string `json:"priorities"`
	Green      []string `json:"green"`
}

// FilterOptions builds the select values. Years are newest first and clusters
// ascending; everything else keeps first-seen order.
func FilterOptions(records []domain.Record) Options {
	return Options{
		Areas:      DistinctValues(records, domain.FieldArea),
		Types:      DistinctValues(records, domain.FieldBuildingType),
		Statuses:   DistinctValues(records, domain.FieldBuildingStatus),
		Years:      SortValues(DistinctValues(records, domain.FieldConstructionYr), Descending),
		Clusters:   SortValues(DistinctValues(records, domain.FieldCluster), Ascending),
		Priorities: DistinctValues(records, domain.FieldMaintenance),
		Green:      DistinctValues(records, domain.FieldGreenCertified),
	}
}
