package domain

import "time"

// Record is one building row keyed by header field name. Values are kept as
// loaded; numeric fields are parsed at the point of use.
type Record map[string]string

// Get returns the raw value for field, or "" when the field is absent.
func (r Record) Get(field string) string {
	if r == nil {
		return ""
	}
	return r[field]
}

// Dataset field names as they appear in the header line.
const (
	FieldArea             = "Area"
	FieldBuildingType     = "Building_Type"
	FieldBuildingStatus   = "Building_Status"
	FieldConstructionYr   = "Construction_Year"
	FieldMaintenance      = "Maintenance_Priority"
	FieldGreenCertified   = "Green_Certified"
	FieldCluster          = "Cluster"
	FieldFloors           = "Number_of_Floors"
	FieldSmartDevices     = "Smart_Devices_Count"
	FieldOccupancyRate    = "Occupancy_Rate"
	FieldEnergyPerSqM     = "Energy_Consumption_Per_SqM"
	FieldWaterUsage       = "Water_Usage_Per_Building"
	FieldWasteRecycled    = "Waste_Recycled_Percentage"
	FieldResidents        = "Number_of_Residents"
	FieldIndoorAirQuality = "Indoor_Air_Quality"
	FieldElectricityBill  = "Electricity_Bill"
)

type SuitabilityQuery struct {
	BuildingType string `json:"Building_Type"`
	Area         string `json:"Area"`
	Floors       int    `json:"Number_of_Floors"`
}

type Suitability struct {
	Message       string `json:"message"`
	ExistingCount *int   `json:"existing_count,omitempty"`
}

// Recommendation outcomes understood by the advisory service.
const (
	OutcomeOccupancy   = "Occupancy_Rate"
	OutcomeEnergy      = "Energy_Consumption_Per_SqM"
	OutcomeMaintenance = "Maintenance_Priority"
)

type RecommendationQuery struct {
	BuildingType string `json:"building_type"`
	Outcome      string `json:"outcome"`
}

type Recommendation struct {
	Areas []string `json:"areas"`
}

// ModelScore holds the regression quality figures reported for one model.
type ModelScore struct {
	MAE float64 `json:"mae"`
	MSE float64 `json:"mse"`
	R2  float64 `json:"r2"`
}

type ModelMetrics struct {
	Energy    ModelScore `json:"energy"`
	Occupancy ModelScore `json:"occupancy"`
}

// FilterSnapshot is the saved state of a filter form, keyed by form field name
// (area, type, minFloors, ...). Values are stored exactly as entered.
type FilterSnapshot struct {
	Key     string            `json:"key"`
	Values  map[string]string `json:"values"`
	SavedAt time.Time         `json:"saved_at"`
}
