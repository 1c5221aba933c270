package inventory

import (
	"github.com/erp/chemstock/internal/domain/shared"
)

// FacilityType represents the kind of location holding stock
type FacilityType string

const (
	FacilityTypeWarehouse FacilityType = "warehouse"
	FacilityTypeWell      FacilityType = "well"
	FacilityTypeOther     FacilityType = "other"
)

// IsValid checks if the type is a valid FacilityType
func (t FacilityType) IsValid() bool {
	switch t {
	case FacilityTypeWarehouse, FacilityTypeWell, FacilityTypeOther:
		return true
	}
	return false
}

// Label returns the display name
func (t FacilityType) Label() string {
	switch t {
	case FacilityTypeWarehouse:
		return "Склад"
	case FacilityTypeWell:
		return "Скважина"
	case FacilityTypeOther:
		return "Прочее"
	}
	return string(t)
}

// Facility is a warehouse, well or well-pad that holds reagent stock
type Facility struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      FacilityType    `json:"type"`
	Location  string          `json:"location"`
	CreatedAt shared.DateTime `json:"created_at"`
}
