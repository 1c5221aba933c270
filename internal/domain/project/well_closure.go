package project

import (
	"sort"

	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ClosureStatus represents how far the consumption of a well has been reconciled
type ClosureStatus string

const (
	ClosureStatusOpen            ClosureStatus = "open"
	ClosureStatusPartiallyClosed ClosureStatus = "partially_closed"
	ClosureStatusClosed          ClosureStatus = "closed"
)

// IsValid checks if the status is a valid ClosureStatus
func (s ClosureStatus) IsValid() bool {
	switch s {
	case ClosureStatusOpen, ClosureStatusPartiallyClosed, ClosureStatusClosed:
		return true
	}
	return false
}

// Label returns the display name
func (s ClosureStatus) Label() string {
	switch s {
	case ClosureStatusOpen:
		return "Не закрыта"
	case ClosureStatusPartiallyClosed:
		return "Закрыта частично"
	case ClosureStatusClosed:
		return "Закрыта"
	}
	return string(s)
}

// ClosureItem reconciles the actual and the closed quantity of one chemical
type ClosureItem struct {
	ID                int64           `json:"id,omitempty"`
	Chemical          *shared.Ref     `json:"chemical"`
	ChemicalName      string          `json:"chemical_name,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	ActualQuantity    decimal.Decimal `json:"actual_quantity"`
	ClosedQuantity    decimal.Decimal `json:"closed_quantity"`
}

// ChemicalID returns the referenced chemical key, 0 if unset
func (i *ClosureItem) ChemicalID() int64 {
	if i.Chemical == nil {
		return 0
	}
	return i.Chemical.ID
}

// Unclosed returns actual minus closed quantity
func (i *ClosureItem) Unclosed() decimal.Decimal {
	return i.ActualQuantity.Sub(i.ClosedQuantity)
}

// WellClosure reconciles planned and actual consumption at the end of a well operation
type WellClosure struct {
	ID         int64         `json:"id"`
	Facility   *shared.Ref   `json:"facility"`
	WellNumber string        `json:"well_number"`
	BushNumber string        `json:"bush_number"`
	Status     ClosureStatus `json:"status"`
	StartDate  shared.Date   `json:"start_date"`
	EndDate    shared.Date   `json:"end_date"`
	Comment    string        `json:"comment"`
	Items      []ClosureItem `json:"items"`
}

// MergeActuals replaces the closure items with one item per chemical of the
// calculated actuals, ordered by chemical id. The closed quantity already
// recorded for a chemical is carried over, zero otherwise.
func MergeActuals(existing []ClosureItem, actuals map[int64]decimal.Decimal) []ClosureItem {
	closed := make(map[int64]decimal.Decimal, len(existing))
	for _, it := range existing {
		if id := it.ChemicalID(); id != 0 {
			if _, seen := closed[id]; !seen {
				closed[id] = it.ClosedQuantity
			}
		}
	}

	ids := make([]int64, 0, len(actuals))
	for id := range actuals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]ClosureItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, ClosureItem{
			Chemical:       shared.NewRef(id),
			ActualQuantity: actuals[id],
			ClosedQuantity: closed[id],
		})
	}
	return items
}
