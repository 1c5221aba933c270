package project

import (
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle of a drilling project
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// Label returns the display name
func (s Status) Label() string {
	switch s {
	case StatusPlanned:
		return "Планируется"
	case StatusActive:
		return "В работе"
	case StatusCompleted:
		return "Завершён"
	}
	return string(s)
}

// BudgetLine is the planned consumption of one chemical
type BudgetLine struct {
	ID              int64           `json:"id,omitempty"`
	Chemical        *shared.Ref     `json:"chemical"`
	ChemicalName    string          `json:"chemical_name,omitempty"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity"`
}

// Project is a drilling project with a planned reagent budget
type Project struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Facility     *shared.Ref  `json:"facility"`
	FacilityName string       `json:"facility_name"`
	Status       Status       `json:"status"`
	StartDate    shared.Date  `json:"start_date"`
	EndDate      shared.Date  `json:"end_date"`
	BudgetLines  []BudgetLine `json:"budget_lines"`
}

// CompleteBudgetLines drops lines without a chemical or a positive planned quantity
func CompleteBudgetLines(lines []BudgetLine) []BudgetLine {
	out := make([]BudgetLine, 0, len(lines))
	for _, l := range lines {
		if l.Chemical != nil && l.Chemical.ID > 0 && l.PlannedQuantity.IsPositive() {
			out = append(out, l)
		}
	}
	return out
}
