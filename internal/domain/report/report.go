package report

import (
	"github.com/erp/chemstock/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GroupStatus represents the server-side processing state of an uploaded daily report
type GroupStatus string

const (
	GroupStatusProcessing GroupStatus = "processing"
	GroupStatusSuccess    GroupStatus = "success"
	GroupStatusError      GroupStatus = "error"
)

// Label returns the display name
func (s GroupStatus) Label() string {
	switch s {
	case GroupStatusProcessing:
		return "В обработке"
	case GroupStatusSuccess:
		return "Успешно"
	case GroupStatusError:
		return "Ошибка"
	}
	return "Неизвестно"
}

// ReportGroup is an uploaded daily drilling report and the transactions it produced
type ReportGroup struct {
	OperationUUID uuid.UUID       `json:"operation_uuid"`
	ReportDate    shared.Date     `json:"report_date"`
	Project       *shared.Ref     `json:"project,omitempty"`
	ProjectName   string          `json:"project_name"`
	Facility      *shared.Ref     `json:"facility,omitempty"`
	FacilityName  string          `json:"facility_name"`
	Uploader      string          `json:"uploader"`
	Status        GroupStatus     `json:"status,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	FileName      string          `json:"file_name,omitempty"`
	UploadedAt    shared.DateTime `json:"uploaded_at"`
}

// FacilityPeriodReport holds the stock movement totals of a facility over a period
type FacilityPeriodReport struct {
	OpeningBalanceTotal decimal.Decimal `json:"opening_balance_total"`
	TotalIncomePeriod   decimal.Decimal `json:"total_income_period"`
	TotalOutcomePeriod  decimal.Decimal `json:"total_outcome_period"`
	ClosingBalanceTotal decimal.Decimal `json:"closing_balance_total"`
}

// ChemicalPeriodReport holds the stock movement of one chemical at one facility over a period
type ChemicalPeriodReport struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	TotalIncome    decimal.Decimal `json:"total_income"`
	TotalOutcome   decimal.Decimal `json:"total_outcome"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// ProjectAnalytics is the plan-vs-actual report over a set of projects
type ProjectAnalytics struct {
	GrandSummary    GrandSummary    `json:"grand_summary"`
	ReportByProject []ProjectReport `json:"report_by_project"`
}

// GrandSummary totals costs across all selected projects
type GrandSummary struct {
	TotalPlannedCost decimal.Decimal `json:"total_planned_cost"`
	TotalFactCost    decimal.Decimal `json:"total_fact_cost"`
}

// ProjectReport is the plan-vs-actual section of one project
type ProjectReport struct {
	ProjectID    int64                `json:"project_id"`
	ProjectName  string               `json:"project_name"`
	FacilityName string               `json:"facility_name,omitempty"`
	Status       string               `json:"status,omitempty"`
	Summary      ProjectSummary       `json:"summary"`
	PlanFact     []PlanFactRow        `json:"plan_fact_table"`
	DailyDetails map[string]DailyData `json:"daily_details"`
}

// ProjectSummary totals the costs of one project
type ProjectSummary struct {
	TotalPlannedCost     decimal.Decimal `json:"total_planned_cost"`
	TotalFactCostPeriod  decimal.Decimal `json:"total_fact_cost_period"`
	TotalFactCostAllTime decimal.Decimal `json:"total_fact_cost_all_time"`
}

// Deviation returns all-time actual cost minus planned cost; positive means overspent
func (s ProjectSummary) Deviation() decimal.Decimal {
	return s.TotalFactCostAllTime.Sub(s.TotalPlannedCost)
}

// PlanFactRow compares planned and actual consumption of one chemical
type PlanFactRow struct {
	ChemicalID         int64           `json:"chemical_id"`
	ChemicalName       string          `json:"chemical_name"`
	Unit               string          `json:"unit"`
	PlannedQuantity    decimal.Decimal `json:"planned_quantity"`
	FactPeriodQuantity decimal.Decimal `json:"fact_period_quantity"`
	FactTotalQuantity  decimal.Decimal `json:"fact_total_quantity"`
	Deviation          decimal.Decimal `json:"deviation"`
}

// IsOverspent reports consumption above plan
func (r PlanFactRow) IsOverspent() bool {
	return r.Deviation.IsPositive()
}

// DailyData is what a daily report recorded for one day
type DailyData struct {
	DrillingSolutionOps string      `json:"drilling_solution_ops"`
	DrillingRigOps      string      `json:"drilling_rig_ops"`
	Items               []DailyItem `json:"items"`
}

// DailyItem is one consumed chemical of a daily report
type DailyItem struct {
	ChemicalName string          `json:"chemical_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Cost         decimal.Decimal `json:"cost"`
}
