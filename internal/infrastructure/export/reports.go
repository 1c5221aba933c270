package export

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/report"
	"github.com/erp/chemstock/internal/domain/shared"
)

// ConsumptionSheet lists consumed quantity per chemical over a period
func ConsumptionSheet(rows []report.ConsumptionRow, start, end shared.Date) Sheet {
	s := Sheet{
		Name:     "Расход",
		Title:    "Отчет по расходу реагентов",
		Subtitle: fmt.Sprintf("Период: с %s по %s", start, end),
		Columns: []Column{
			{Label: "Реагент", Width: 40},
			{Label: "Ед. изм.", Width: 10},
			{Label: "Количество", Width: 16},
		},
	}
	for _, r := range rows {
		s.Rows = append(s.Rows, []interface{}{r.Name, r.Unit, r.TotalQuantity})
	}
	return s
}

// AnalyticsSheets renders a summary sheet plus one plan-vs-actual sheet per project
func AnalyticsSheets(a *report.ProjectAnalytics) []Sheet {
	summary := Sheet{
		Name:  "Сводка",
		Title: "Аналитика по проектам",
		Columns: []Column{
			{Label: "Проект", Width: 36},
			{Label: "Плановая стоимость", Width: 20},
			{Label: "Факт за период", Width: 20},
			{Label: "Факт за все время", Width: 20},
			{Label: "Отклонение", Width: 16},
		},
		Totals: []interface{}{"Итого", a.GrandSummary.TotalPlannedCost, "", a.GrandSummary.TotalFactCost, ""},
	}
	sheets := []Sheet{summary}

	for _, p := range a.ReportByProject {
		sheets[0].Rows = append(sheets[0].Rows, []interface{}{
			p.ProjectName,
			p.Summary.TotalPlannedCost,
			p.Summary.TotalFactCostPeriod,
			p.Summary.TotalFactCostAllTime,
			p.Summary.Deviation(),
		})

		ps := Sheet{
			Name:     fmt.Sprintf("%d %s", p.ProjectID, p.ProjectName),
			Title:    p.ProjectName,
			Subtitle: p.FacilityName,
			Columns: []Column{
				{Label: "Реагент", Width: 36},
				{Label: "Ед. изм.", Width: 10},
				{Label: "План", Width: 14},
				{Label: "Факт за период", Width: 16},
				{Label: "Факт всего", Width: 14},
				{Label: "Отклонение", Width: 14},
			},
		}
		for _, r := range p.PlanFact {
			ps.Rows = append(ps.Rows, []interface{}{
				r.ChemicalName, r.Unit, r.PlannedQuantity, r.FactPeriodQuantity, r.FactTotalQuantity, r.Deviation,
			})
		}
		sheets = append(sheets, ps)
	}
	return sheets
}

// StockSheet lists inventory with its valuation at catalogue price
func StockSheet(items []inventory.InventoryItem) Sheet {
	s := Sheet{
		Name:  "Остатки",
		Title: "Остатки реагентов",
		Columns: []Column{
			{Label: "Объект", Width: 28},
			{Label: "Реагент", Width: 36},
			{Label: "Ед. изм.", Width: 10},
			{Label: "Количество", Width: 14},
			{Label: "Цена", Width: 14},
			{Label: "Стоимость", Width: 16},
		},
	}
	total := decimal.Zero
	for _, it := range items {
		cost := it.Quantity.Mul(it.Chemical.Price)
		total = total.Add(cost)
		s.Rows = append(s.Rows, []interface{}{
			it.Facility.Name, it.Chemical.Name, it.Chemical.UnitOfMeasurement,
			it.Quantity, it.Chemical.Price, cost,
		})
	}
	s.Totals = []interface{}{"Итого", "", "", "", "", total}
	return s
}
