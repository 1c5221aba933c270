package report

import (
	"sort"

	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ConsumptionRow is the total consumed quantity of one chemical
type ConsumptionRow struct {
	ChemicalID    int64           `json:"chemical_id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// AggregateConsumption sums transaction quantities per chemical and sorts the rows
// by chemical name using Russian collation.
func AggregateConsumption(txs []inventory.Transaction) []ConsumptionRow {
	index := make(map[int64]int)
	var rows []ConsumptionRow

	for _, tx := range txs {
		i, ok := index[tx.Chemical.ID]
		if !ok {
			i = len(rows)
			index[tx.Chemical.ID] = i
			rows = append(rows, ConsumptionRow{
				ChemicalID:    tx.Chemical.ID,
				Name:          tx.Chemical.Name,
				Unit:          tx.Chemical.UnitOfMeasurement,
				TotalQuantity: decimal.Zero,
			})
		}
		rows[i].TotalQuantity = rows[i].TotalQuantity.Add(tx.Quantity)
	}

	SortConsumption(rows)
	return rows
}

// SortConsumption orders rows by chemical name
func SortConsumption(rows []ConsumptionRow) {
	c := collate.New(language.Russian)
	sort.SliceStable(rows, func(i, j int) bool {
		return c.CompareString(rows[i].Name, rows[j].Name) < 0
	})
}
