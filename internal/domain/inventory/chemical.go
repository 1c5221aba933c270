package inventory

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Chemical is an entry of the reagent catalogue
type Chemical struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	UnitOfMeasurement string          `json:"unit_of_measurement"`
	Price             decimal.Decimal `json:"price"`
	Description       string          `json:"description"`
}

// UnmarshalJSON accepts the nested object as well as a bare primary key,
// since write serializers echo relations back as keys.
func (c *Chemical) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] != '{' {
		var id json.Number
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		n, err := id.Int64()
		if err != nil {
			return err
		}
		*c = Chemical{ID: n}
		return nil
	}

	type plain Chemical
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Chemical(p)
	return nil
}

// InventoryItem is the stock of one chemical at one facility
type InventoryItem struct {
	ID       int64           `json:"id"`
	Facility Facility        `json:"facility"`
	Chemical Chemical        `json:"chemical"`
	Quantity decimal.Decimal `json:"quantity"`
}

// IsNegative reports a deficit, highlighted on facility pages
func (i *InventoryItem) IsNegative() bool {
	return i.Quantity.IsNegative()
}

// NonZeroStock drops empty inventory rows, keeping negative balances visible
func NonZeroStock(items []InventoryItem) []InventoryItem {
	out := make([]InventoryItem, 0, len(items))
	for _, it := range items {
		if !it.Quantity.IsZero() {
			out = append(out, it)
		}
	}
	return out
}
