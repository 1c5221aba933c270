package inventory

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/infrastructure/apiclient"
)

// StockService reads current stock levels
type StockService struct {
	client *apiclient.Client
}

// NewStockService creates a new StockService
func NewStockService(client *apiclient.Client) *StockService {
	return &StockService{client: client}
}

// List returns stock rows, limited to one facility when facilityID > 0.
// Rows with zero quantity are dropped unless includeZero is set.
func (s *StockService) List(ctx context.Context, facilityID int64, includeZero bool) ([]inventory.InventoryItem, error) {
	var query url.Values
	if facilityID > 0 {
		query = url.Values{"facility": {strconv.FormatInt(facilityID, 10)}}
	}
	items, err := apiclient.GetList[inventory.InventoryItem](ctx, s.client, "/inventory/", query)
	if err != nil {
		return nil, err
	}
	if !includeZero {
		items = inventory.NonZeroStock(items)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Facility.Name != items[j].Facility.Name {
			return items[i].Facility.Name < items[j].Facility.Name
		}
		return items[i].Chemical.Name < items[j].Chemical.Name
	})
	return items, nil
}
